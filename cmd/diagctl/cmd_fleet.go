package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/szweimin/ai-ros/internal/fleet"
	"github.com/szweimin/ai-ros/internal/snapshot"
)

var (
	flagSnapshots string
	flagRobot     string
	flagErrorCode string
	flagWindow    time.Duration
	flagSweep     bool
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Correlate an error code across a fleet snapshot dump",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, _, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if flagErrorCode == "" {
			return fmt.Errorf("--error is required")
		}

		raw, err := os.ReadFile(flagSnapshots)
		if err != nil {
			return fmt.Errorf("read snapshots: %w", err)
		}
		var snaps []snapshot.RuntimeSnapshot
		if err := yaml.Unmarshal(raw, &snaps); err != nil {
			return fmt.Errorf("parse snapshots: %w", err)
		}
		store := snapshot.NewMemoryStore(snaps...)

		correlator := fleet.NewCorrelator(cfg.FleetThresholds())

		if flagSweep {
			sweeper := fleet.NewSweeper(correlator, store, cfg.SweepWorkers, logger)
			results, err := sweeper.Sweep(cmd.Context(), flagErrorCode, store.RobotIDs(), time.Now().Add(-flagWindow))
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		}

		if flagRobot == "" {
			return fmt.Errorf("--robot is required (or use --sweep)")
		}
		target, err := store.LatestSnapshot(cmd.Context(), flagRobot)
		if err != nil {
			return err
		}
		window, err := store.RecentSnapshots(cmd.Context(), target.Model, target.Timestamp.Add(-flagWindow))
		if err != nil {
			return err
		}
		return printJSON(cmd, correlator.Correlate(flagErrorCode, window, target))
	},
}

func init() {
	fleetCmd.Flags().StringVar(&flagSnapshots, "snapshots", "", "YAML file with a list of runtime snapshots")
	fleetCmd.Flags().StringVar(&flagRobot, "robot", "", "target robot id")
	fleetCmd.Flags().StringVar(&flagErrorCode, "error", "", "error code to correlate")
	fleetCmd.Flags().DurationVar(&flagWindow, "window", 24*time.Hour, "history window")
	fleetCmd.Flags().BoolVar(&flagSweep, "sweep", false, "assess every robot in the dump")
	_ = fleetCmd.MarkFlagRequired("snapshots")
}
