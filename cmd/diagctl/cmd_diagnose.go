package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/szweimin/ai-ros/internal/diagnosis"
	"github.com/szweimin/ai-ros/internal/snapshot"
)

var (
	flagStateFile string
	flagErrors    []string
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Diagnose error codes against the fault-tree catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, catalog, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		var state snapshot.RuntimeState
		if flagStateFile != "" {
			raw, err := os.ReadFile(flagStateFile)
			if err != nil {
				return fmt.Errorf("read state: %w", err)
			}
			if err := yaml.Unmarshal(raw, &state); err != nil {
				return fmt.Errorf("parse state: %w", err)
			}
		}

		codes := flagErrors
		if len(codes) == 0 {
			codes = state.ActiveErrors()
		}
		if len(codes) == 0 {
			return fmt.Errorf("no error codes: pass --error or a state file with errors")
		}

		engine, err := diagnosis.New(catalog,
			diagnosis.WithLogger(logger),
			diagnosis.WithEvidenceBonus(cfg.EvidenceBonus),
		)
		if err != nil {
			return err
		}

		plan := engine.Diagnose(codes, state)
		return printJSON(cmd, plan)
	},
}

func init() {
	diagnoseCmd.Flags().StringVar(&flagStateFile, "state", "", "YAML file with the robot's runtime state")
	diagnoseCmd.Flags().StringArrayVar(&flagErrors, "error", nil, "error code to diagnose (repeatable)")
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
