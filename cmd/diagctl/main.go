// diagctl exercises the diagnosis engine from the command line: diagnose
// error codes against a fault-tree catalog, correlate an error across a
// fleet snapshot dump, list known codes, export a tree as DOT.
//
// Usage:
//
//	diagctl codes --catalog fault_trees.yaml
//	diagctl diagnose --catalog fault_trees.yaml --state state.yaml [--error E201 ...]
//	diagctl fleet --catalog fault_trees.yaml --snapshots fleet.yaml --robot agv_01 --error E201 [--sweep]
//	diagctl export --catalog fault_trees.yaml --code E201
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/szweimin/ai-ros/internal/config"
	"github.com/szweimin/ai-ros/internal/faulttree"
	"github.com/szweimin/ai-ros/internal/logging"
)

var version = "dev"

var (
	flagConfig  string
	flagCatalog string
)

var rootCmd = &cobra.Command{
	Use:   "diagctl",
	Short: "Fault-tree diagnosis and fleet correlation for robot error codes",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagCatalog, "catalog", "", "path to fault-tree catalog (overrides config)")

	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(fleetCmd)
	rootCmd.AddCommand(codesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.Version = version
}

// setup loads config, logger, and catalog for a subcommand run.
func setup() (config.Runtime, *zap.Logger, *faulttree.Catalog, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Runtime{}, nil, nil, err
	}
	if flagCatalog != "" {
		cfg.CatalogPath = flagCatalog
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return config.Runtime{}, nil, nil, err
	}

	catalog, err := faulttree.LoadFile(cfg.CatalogPath)
	if err != nil {
		return config.Runtime{}, nil, nil, err
	}
	logger.Debug("catalog loaded", zap.Int("trees", catalog.Len()), zap.String("path", cfg.CatalogPath))

	return cfg, logger, catalog, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
