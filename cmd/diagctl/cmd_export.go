package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szweimin/ai-ros/internal/faulttree"
)

var flagExportCode string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a fault tree as a Graphviz digraph",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, catalog, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		def, err := catalog.Lookup(flagExportCode)
		if err != nil {
			return err
		}
		dot, err := faulttree.ExportDOT(def)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), dot)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&flagExportCode, "code", "", "error code to export")
	_ = exportCmd.MarkFlagRequired("code")
}
