package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "List the error codes the catalog knows about",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, catalog, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		for _, code := range catalog.ErrorCodes() {
			def, err := catalog.Lookup(code)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
				def.ErrorCode, def.Category, def.Severity, def.Description)
		}
		return nil
	},
}
