package core

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitswalk/xtc/src/common/output"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat == string(output.FormatJSON) {
			return output.PrintJSON(cmd.OutOrStdout(), VersionInfo.Map())
		}
		fmt.Fprintln(cmd.OutOrStdout(), VersionInfo.Full())
		return nil
	},
}
