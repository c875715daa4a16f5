package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spiritengine/spindle/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print spindle's version",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Current()
		fmt.Printf("spindle %s (commit %s, built %s)\n", info.Version, info.CommitHash, info.BuildDate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
