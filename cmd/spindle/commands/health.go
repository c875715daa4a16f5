package commands

import "github.com/spf13/cobra"

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the daemon's /health endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out any
		if err := NewClient().Get("/health", &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
