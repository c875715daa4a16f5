package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spiritengine/spindle/internal/buildinfo"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	styleBoldCyan = "\033[1;36m"
)

var rootCmd = &cobra.Command{
	Use:   "spindle",
	Short: "Client for the spindle delegation daemon",
	Long: colorBold + `spindle` + colorReset + ` v` + buildinfo.Current().Version + ` talks to the ` + styleBoldCyan + `spindled` + colorReset + ` daemon over its
local socket: spawn and supervise child coding-agent processes ("spools"),
optionally inside isolated git worktrees ("shards").

Run ` + colorBold + `spindle daemon start` + colorReset + ` first, then use this client to drive it:
  spindle spin --prompt "..." --working-dir .
  spindle spools
  spindle spool_dashboard`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
}

func printJSON(v any) {
	data, err := jsonIndent(v)
	if err != nil {
		fmt.Fprintln(os.Stderr, "marshal output:", err)
		return
	}
	fmt.Println(string(data))
}
