package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var spoolsCmd = &cobra.Command{
	Use:   "spools",
	Short: "List all spools (compact projection)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out map[string]any
		if err := NewClient().Get("/v1/spools", &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var spoolResultsCmd = &cobra.Command{
	Use:   "spool_results",
	Short: "List spools filtered by status/age window",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		since, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")
		q := url.Values{}
		if status != "" {
			q.Set("status", status)
		}
		if since != "" {
			q.Set("since", since)
		}
		if limit > 0 {
			q.Set("limit", fmt.Sprintf("%d", limit))
		}
		var out []any
		if err := NewClient().Get("/v1/spool_results?"+q.Encode(), &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var spoolSearchCmd = &cobra.Command{
	Use:   "spool_search <query>",
	Short: "Case-insensitive substring search over prompt/result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		field, _ := cmd.Flags().GetString("field")
		q := url.Values{"query": {args[0]}}
		if field != "" {
			q.Set("field", field)
		}
		var out []any
		if err := NewClient().Get("/v1/spool_search?"+q.Encode(), &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var spoolGrepCmd = &cobra.Command{
	Use:   "spool_grep <pattern>",
	Short: "Regex search over spool results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{"pattern": {args[0]}}
		var out []any
		if err := NewClient().Get("/v1/spool_grep?"+q.Encode(), &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var spoolPeekCmd = &cobra.Command{
	Use:   "spool_peek <id>",
	Short: "Tail a running spool's live stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, _ := cmd.Flags().GetInt("lines")
		q := url.Values{}
		if lines > 0 {
			q.Set("lines", fmt.Sprintf("%d", lines))
		}
		path := "/v1/spool_peek/" + args[0]
		if enc := q.Encode(); enc != "" {
			path += "?" + enc
		}
		var out any
		if err := NewClient().Get(path, &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var spoolStatsCmd = &cobra.Command{
	Use:   "spool_stats",
	Short: "Show aggregate spool statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out any
		if err := NewClient().Get("/v1/spool_stats", &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var spoolInfoCmd = &cobra.Command{
	Use:   "spool_info <id>",
	Short: "Show a spool's full record plus transcript availability",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out any
		if err := NewClient().Get("/v1/spool_info/"+args[0], &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var spoolExportCmd = &cobra.Command{
	Use:   "spool_export <id...>",
	Short: "Export spools to a json or markdown file ('all' exports everything)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		req := map[string]any{"ids": args, "format": format, "output_path": output}
		var resp struct {
			Path string `json:"path"`
		}
		if err := NewClient().Post("/v1/spool_export", req, &resp); err != nil {
			return err
		}
		fmt.Println(resp.Path)
		return nil
	},
}

func init() {
	spoolResultsCmd.Flags().String("status", "", "Filter by status")
	spoolResultsCmd.Flags().String("since", "", "Age window: 1h, 6h, 12h, 1d, 7d")
	spoolResultsCmd.Flags().Int("limit", 0, "Max results (0 = unlimited)")
	spoolSearchCmd.Flags().String("field", "both", "prompt, result, or both")
	spoolPeekCmd.Flags().Int("lines", 50, "Number of trailing lines")
	spoolExportCmd.Flags().String("format", "json", "json or md")
	spoolExportCmd.Flags().String("output", "", "Output path (default: spools dir)")

	rootCmd.AddCommand(spoolsCmd, spoolResultsCmd, spoolSearchCmd, spoolGrepCmd, spoolPeekCmd, spoolStatsCmd, spoolInfoCmd, spoolExportCmd)
}
