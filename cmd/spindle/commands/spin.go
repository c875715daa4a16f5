package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var spinCmd = &cobra.Command{
	Use:   "spin",
	Short: "Spawn a new spool (child coding-agent process)",
	RunE:  runSpin,
}

func init() {
	spinCmd.Flags().String("prompt", "", "Prompt for the child agent (required)")
	spinCmd.Flags().String("working-dir", "", "Working directory for the child agent (required)")
	spinCmd.Flags().String("permission", "", "Permission profile: readonly, careful, full, shard, careful+shard")
	spinCmd.Flags().Bool("shard", false, "Spawn inside a fresh isolated git worktree")
	spinCmd.Flags().String("system-prompt", "", "Optional system prompt override")
	spinCmd.Flags().String("allowed-tools", "", "Explicit allowed-tools override, wins over permission profile")
	spinCmd.Flags().StringSlice("tags", nil, "Tags to attach to the spool")
	spinCmd.Flags().String("model", "", "Model override")
	spinCmd.Flags().Int("timeout", 0, "Timeout in seconds (0 = default)")
	spinCmd.Flags().Bool("skeinless", false, "Do not attempt to close a SKEIN tender on shard merge")
	spinCmd.Flags().String("harness", "", "claude (default) or gemini")
	spinCmd.MarkFlagRequired("prompt")
	spinCmd.MarkFlagRequired("working-dir")
	rootCmd.AddCommand(spinCmd)
}

func runSpin(cmd *cobra.Command, args []string) error {
	prompt, _ := cmd.Flags().GetString("prompt")
	workingDir, _ := cmd.Flags().GetString("working-dir")
	permission, _ := cmd.Flags().GetString("permission")
	model, _ := cmd.Flags().GetString("model")
	systemPrompt, _ := cmd.Flags().GetString("system-prompt")
	allowedTools, _ := cmd.Flags().GetString("allowed-tools")
	tags, _ := cmd.Flags().GetStringSlice("tags")
	timeout, _ := cmd.Flags().GetInt("timeout")
	skeinless, _ := cmd.Flags().GetBool("skeinless")
	harness, _ := cmd.Flags().GetString("harness")

	req := map[string]any{
		"prompt":      prompt,
		"working_dir": workingDir,
		"permission":  permission,
		"tags":        tags,
		"skeinless":   skeinless,
		"harness":     harness,
	}
	if cmd.Flags().Changed("shard") {
		shard, _ := cmd.Flags().GetBool("shard")
		req["shard"] = shard
	}
	if systemPrompt != "" {
		req["system_prompt"] = systemPrompt
	}
	if allowedTools != "" {
		req["allowed_tools"] = allowedTools
	}
	if model != "" {
		req["model"] = model
	}
	if timeout > 0 {
		req["timeout"] = timeout
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := NewClient().Post("/v1/spin", req, &resp); err != nil {
		return err
	}
	fmt.Println(resp.ID)
	return nil
}

var respinCmd = &cobra.Command{
	Use:   "respin <session-id> <prompt>",
	Short: "Resume a completed spool's session with a new prompt",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			ID                          string `json:"id"`
			TranscriptFallbackAvailable bool   `json:"transcript_fallback_available"`
		}
		req := map[string]any{"session_id": args[0], "prompt": args[1]}
		if err := NewClient().Post("/v1/respin", req, &resp); err != nil {
			return err
		}
		fmt.Println(resp.ID)
		if resp.TranscriptFallbackAvailable {
			fmt.Println("transcript fallback available for this session")
		}
		return nil
	},
}

var unspoolCmd = &cobra.Command{
	Use:   "unspool <id>",
	Short: "Finalize-if-ready and print a spool's current record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rec any
		if err := NewClient().Get("/v1/unspool/"+args[0], &rec); err != nil {
			return err
		}
		printJSON(rec)
		return nil
	},
}

var spinDropCmd = &cobra.Command{
	Use:   "spin_drop <id>",
	Short: "Cancel a running spool",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return NewClient().Post("/v1/spin_drop/"+args[0], nil, nil)
	},
}

var spinWaitCmd = &cobra.Command{
	Use:   "spin_wait <id...>",
	Short: "Block until all (gather) or any (yield) spools complete",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		timeout, _ := cmd.Flags().GetInt("timeout")
		req := map[string]any{"ids": args, "mode": mode, "timeout_seconds": timeout}
		var result map[string]any
		if err := NewClient().Post("/v1/spin_wait", req, &result); err != nil {
			return err
		}
		printJSON(result)
		return nil
	},
}

func init() {
	spinWaitCmd.Flags().String("mode", "gather", "gather (wait for all) or yield (wait for any)")
	spinWaitCmd.Flags().Int("timeout", 0, "Timeout in seconds (0 = no deadline)")
	rootCmd.AddCommand(respinCmd, unspoolCmd, spinDropCmd, spinWaitCmd)
}

var spoolRetryCmd = &cobra.Command{
	Use:   "spool_retry <id>",
	Short: "Re-run a spool with its original parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			ID string `json:"id"`
		}
		if err := NewClient().Post("/v1/spool_retry/"+args[0], nil, &resp); err != nil {
			return err
		}
		fmt.Println(resp.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(spoolRetryCmd)
}
