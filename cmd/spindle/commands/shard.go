package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var shardStatusCmd = &cobra.Command{
	Use:   "shard_status <id>",
	Short: "Show a sharded spool's worktree status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out any
		if err := NewClient().Get("/v1/shard_status/"+args[0], &out); err != nil {
			return err
		}
		printJSON(out)
		return nil
	},
}

var shardMergeCmd = &cobra.Command{
	Use:   "shard_merge <id>",
	Short: "Merge a shard's branch back into the default branch and remove the worktree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keepBranch, _ := cmd.Flags().GetBool("keep-branch")
		cwd, _ := os.Getwd()
		req := map[string]any{"keep_branch": keepBranch, "caller_cwd": cwd}
		var resp struct {
			Commit string `json:"commit"`
		}
		if err := NewClient().Post("/v1/shard_merge/"+args[0], req, &resp); err != nil {
			return err
		}
		fmt.Println(resp.Commit)
		return nil
	},
}

var shardAbandonCmd = &cobra.Command{
	Use:   "shard_abandon <id>",
	Short: "Discard a shard's worktree without merging",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keepBranch, _ := cmd.Flags().GetBool("keep-branch")
		cwd, _ := os.Getwd()
		req := map[string]any{"keep_branch": keepBranch, "caller_cwd": cwd}
		return NewClient().Post("/v1/shard_abandon/"+args[0], req, nil)
	},
}

func init() {
	shardMergeCmd.Flags().Bool("keep-branch", false, "Do not delete the shard's branch after merge")
	shardAbandonCmd.Flags().Bool("keep-branch", false, "Do not delete the shard's branch after abandon")
	rootCmd.AddCommand(shardStatusCmd, shardMergeCmd, shardAbandonCmd)
}

var triageCmd = &cobra.Command{
	Use:   "triage <worktree-path>",
	Short: "Spawn a spool to inspect a worktree's contents and summarize pending work",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			ID string `json:"id"`
		}
		req := map[string]any{"worktree_path": args[0]}
		if err := NewClient().Post("/v1/triage", req, &resp); err != nil {
			return err
		}
		fmt.Println(resp.ID)
		return nil
	},
}

var reloadCmd = &cobra.Command{
	Use:   "spindle_reload",
	Short: "Signal the daemon to reload (drops reload_signal touchfile)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return NewClient().Post("/v1/spindle_reload", nil, nil)
	},
}

func init() {
	rootCmd.AddCommand(triageCmd, reloadCmd)
}
