package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/spiritengine/spindle/internal/shard"
	"github.com/spiritengine/spindle/internal/spool"
)

// ShardStatusResult is the `shard_status` response (spec §4.6).
type ShardStatusResult struct {
	Exists       bool     `json:"exists"`
	SpoolStatus  spool.Status `json:"spool_status"`
	GitChanges   []string `json:"git_changes"`
	CommitsAhead int      `json:"commits_ahead"`
}

func (f *Facade) shardInfoFor(id string) (*spool.Record, shard.Info, error) {
	rec, ok := f.Store.Read(id)
	if !ok {
		return nil, shard.Info{}, errf("spool %s not found", id)
	}
	if !rec.IsSharded() {
		return nil, shard.Info{}, errf("spool %s has no shard", id)
	}
	return rec, shard.Info{WorktreePath: rec.Shard.WorktreePath, BranchName: rec.Shard.BranchName, ShardID: rec.Shard.ShardID}, nil
}

// ShardStatus implements `shard_status`.
func (f *Facade) ShardStatus(ctx context.Context, id string) (*ShardStatusResult, error) {
	rec, info, err := f.shardInfoFor(id)
	if err != nil {
		return nil, err
	}
	defaultBranch := f.Shards.DetectDefaultBranch(ctx)
	st, err := f.Shards.Status(ctx, info, defaultBranch)
	if err != nil {
		return nil, fmt.Errorf("Error: %v", err)
	}
	return &ShardStatusResult{Exists: st.Exists, SpoolStatus: rec.Status, GitChanges: st.GitChanges, CommitsAhead: st.CommitsAhead}, nil
}

// ShardMerge implements `shard_merge` (spec §4.6). It refuses if callerCwd
// is inside the worktree, the spool is still running, another running
// spool's working_dir resolves into the same worktree, or the worktree has
// uncommitted changes.
func (f *Facade) ShardMerge(ctx context.Context, id string, keepBranch bool, callerCwd string) (string, error) {
	rec, info, err := f.shardInfoFor(id)
	if err != nil {
		return "", err
	}

	if shard.CallerInsideWorktree(callerCwd, info.WorktreePath) {
		return "", errf("refusing to merge: your shell is inside the worktree — cd out first (e.g. to the repository root)")
	}
	if rec.Status == spool.StatusRunning {
		return "", errf("spool %s is still running", id)
	}
	if f.anotherRunningSpoolUses(id, info.WorktreePath) {
		return "", errf("another running spool is using this worktree")
	}
	dirty, err := f.Shards.HasUncommittedChanges(ctx, info.WorktreePath)
	if err != nil {
		return "", fmt.Errorf("Error: %v", err)
	}
	if dirty {
		return "", errf("worktree has uncommitted changes")
	}

	defaultBranch := f.Shards.DetectDefaultBranch(ctx)
	message := fmt.Sprintf("Merge shard %s: %s", id, truncateForDescription(rec.Prompt))
	commit, err := f.Shards.Merge(ctx, defaultBranch, info.BranchName, message, false)
	if err != nil {
		return "", fmt.Errorf("Error: merge conflict or git failure: %v", err)
	}

	if err := f.Shards.CleanupShard(ctx, info, keepBranch); err != nil {
		// Cleanup failure is reported but the merge itself already succeeded.
		return commit, fmt.Errorf("Error: merge succeeded (%s) but cleanup failed: %v", commit, err)
	}

	now := time.Now().UTC()
	rec.Shard.Merged = true
	rec.Shard.MergedAt = &now
	if err := f.Store.Write(rec); err != nil {
		return commit, fmt.Errorf("Error: %v", err)
	}

	if f.Skein != nil && !rec.SkeinLess {
		f.Skein.CloseTender(ctx, info.ShardID)
	}

	return commit, nil
}

// ShardAbandon implements `shard_abandon` (spec §4.6).
func (f *Facade) ShardAbandon(ctx context.Context, id string, keepBranch bool, callerCwd string) error {
	rec, info, err := f.shardInfoFor(id)
	if err != nil {
		return err
	}

	if shard.CallerInsideWorktree(callerCwd, info.WorktreePath) {
		return errf("refusing to abandon: your shell is inside the worktree — cd out first")
	}
	if f.anotherRunningSpoolUses(id, info.WorktreePath) {
		return errf("another running spool is using this worktree")
	}

	if rec.Status == spool.StatusRunning {
		f.Supervisor.CancelRunning(id)
		current, ok := f.Store.Read(id)
		if !ok {
			return errf("spool %s not found", id)
		}
		rec = current
		msg := "Shard abandoned"
		rec.Error = &msg
		rec.Status = spool.StatusError
	}

	if err := f.Shards.CleanupShard(ctx, info, keepBranch); err != nil {
		return fmt.Errorf("Error: cleanup failed: %v", err)
	}

	now := time.Now().UTC()
	rec.Shard.Abandoned = true
	rec.Shard.AbandonedAt = &now
	return f.Store.Write(rec)
}

func (f *Facade) anotherRunningSpoolUses(excludeID, worktreePath string) bool {
	for _, other := range f.Store.List() {
		if other.ID == excludeID {
			continue
		}
		if other.Status == spool.StatusRunning && shard.CallerInsideWorktree(other.WorkingDir, worktreePath) {
			return true
		}
	}
	return false
}
