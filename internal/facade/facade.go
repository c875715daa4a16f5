// Package facade implements the Tool Facade (spec §4.9 component 9, §6
// tool surface table): the outward-facing named operations delegating to
// the store, supervisor, and shard manager. Every operation returns a
// success payload or a Go error with a human-readable message; nothing
// panics across this boundary (spec §7 propagation policy). Errors the
// facade builds itself start with "Error:"; a few passed up from lower
// layers (a store write, a cancelled context) are returned unprefixed.
package facade

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spiritengine/spindle/internal/config"
	"github.com/spiritengine/spindle/internal/detect"
	"github.com/spiritengine/spindle/internal/permission"
	"github.com/spiritengine/spindle/internal/shard"
	"github.com/spiritengine/spindle/internal/skein"
	"github.com/spiritengine/spindle/internal/spool"
	"github.com/spiritengine/spindle/internal/spoolid"
	"github.com/spiritengine/spindle/internal/supervisor"
)

// Facade is the daemon's single entry point for every tool-surface
// operation.
type Facade struct {
	Store      *spool.Store
	Supervisor *supervisor.Supervisor
	Shards     *shard.Manager
	Skein      *skein.Client
	Cfg        *config.Config
	RepoRoot   string
	StartedAt  time.Time
}

// New wires a Facade from its component parts.
func New(store *spool.Store, sup *supervisor.Supervisor, shards *shard.Manager, skeinClient *skein.Client, cfg *config.Config, repoRoot string) *Facade {
	return &Facade{
		Store:      store,
		Supervisor: sup,
		Shards:     shards,
		Skein:      skeinClient,
		Cfg:        cfg,
		RepoRoot:   repoRoot,
		StartedAt:  time.Now(),
	}
}

// SpinArgs is the spin tool's argument bundle (spec §6).
type SpinArgs struct {
	Prompt       string
	Permission   string
	Shard        bool
	ShardSet     bool // true iff caller explicitly passed shard=
	SystemPrompt *string
	WorkingDir   string
	AllowedTools *string
	Tags         []string
	Model        *string
	Timeout      *int
	Skeinless    bool
	Harness      spool.Harness
}

func errf(format string, args ...any) error {
	return fmt.Errorf("Error: "+format, args...)
}

// Spin implements the `spin` tool: admit + spawn, returning the new id.
func (f *Facade) Spin(ctx context.Context, args SpinArgs) (string, error) {
	if args.WorkingDir == "" {
		return "", errf("working_dir is required")
	}
	if args.Harness == spool.HarnessGemini && !f.Cfg.HasGeminiCredentials() {
		return "", errf("GOOGLE_API_KEY or GEMINI_API_KEY is required for the gemini harness")
	}
	if args.Harness == "" {
		args.Harness = spool.HarnessClaude
	}
	if !detect.Available(args.Harness) {
		return "", errf("%s harness binary not found on PATH", args.Harness)
	}

	resolved := permission.Resolve(args.Permission, args.AllowedTools)

	wantShard := resolved.AutoShard
	if args.ShardSet {
		wantShard = args.Shard
	}

	workingDir := args.WorkingDir
	var embeddedShard *spool.Shard
	var effectivePrompt string

	if wantShard {
		info, err := f.createShard(ctx, args.Prompt)
		if err != nil {
			return "", errf("shard creation failed: %v", err)
		}
		workingDir = info.WorktreePath
		embeddedShard = &spool.Shard{
			WorktreePath: info.WorktreePath,
			BranchName:   info.BranchName,
			ShardID:      info.ShardID,
		}
		effectivePrompt = shardPreamble(info.ShardID, f.Skein != nil) + args.Prompt
	}

	id := spoolid.New()
	rec, err := f.Store.TryReserveSlotAndCreate(f.Cfg.MaxConcurrent, func() *spool.Record {
		return &spool.Record{
			ID:           id,
			Status:       spool.StatusPending,
			Harness:      args.Harness,
			Prompt:       args.Prompt,
			WorkingDir:   workingDir,
			AllowedTools: resolved.AllowedTools,
			Permission:   resolved.Profile,
			SystemPrompt: args.SystemPrompt,
			Tags:         args.Tags,
			Shard:        embeddedShard,
			Model:        args.Model,
			Timeout:      args.Timeout,
			CreatedAt:    time.Now().UTC(),
			AutoShard:    wantShard && !args.ShardSet,
			SkeinLess:    args.Skeinless,
		}
	})
	if err != nil {
		if embeddedShard != nil {
			f.Shards.CleanupShard(ctx, shard.Info{WorktreePath: embeddedShard.WorktreePath, BranchName: embeddedShard.BranchName, ShardID: embeddedShard.ShardID}, false)
		}
		return "", fmt.Errorf("Error: %v", err)
	}

	pid, cleanup, spawnErr := f.Supervisor.SpawnDetached(supervisor.SpawnRequest{
		ID:              rec.ID,
		Harness:         rec.Harness,
		WorkingDir:      rec.WorkingDir,
		Prompt:          rec.Prompt,
		EffectivePrompt: effectivePrompt,
		SystemPrompt:    rec.SystemPrompt,
		Model:           rec.Model,
		Mode:            resolved.Mode,
		AllowedTools:    resolved.AllowedTools,
		Timeout:         rec.Timeout,
	})
	if spawnErr != nil {
		if embeddedShard != nil {
			f.Shards.CleanupShard(ctx, shard.Info{WorktreePath: embeddedShard.WorktreePath, BranchName: embeddedShard.BranchName, ShardID: embeddedShard.ShardID}, false)
		}
		rec.Status = spool.StatusError
		msg := spawnErr.Error()
		rec.Error = &msg
		now := time.Now().UTC()
		rec.CompletedAt = &now
		f.Store.Write(rec)
		return "", fmt.Errorf("Error: spawn failed: %v", spawnErr)
	}

	cleanup()
	rec.PID = &pid
	rec.Status = spool.StatusRunning
	if err := f.Store.Write(rec); err != nil {
		return "", fmt.Errorf("Error: persisting running state: %v", err)
	}

	f.Supervisor.StartMonitor(rec.ID, 0)
	return rec.ID, nil
}

func (f *Facade) createShard(ctx context.Context, prompt string) (shard.Info, error) {
	if f.Skein != nil && f.Skein.Healthy(ctx) {
		res, err := f.Skein.SpawnShard(ctx, f.Cfg.SkeinAgentID, truncateForDescription(prompt))
		if err == nil && res.WorktreePath != "" {
			return shard.Info{WorktreePath: res.WorktreePath, BranchName: res.BranchName, ShardID: res.ShardID}, nil
		}
	}
	return f.Shards.Create(ctx, f.Cfg.BaseDir, f.Cfg.SkeinAgentID)
}

func truncateForDescription(s string) string {
	if len(s) <= 80 {
		return s
	}
	return s[:80]
}

func shardPreamble(shardID string, skeinAvailable bool) string {
	var b strings.Builder
	b.WriteString("You are operating inside an isolated git worktree (shard ")
	b.WriteString(shardID)
	b.WriteString("). Commit your work before exiting.\n")
	if skeinAvailable {
		b.WriteString("If SKEIN is available, run `skein tender create` to submit your work for review.\n")
	}
	b.WriteString("\n")
	return b.String()
}

// Respin implements the `respin` tool. The returned bool reports whether a
// transcript file exists for the originating spool (spec §4.7) — i.e.
// whether the monitor could fall back to it later if this new child's
// session also expires, independent of whether this respin attempt itself
// succeeds.
func (f *Facade) Respin(ctx context.Context, sessionID, prompt string) (string, bool, error) {
	orig, found := f.Store.FindBySession(sessionID)
	if !found {
		return "", false, errf("no spool found for session %s", sessionID)
	}

	transcriptAvailable := false
	if _, err := os.Stat(f.Store.TranscriptPath(orig.ID)); err == nil {
		transcriptAvailable = true
	}

	resolved := permission.Resolve(orig.Permission, nil)
	id := spoolid.New()
	rec, err := f.Store.TryReserveSlotAndCreate(f.Cfg.MaxConcurrent, func() *spool.Record {
		return &spool.Record{
			ID:           id,
			Status:       spool.StatusPending,
			Harness:      orig.Harness,
			Prompt:       prompt,
			WorkingDir:   orig.WorkingDir,
			AllowedTools: orig.AllowedTools,
			Permission:   orig.Permission,
			Tags:         orig.Tags,
			Model:        orig.Model,
			Timeout:      orig.Timeout,
			CreatedAt:    time.Now().UTC(),
		}
	})
	if err != nil {
		return "", transcriptAvailable, fmt.Errorf("Error: %v", err)
	}

	resumeID := sessionID
	pid, cleanup, spawnErr := f.Supervisor.SpawnDetached(supervisor.SpawnRequest{
		ID:           rec.ID,
		Harness:      rec.Harness,
		WorkingDir:   rec.WorkingDir,
		Prompt:       rec.Prompt,
		ResumeID:     &resumeID,
		Mode:         resolved.Mode,
		AllowedTools: rec.AllowedTools,
		Timeout:      rec.Timeout,
	})
	if spawnErr != nil {
		rec.Status = spool.StatusError
		msg := spawnErr.Error()
		rec.Error = &msg
		now := time.Now().UTC()
		rec.CompletedAt = &now
		f.Store.Write(rec)
		return "", transcriptAvailable, fmt.Errorf("Error: spawn failed: %v", spawnErr)
	}

	cleanup()
	rec.PID = &pid
	rec.Status = spool.StatusRunning
	if err := f.Store.Write(rec); err != nil {
		return "", transcriptAvailable, fmt.Errorf("Error: %v", err)
	}
	f.Supervisor.StartMonitor(rec.ID, 0)
	return rec.ID, transcriptAvailable, nil
}

// Unspool implements the `unspool` tool: finalize-if-ready, then return the
// current record.
func (f *Facade) Unspool(id string) (*spool.Record, error) {
	f.Supervisor.CheckAndFinalize(id)
	rec, ok := f.Store.Read(id)
	if !ok {
		return nil, errf("spool %s not found", id)
	}
	return rec, nil
}

// SpinDrop implements `spin_drop`.
func (f *Facade) SpinDrop(id string) error {
	if err := f.Supervisor.CancelRunning(id); err != nil {
		return err
	}
	return nil
}

// SpinWait implements `spin_wait`: block until all (gather) or any (yield)
// of ids complete, or timeoutSeconds elapses.
func (f *Facade) SpinWait(ctx context.Context, ids []string, mode string, timeoutSeconds int) (map[string]*spool.Record, error) {
	if len(ids) == 0 {
		return map[string]*spool.Record{}, nil
	}
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	if timeoutSeconds <= 0 {
		deadline = time.Time{}
	}

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	collect := func() map[string]*spool.Record {
		out := make(map[string]*spool.Record, len(ids))
		for _, id := range ids {
			f.Supervisor.CheckAndFinalize(id)
			if rec, ok := f.Store.Read(id); ok {
				out[id] = rec
			}
		}
		return out
	}

	for {
		recs := collect()
		doneCount := 0
		for _, rec := range recs {
			if rec != nil && rec.Status.Terminal() {
				doneCount++
			}
		}

		if mode == "yield" && doneCount > 0 {
			return recs, nil
		}
		if mode != "yield" && doneCount == len(ids) {
			return recs, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return recs, nil
		}

		select {
		case <-ctx.Done():
			return recs, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SpoolRetry implements `spool_retry`: a new spin with the same params.
//
// Open question 1 (spec §9, resolved in SPEC_FULL.md §9): a sharded
// spool's working_dir points at the worktree, which may already be cleaned
// up. spool_retry always re-runs shard creation fresh rather than reusing
// the stored working_dir whenever the original record carries an embedded
// Shard.
func (f *Facade) SpoolRetry(ctx context.Context, id string) (string, error) {
	orig, ok := f.Store.Read(id)
	if !ok {
		return "", errf("spool %s not found", id)
	}

	args := SpinArgs{
		Prompt:       orig.Prompt,
		Permission:   orig.Permission,
		SystemPrompt: orig.SystemPrompt,
		AllowedTools: nonEmptyPtr(orig.AllowedTools),
		Tags:         orig.Tags,
		Model:        orig.Model,
		Timeout:      orig.Timeout,
		Skeinless:    orig.SkeinLess,
		Harness:      orig.Harness,
	}

	if orig.IsSharded() {
		args.ShardSet = true
		args.Shard = true
		args.WorkingDir = orig.WorkingDir // Spin replaces it with the new worktree path
	} else {
		args.WorkingDir = orig.WorkingDir
	}

	return f.Spin(ctx, args)
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SpindleReload implements `spindle_reload`: drop the reload_signal
// touchfile for an external supervisor to observe.
func (f *Facade) SpindleReload() error {
	path := config.ReloadSignalPath()
	return writeTouchfile(path)
}
