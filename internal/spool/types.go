// Package spool implements the durable spool record store: the single
// source of truth for every delegated child task (spec §3, §4.2).
package spool

import (
	"encoding/json"
	"time"
)

// Status is the spool lifecycle state (spec §4.1).
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
	StatusTimeout  Status = "timeout"
)

// Terminal reports whether s is a terminal state. Terminal states are
// permanent — invariant 1.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusError, StatusTimeout:
		return true
	default:
		return false
	}
}

// Harness selects argv/parsing conventions for the child process (spec §3).
type Harness string

const (
	HarnessClaude Harness = "claude"
	HarnessGemini Harness = "gemini"
)

// Shard is the embedded substructure present iff a spool is sharded
// (spec §3).
type Shard struct {
	WorktreePath string     `json:"worktree_path"`
	BranchName   string     `json:"branch_name"`
	ShardID      string     `json:"shard_id"`
	Merged       bool       `json:"merged,omitempty"`
	MergedAt     *time.Time `json:"merged_at,omitempty"`
	Abandoned    bool       `json:"abandoned,omitempty"`
	AbandonedAt  *time.Time `json:"abandoned_at,omitempty"`
}

// Record is the persistent spool record, one per delegated task (spec §3).
type Record struct {
	ID                     string          `json:"id"`
	Status                 Status          `json:"status"`
	Harness                Harness         `json:"harness"`
	Prompt                 string          `json:"prompt"`
	Result                 *string         `json:"result"`
	SessionID              *string         `json:"session_id"`
	WorkingDir             string          `json:"working_dir"`
	AllowedTools           string          `json:"allowed_tools"`
	Permission             string          `json:"permission"`
	SystemPrompt           *string         `json:"system_prompt"`
	Tags                   []string        `json:"tags"`
	Shard                  *Shard          `json:"shard,omitempty"`
	Model                  *string         `json:"model"`
	Timeout                *int            `json:"timeout"`
	CreatedAt              time.Time       `json:"created_at"`
	CompletedAt            *time.Time      `json:"completed_at,omitempty"`
	PID                    *int            `json:"pid"`
	Cost                   json.RawMessage `json:"cost,omitempty"`
	Error                  *string         `json:"error"`
	UsedTranscriptFallback bool            `json:"used_transcript_fallback"`

	// AutoShard records whether shard was requested implicitly by the
	// resolved permission profile rather than explicitly by the caller.
	// spool_retry decides whether to shard from Shard, not from this flag.
	AutoShard bool `json:"auto_shard,omitempty"`
	// SkeinLess skips closing SKEIN tender folios when this spool's shard is
	// merged; shard creation still goes through SKEIN when it is healthy.
	SkeinLess bool `json:"skeinless,omitempty"`
}

// IsSharded reports whether the record has an embedded, not-yet-cleaned-up
// shard.
func (r *Record) IsSharded() bool {
	return r.Shard != nil
}
