package facade

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/spiritengine/spindle/internal/shard"
	"github.com/spiritengine/spindle/internal/spool"
)

// AttentionReason enumerates the dashboard's needing-attention
// classifications (spec §4.8, testable property 8).
type AttentionReason string

const (
	ReasonUncommittedChanges AttentionReason = "uncommitted changes"
	ReasonMergeConflict      AttentionReason = "merge conflict"
	ReasonLargeChangeset     AttentionReason = "large changeset"
)

// AttentionItem pairs a spool id with why it needs attention.
type AttentionItem struct {
	ID     string          `json:"id"`
	Reason AttentionReason `json:"reason"`
	Detail string          `json:"detail,omitempty"`
}

// RecentCompletion is one row of the dashboard's recent-completions list.
type RecentCompletion struct {
	ID        string       `json:"id"`
	Status    spool.Status `json:"status"`
	Age       string       `json:"age"`
	CreatedAt time.Time    `json:"created_at"`
}

// DashboardResult is the `spool_dashboard` response (spec §4.8).
type DashboardResult struct {
	Running           int                `json:"running"`
	CompleteLastHour  int                `json:"complete_last_hour"`
	ErrorsTotal       int                `json:"errors_total"`
	ErrorsLastHour    int                `json:"errors_last_hour"`
	RecentCompletions []RecentCompletion `json:"recent_completions"`
	NeedingAttention  []AttentionItem    `json:"needing_attention"`
}

const largeChangesetLineThreshold = 500
const largeChangesetFileThreshold = 10
const maxRecentCompletions = 10

// SpoolDashboard implements `spool_dashboard`.
func (f *Facade) SpoolDashboard(ctx context.Context) DashboardResult {
	now := time.Now()
	hourAgo := now.Add(-time.Hour)

	records := f.Store.List()
	var result DashboardResult
	var completions []RecentCompletion
	defaultBranch := f.Shards.DetectDefaultBranch(ctx)

	for _, rec := range records {
		switch rec.Status {
		case spool.StatusRunning:
			result.Running++
		case spool.StatusComplete:
			if rec.CompletedAt != nil && rec.CompletedAt.After(hourAgo) {
				result.CompleteLastHour++
			}
			completions = append(completions, RecentCompletion{
				ID: rec.ID, Status: rec.Status, Age: humanAge(now, rec.CreatedAt), CreatedAt: rec.CreatedAt,
			})
		case spool.StatusError, spool.StatusTimeout:
			result.ErrorsTotal++
			if rec.CompletedAt != nil && rec.CompletedAt.After(hourAgo) {
				result.ErrorsLastHour++
			}
		}

		if rec.IsSharded() && !rec.Shard.Merged && !rec.Shard.Abandoned {
			result.NeedingAttention = append(result.NeedingAttention, f.classifyShard(ctx, rec, defaultBranch)...)
		}
	}

	sort.Slice(completions, func(i, j int) bool { return completions[i].CreatedAt.After(completions[j].CreatedAt) })
	if len(completions) > maxRecentCompletions {
		completions = completions[:maxRecentCompletions]
	}
	result.RecentCompletions = completions

	return result
}

func humanAge(now, created time.Time) string {
	d := now.Sub(created)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return pluralize(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return pluralize(int(d.Hours()), "hour")
	default:
		return pluralize(int(d.Hours()/24), "day")
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return strconv.Itoa(n) + " " + unit + "s ago"
}

// classifyShard applies the three dashboard classification rules (spec
// §4.8, testable property 8) to one sharded spool's embedded shard.
func (f *Facade) classifyShard(ctx context.Context, rec *spool.Record, defaultBranch string) []AttentionItem {
	info := shard.Info{WorktreePath: rec.Shard.WorktreePath, BranchName: rec.Shard.BranchName, ShardID: rec.Shard.ShardID}

	status, err := f.Shards.Status(ctx, info, defaultBranch)
	if err != nil || !status.Exists {
		return nil
	}

	var items []AttentionItem
	if status.CommitsAhead == 0 && len(status.GitChanges) > 0 {
		items = append(items, AttentionItem{ID: rec.ID, Reason: ReasonUncommittedChanges})
	}
	if f.Shards.MergeConflict(ctx, defaultBranch, rec.Shard.BranchName) {
		items = append(items, AttentionItem{ID: rec.ID, Reason: ReasonMergeConflict})
	}
	if totalLines, files, err := f.Shards.DiffStat(ctx, defaultBranch, rec.Shard.BranchName); err == nil {
		if totalLines > largeChangesetLineThreshold || files > largeChangesetFileThreshold {
			items = append(items, AttentionItem{
				ID: rec.ID, Reason: ReasonLargeChangeset,
				Detail: strconv.Itoa(totalLines) + " lines, " + strconv.Itoa(files) + " files",
			})
		}
	}
	return items
}
