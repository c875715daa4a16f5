// Package shard implements the Shard Manager (spec §4.6): creation,
// inspection, merging, and destruction of isolated git worktrees, plus the
// optional sandbox-wrapper command composition.
//
// Grounded on the ancestor CLI's internal/worktree package: the same
// git-subcommand sequencing (rev-parse HEAD, branch, worktree add/remove/
// prune) and the same timestamp-plus-nonce uniqueness
// scheme for directory/branch naming (worktree.BranchName), generalized
// from per-parent-turn naming to flat per-shard naming.
package shard

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spiritengine/spindle/internal/spoolid"
)

const worktreeSubdir = "shards"
const gitTimeout = 30 * time.Second

var sanitizePattern = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitize(s string) string {
	if s == "" {
		return "shard"
	}
	return sanitizePattern.ReplaceAllString(s, "-")
}

// Info identifies a created worktree.
type Info struct {
	WorktreePath string
	BranchName   string
	ShardID      string
}

// Manager owns worktree lifecycle operations against one main repository.
type Manager struct {
	repoRoot string
}

// NewManager returns a Manager rooted at repoRoot (the main git repository,
// not a worktree).
func NewManager(repoRoot string) *Manager {
	return &Manager{repoRoot: repoRoot}
}

// Name composes a unique worktree directory name: <agentID>-<UTC
// timestamp>-<6-hex nonce>. The timestamp has one-second resolution; the
// random nonce keeps names created within the same second distinct under
// rapid parallel creation (invariant 5).
func Name(agentID string) (dirName, shardID string) {
	shardID = spoolid.New()
	stamp := time.Now().UTC().Format("20060102T150405")
	dirName = fmt.Sprintf("%s-%s-%s", sanitize(agentID), stamp, spoolid.Nonce())
	return dirName, shardID
}

// Create creates a new worktree + branch under <baseDir>/shards/.
func (m *Manager) Create(ctx context.Context, baseDir, agentID string) (Info, error) {
	dirName, shardID := Name(agentID)
	base := filepath.Join(baseDir, worktreeSubdir)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return Info{}, fmt.Errorf("shard: create base dir: %w", err)
	}
	wtPath := filepath.Join(base, dirName)
	branch := "shard-" + dirName

	head, err := m.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return Info{}, fmt.Errorf("shard: rev-parse HEAD: %w", err)
	}
	head = strings.TrimSpace(head)

	if _, err := m.git(ctx, "branch", branch, head); err != nil {
		return Info{}, fmt.Errorf("shard: create branch: %w", err)
	}
	if _, err := m.git(ctx, "worktree", "add", wtPath, branch); err != nil {
		m.git(ctx, "branch", "-D", branch)
		return Info{}, fmt.Errorf("shard: worktree add: %w", err)
	}

	return Info{WorktreePath: wtPath, BranchName: branch, ShardID: shardID}, nil
}

// CleanupShard removes the worktree (force), optionally deletes the branch,
// then prunes worktree references (spec §4.6 Cleanup). A non-zero exit on
// removal is a failure that must be surfaced; a non-zero exit on branch
// deletion is a warning only.
func (m *Manager) CleanupShard(ctx context.Context, info Info, keepBranch bool) error {
	if _, err := m.git(ctx, "worktree", "remove", "--force", info.WorktreePath); err != nil {
		os.RemoveAll(info.WorktreePath)
		m.git(ctx, "worktree", "prune")
		return fmt.Errorf("shard: remove worktree %s: %w", info.WorktreePath, err)
	}
	if !keepBranch {
		if _, err := m.git(ctx, "branch", "-D", info.BranchName); err != nil {
			// warning only
		}
	}
	m.git(ctx, "worktree", "prune")
	return nil
}

// Status implements shard_status (spec §4.6).
type Status struct {
	Exists        bool
	GitChanges    []string
	CommitsAhead  int
}

func (m *Manager) Status(ctx context.Context, info Info, defaultBranch string) (Status, error) {
	if _, err := os.Stat(info.WorktreePath); err != nil {
		return Status{Exists: false}, nil
	}

	porcelain, err := m.gitIn(ctx, info.WorktreePath, "status", "--porcelain")
	if err != nil {
		return Status{}, fmt.Errorf("shard: status --porcelain: %w", err)
	}
	var lines []string
	for _, l := range strings.Split(porcelain, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	aheadOut, err := m.git(ctx, "rev-list", "--count", defaultBranch+".."+info.BranchName)
	ahead := 0
	if err == nil {
		ahead, _ = strconv.Atoi(strings.TrimSpace(aheadOut))
	}

	return Status{Exists: true, GitChanges: lines, CommitsAhead: ahead}, nil
}

// DiffStat returns the total inserted+deleted line count and changed-file
// count between defaultBranch and branch, via `git diff --numstat`, used by
// the dashboard's large-changeset classification (spec §4.8).
func (m *Manager) DiffStat(ctx context.Context, defaultBranch, branch string) (totalLines, files int, err error) {
	out, err := m.git(ctx, "diff", "--numstat", defaultBranch+"..."+branch)
	if err != nil {
		return 0, 0, fmt.Errorf("shard: diff --numstat: %w", err)
	}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		files++
		ins, _ := strconv.Atoi(fields[0])
		del, _ := strconv.Atoi(fields[1])
		totalLines += ins + del
	}
	return totalLines, files, nil
}

// HasUncommittedChanges is a convenience wrapper used by merge/abandon
// refusal logic.
func (m *Manager) HasUncommittedChanges(ctx context.Context, worktreePath string) (bool, error) {
	out, err := m.gitIn(ctx, worktreePath, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// DetectDefaultBranch resolves the repository's actual default branch
// instead of hard-coding "master" (SPEC_FULL.md §4.6, resolving open
// question 4): it first asks origin's symbolic HEAD, then returns "main"
// if a local main branch exists, and "master" otherwise.
func (m *Manager) DetectDefaultBranch(ctx context.Context) string {
	if out, err := m.git(ctx, "symbolic-ref", "refs/remotes/origin/HEAD"); err == nil {
		ref := strings.TrimSpace(out)
		if idx := strings.LastIndex(ref, "/"); idx >= 0 {
			return ref[idx+1:]
		}
	}
	if _, err := m.git(ctx, "show-ref", "--verify", "refs/heads/main"); err == nil {
		return "main"
	}
	return "master"
}

// MergeConflict reports whether merging branch into defaultBranch would
// conflict, via `git merge-tree --write-tree <default> <branch>` (spec
// §4.8 dashboard classification, testable property 8).
func (m *Manager) MergeConflict(ctx context.Context, defaultBranch, branch string) bool {
	_, err := m.git(ctx, "merge-tree", "--write-tree", defaultBranch, branch)
	return err != nil
}

// Merge implements shard_merge's git step (spec §4.6): `git merge <branch>
// --no-ff -m "..."` against the main repository, run in repoRoot (not the
// worktree).
func (m *Manager) Merge(ctx context.Context, defaultBranch, branch, message string, squash bool) (commitHash string, err error) {
	if squash {
		if _, err := m.git(ctx, "merge", "--squash", branch); err != nil {
			return "", fmt.Errorf("shard: merge --squash: %w", err)
		}
		if _, err := m.git(ctx, "commit", "-m", message); err != nil {
			return "", fmt.Errorf("shard: commit squash merge: %w", err)
		}
	} else {
		if _, err := m.git(ctx, "merge", branch, "--no-ff", "-m", message); err != nil {
			return "", fmt.Errorf("shard: merge --no-ff: %w", err)
		}
	}
	out, err := m.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("shard: rev-parse after merge: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// CallerInsideWorktree implements the safety guard (testable property 9):
// refuse shard_merge/shard_abandon when callerCwd is the worktree or a
// descendant of it.
func CallerInsideWorktree(callerCwd, worktreePath string) bool {
	if callerCwd == "" || worktreePath == "" {
		return false
	}
	cleanCaller := filepath.Clean(callerCwd)
	cleanWT := filepath.Clean(worktreePath)
	if cleanCaller == cleanWT {
		return true
	}
	return strings.HasPrefix(cleanCaller, cleanWT+string(filepath.Separator))
}

func (m *Manager) git(ctx context.Context, args ...string) (string, error) {
	return m.gitIn(ctx, m.repoRoot, args...)
}

func (m *Manager) gitIn(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return out.String(), nil
}
