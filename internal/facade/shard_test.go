package facade

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spiritengine/spindle/internal/config"
	"github.com/spiritengine/spindle/internal/shard"
	"github.com/spiritengine/spindle/internal/skein"
	"github.com/spiritengine/spindle/internal/spindlelog"
	"github.com/spiritengine/spindle/internal/spool"
	"github.com/spiritengine/spindle/internal/supervisor"
)

func initGitRepoForFacade(t *testing.T) string {
	t.Helper()
	repo := t.TempDir()
	runGitForFacade(t, repo, "init")
	runGitForFacade(t, repo, "checkout", "-b", "main")
	if err := os.WriteFile(filepath.Join(repo, "main.txt"), []byte("initial\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	runGitForFacade(t, repo, "add", "main.txt")
	runGitForFacade(t, repo, "-c", "user.name=Test", "-c", "user.email=test@example.com", "commit", "-m", "initial")
	return repo
}

func runGitForFacade(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, string(out))
	}
	return string(out)
}

func newShardedFacade(t *testing.T) (*Facade, string, shard.Info) {
	t.Helper()
	repo := initGitRepoForFacade(t)
	store, err := spool.New(t.TempDir())
	if err != nil {
		t.Fatalf("spool.New: %v", err)
	}
	sup := supervisor.New(store, spindlelog.NewDiscard())
	mgr := shard.NewManager(repo)
	cfg := &config.Config{MaxConcurrent: 5}
	f := New(store, sup, mgr, nil, cfg, repo)

	info, err := mgr.Create(context.Background(), repo, "agent-1")
	if err != nil {
		t.Fatalf("Create shard: %v", err)
	}

	rec := &spool.Record{
		ID:         "aaaaaaaa",
		Status:     spool.StatusComplete,
		WorkingDir: info.WorktreePath,
		Shard:      &spool.Shard{WorktreePath: info.WorktreePath, BranchName: info.BranchName, ShardID: info.ShardID},
	}
	if err := store.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return f, repo, info
}

func TestShardStatusForShardedSpool(t *testing.T) {
	f, _, _ := newShardedFacade(t)
	st, err := f.ShardStatus(context.Background(), "aaaaaaaa")
	if err != nil {
		t.Fatalf("ShardStatus: %v", err)
	}
	if !st.Exists {
		t.Errorf("Exists = false, want true")
	}
	if st.SpoolStatus != spool.StatusComplete {
		t.Errorf("SpoolStatus = %q, want complete", st.SpoolStatus)
	}
}

func TestShardStatusUnshardedSpoolErrors(t *testing.T) {
	f := newTestFacade(t, nil)
	seedRecord(t, f, &spool.Record{ID: "bbbbbbbb", Status: spool.StatusComplete})
	if _, err := f.ShardStatus(context.Background(), "bbbbbbbb"); err == nil {
		t.Errorf("ShardStatus on an unsharded spool did not error")
	}
}

func TestShardMergeRefusesWhenCallerInsideWorktree(t *testing.T) {
	f, _, info := newShardedFacade(t)
	_, err := f.ShardMerge(context.Background(), "aaaaaaaa", false, info.WorktreePath)
	if err == nil || !strings.Contains(err.Error(), "refusing to merge") {
		t.Errorf("ShardMerge from inside the worktree = %v, want refusal", err)
	}
}

func TestShardMergeSucceedsAndCleansUp(t *testing.T) {
	f, repo, info := newShardedFacade(t)

	if err := os.WriteFile(filepath.Join(info.WorktreePath, "shard.txt"), []byte("x\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	runGitForFacade(t, info.WorktreePath, "add", "shard.txt")
	runGitForFacade(t, info.WorktreePath, "-c", "user.name=Test", "-c", "user.email=test@example.com", "commit", "-m", "shard work")

	commit, err := f.ShardMerge(context.Background(), "aaaaaaaa", false, repo)
	if err != nil {
		t.Fatalf("ShardMerge: %v", err)
	}
	if commit == "" {
		t.Errorf("ShardMerge returned an empty commit hash")
	}
	if _, err := os.Stat(info.WorktreePath); err == nil {
		t.Errorf("worktree still present after merge cleanup")
	}

	rec, ok := f.Store.Read("aaaaaaaa")
	if !ok {
		t.Fatalf("record missing after merge")
	}
	if !rec.Shard.Merged {
		t.Errorf("Shard.Merged = false after a successful merge")
	}
}

func TestShardMergeRefusesWhenDirty(t *testing.T) {
	f, repo, info := newShardedFacade(t)
	if err := os.WriteFile(filepath.Join(info.WorktreePath, "dirty.txt"), []byte("x\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := f.ShardMerge(context.Background(), "aaaaaaaa", false, repo)
	if err == nil || !strings.Contains(err.Error(), "uncommitted changes") {
		t.Errorf("ShardMerge with a dirty worktree = %v, want uncommitted-changes refusal", err)
	}
}

func TestShardAbandonCleansUp(t *testing.T) {
	f, repo, info := newShardedFacade(t)
	if err := f.ShardAbandon(context.Background(), "aaaaaaaa", false, repo); err != nil {
		t.Fatalf("ShardAbandon: %v", err)
	}
	if _, err := os.Stat(info.WorktreePath); err == nil {
		t.Errorf("worktree still present after abandon")
	}
	rec, ok := f.Store.Read("aaaaaaaa")
	if !ok {
		t.Fatalf("record missing after abandon")
	}
	if !rec.Shard.Abandoned {
		t.Errorf("Shard.Abandoned = false after ShardAbandon")
	}
}

// TestShardMergeClosesTenderByShardID pins the SKEIN tender-close contract:
// CloseTender matches folios on a bare worktree/shard name, so ShardMerge
// must pass info.ShardID, not the worktree's filesystem path.
func TestShardMergeClosesTenderByShardID(t *testing.T) {
	f, repo, info := newShardedFacade(t)

	var threadsClosed atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/folios"):
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]map[string]any{
				{
					"id":     "folio-1",
					"status": "open",
					"metadata": map[string]string{
						"worktree_name": info.ShardID,
					},
				},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/threads":
			threadsClosed.Add(1)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	f.Skein = skein.New(srv.URL, "agent-1")

	if err := os.WriteFile(filepath.Join(info.WorktreePath, "shard.txt"), []byte("x\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	runGitForFacade(t, info.WorktreePath, "add", "shard.txt")
	runGitForFacade(t, info.WorktreePath, "-c", "user.name=Test", "-c", "user.email=test@example.com", "commit", "-m", "shard work")

	if _, err := f.ShardMerge(context.Background(), "aaaaaaaa", false, repo); err != nil {
		t.Fatalf("ShardMerge: %v", err)
	}
	if threadsClosed.Load() != 1 {
		t.Errorf("threadsClosed = %d, want 1 (CloseTender should match the folio by ShardID)", threadsClosed.Load())
	}
}
