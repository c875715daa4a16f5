package spool

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spiritengine/spindle/internal/spoolid"
)

// Store is the on-disk directory holding one JSON record per spool plus
// transient stdout/stderr files and per-spool lock files (spec §2.1).
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool: create store dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "transcripts"), 0o755); err != nil {
		return nil, fmt.Errorf("spool: create transcripts dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) recordPath(id string) string { return filepath.Join(s.dir, id+".json") }
func (s *Store) tmpPath(id string) string    { return filepath.Join(s.dir, id+".tmp."+spoolid.Nonce()) }
func (s *Store) lockPath(id string) string   { return filepath.Join(s.dir, id+".lock") }

// StdoutPath returns the transient stdout file path for id.
func (s *Store) StdoutPath(id string) string { return filepath.Join(s.dir, id+".stdout") }

// StderrPath returns the transient stderr file path for id.
func (s *Store) StderrPath(id string) string { return filepath.Join(s.dir, id+".stderr") }

// LauncherPath returns the path of the secondary harness's generated
// launcher script.
func (s *Store) LauncherPath(id string) string { return filepath.Join(s.dir, id+".py") }

// TranscriptPath returns the durable transcript path for id.
func (s *Store) TranscriptPath(id string) string {
	return filepath.Join(s.dir, "transcripts", id+".txt")
}

// LockPath exposes the per-spool advisory lock file path.
func (s *Store) LockPath(id string) string { return s.lockPath(id) }

// Write serializes record to a temp file and renames it over <id>.json — the
// atomic write required by invariant 5. The temp file lives in the same
// directory so the rename is same-filesystem and therefore atomic.
func (s *Store) Write(record *Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("spool: marshal record %s: %w", record.ID, err)
	}
	tmp := s.tmpPath(record.ID)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("spool: write temp record %s: %w", record.ID, err)
	}
	if err := os.Rename(tmp, s.recordPath(record.ID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("spool: rename record %s: %w", record.ID, err)
	}
	return nil
}

// Read parses <id>.json. Missing or unparseable records are treated as
// absent: callers recover, the store never surfaces a parse error upward
// as a crash condition.
func (s *Store) Read(id string) (*Record, bool) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	return &rec, true
}

// List enumerates all *.json children, skipping unparseable entries.
func (s *Store) List() []*Record {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil
	}
	out := make([]*Record, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if rec, ok := s.Read(id); ok {
			out = append(out, rec)
		}
	}
	return out
}

// FindBySession performs the linear scan of List() specified for
// find_by_session.
func (s *Store) FindBySession(sessionID string) (*Record, bool) {
	for _, rec := range s.List() {
		if rec.SessionID != nil && *rec.SessionID == sessionID {
			return rec, true
		}
	}
	return nil, false
}

// Delete removes a spool's record and transient siblings (stdout, stderr,
// lock, launcher). Missing files are not an error.
func (s *Store) Delete(id string) {
	for _, p := range []string{s.recordPath(id), s.StdoutPath(id), s.StderrPath(id), s.lockPath(id), s.LauncherPath(id)} {
		os.Remove(p)
	}
}

// DeleteTransientOutputs removes just the stdout/stderr siblings, called at
// the end of finalization (invariant 3).
func (s *Store) DeleteTransientOutputs(id string) {
	os.Remove(s.StdoutPath(id))
	os.Remove(s.StderrPath(id))
}

const recordMaxAge = 24 * time.Hour

// Sweep performs the startup sweep (spec §4.2): delete records older than
// 24h, and return the ids of records still `running` so the caller can run
// finalization/recovery monitoring on them (spec §8 invariant 10, scenario F).
func (s *Store) Sweep(now time.Time) (stillRunning []string) {
	for _, rec := range s.List() {
		if now.Sub(rec.CreatedAt) > recordMaxAge {
			s.Delete(rec.ID)
			continue
		}
		if rec.Status == StatusRunning {
			stillRunning = append(stillRunning, rec.ID)
		}
	}
	return stillRunning
}

// SortByCreatedDesc sorts records newest-first, in place.
func SortByCreatedDesc(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
