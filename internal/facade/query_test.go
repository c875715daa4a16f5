package facade

import (
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/spiritengine/spindle/internal/spool"
)

func seedRecord(t *testing.T, f *Facade, rec *spool.Record) {
	t.Helper()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if err := f.Store.Write(rec); err != nil {
		t.Fatalf("Write(%s): %v", rec.ID, err)
	}
}

func TestSpoolsProjectsCompactSummary(t *testing.T) {
	f := newTestFacade(t, nil)
	seedRecord(t, f, &spool.Record{ID: "aaaaaaaa", Status: spool.StatusComplete, Prompt: "hello"})

	summaries := f.Spools()
	s, ok := summaries["aaaaaaaa"]
	if !ok {
		t.Fatalf("Spools() missing aaaaaaaa")
	}
	if s.Prompt != "hello" {
		t.Errorf("Prompt = %q, want hello", s.Prompt)
	}
}

func TestSpoolResultsFiltersByStatusAndSince(t *testing.T) {
	f := newTestFacade(t, nil)
	now := time.Now()
	seedRecord(t, f, &spool.Record{ID: "bbbbbbbb", Status: spool.StatusComplete, CreatedAt: now})
	seedRecord(t, f, &spool.Record{ID: "cccccccc", Status: spool.StatusError, CreatedAt: now.Add(-48 * time.Hour)})

	results, err := f.SpoolResults("complete", "", 0)
	if err != nil {
		t.Fatalf("SpoolResults: %v", err)
	}
	if len(results) != 1 || results[0].ID != "bbbbbbbb" {
		t.Errorf("SpoolResults(status=complete) = %+v, want just bbbbbbbb", results)
	}

	recent, err := f.SpoolResults("", "1d", 0)
	if err != nil {
		t.Fatalf("SpoolResults: %v", err)
	}
	for _, r := range recent {
		if r.ID == "cccccccc" {
			t.Errorf("SpoolResults(since=1d) included a 48h-old record")
		}
	}
}

func TestSpoolResultsInvalidSince(t *testing.T) {
	f := newTestFacade(t, nil)
	if _, err := f.SpoolResults("", "3w", 0); err == nil {
		t.Errorf("SpoolResults with an invalid since window did not error")
	}
}

func TestSpoolResultsTruncatesPromptAndResult(t *testing.T) {
	f := newTestFacade(t, nil)
	longPrompt := strings.Repeat("p", 200)
	longResult := strings.Repeat("r", 600)
	seedRecord(t, f, &spool.Record{ID: "dddddddd", Status: spool.StatusComplete, Prompt: longPrompt, Result: &longResult})

	results, err := f.SpoolResults("", "", 0)
	if err != nil {
		t.Fatalf("SpoolResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if len(results[0].Prompt) != 100 {
		t.Errorf("Prompt len = %d, want truncated to 100", len(results[0].Prompt))
	}
	if len(*results[0].Result) != 500 {
		t.Errorf("Result len = %d, want truncated to 500", len(*results[0].Result))
	}
	// The store's own record must be untouched by the truncated copy.
	orig, _ := f.Store.Read("dddddddd")
	if len(orig.Prompt) != 200 {
		t.Errorf("SpoolResults mutated the underlying stored record's prompt")
	}
}

func TestSpoolSearchFindsPromptAndResult(t *testing.T) {
	f := newTestFacade(t, nil)
	result := "the answer is forty-two"
	seedRecord(t, f, &spool.Record{ID: "eeeeeeee", Status: spool.StatusComplete, Prompt: "what is the ANSWER", Result: &result})

	matches, err := f.SpoolSearch("answer", "both")
	if err != nil {
		t.Fatalf("SpoolSearch: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("SpoolSearch(both) = %d matches, want 2 (prompt + result)", len(matches))
	}
}

// TestSpoolSearchHandlesCaseFoldingWidthChange pins that a match after a
// character like U+0130 (whose lower-case form is multiple UTF-8 bytes
// wider) still slices a well-formed, correctly-positioned snippet instead of
// landing mid-rune.
func TestSpoolSearchHandlesCaseFoldingWidthChange(t *testing.T) {
	f := newTestFacade(t, nil)
	prompt := "İstanbul: please check the answer here"
	seedRecord(t, f, &spool.Record{ID: "77777777", Status: spool.StatusComplete, Prompt: prompt})

	matches, err := f.SpoolSearch("answer", "prompt")
	if err != nil {
		t.Fatalf("SpoolSearch: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("SpoolSearch = %d matches, want 1", len(matches))
	}
	if !strings.Contains(matches[0].Snippet, "answer") {
		t.Errorf("Snippet = %q, want it to contain %q", matches[0].Snippet, "answer")
	}
	if !utf8.ValidString(matches[0].Snippet) {
		t.Errorf("Snippet = %q is not valid UTF-8", matches[0].Snippet)
	}
}

func TestSpoolSearchInvalidField(t *testing.T) {
	f := newTestFacade(t, nil)
	if _, err := f.SpoolSearch("x", "nonsense"); err == nil {
		t.Errorf("SpoolSearch with an invalid field did not error")
	}
}

func TestSpoolGrepMatchesAndCounts(t *testing.T) {
	f := newTestFacade(t, nil)
	result := "error: foo\nerror: bar\nerror: foo"
	seedRecord(t, f, &spool.Record{ID: "ffffffff", Status: spool.StatusComplete, Result: &result})

	matches, err := f.SpoolGrep(`error: \w+`)
	if err != nil {
		t.Fatalf("SpoolGrep: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("SpoolGrep matches = %d, want 1", len(matches))
	}
	if matches[0].Count != 3 {
		t.Errorf("Count = %d, want 3", matches[0].Count)
	}
	if len(matches[0].Matches) != 2 {
		t.Errorf("distinct Matches = %d, want 2", len(matches[0].Matches))
	}
}

func TestSpoolGrepInvalidRegex(t *testing.T) {
	f := newTestFacade(t, nil)
	if _, err := f.SpoolGrep("("); err == nil {
		t.Errorf("SpoolGrep with an invalid regex did not error")
	}
}

func TestSpoolPeekTailsStdout(t *testing.T) {
	f := newTestFacade(t, nil)
	seedRecord(t, f, &spool.Record{ID: "11111111", Status: spool.StatusRunning})

	content := "line1\nline2\nline3\nline4\nline5\n"
	if err := writeTestFile(f.Store.StdoutPath("11111111"), content); err != nil {
		t.Fatalf("writeFileHelper: %v", err)
	}

	peek, err := f.SpoolPeek("11111111", 2)
	if err != nil {
		t.Fatalf("SpoolPeek: %v", err)
	}
	if peek.TotalLines != 5 {
		t.Errorf("TotalLines = %d, want 5", peek.TotalLines)
	}
	if peek.Tail != "line4\nline5" {
		t.Errorf("Tail = %q, want last 2 lines", peek.Tail)
	}
}

func TestSpoolPeekMissingSpool(t *testing.T) {
	f := newTestFacade(t, nil)
	if _, err := f.SpoolPeek("nosuchid", 10); err == nil {
		t.Errorf("SpoolPeek for a missing spool did not error")
	}
}

func TestSpoolInfoReportsTranscriptAvailability(t *testing.T) {
	f := newTestFacade(t, nil)
	seedRecord(t, f, &spool.Record{ID: "22222222", Status: spool.StatusComplete})

	info, err := f.SpoolInfo("22222222")
	if err != nil {
		t.Fatalf("SpoolInfo: %v", err)
	}
	if info.TranscriptAvailable {
		t.Errorf("TranscriptAvailable = true without a transcript file")
	}

	if err := writeTestFile(f.Store.TranscriptPath("22222222"), "transcript body"); err != nil {
		t.Fatalf("writeFileHelper: %v", err)
	}
	info2, err := f.SpoolInfo("22222222")
	if err != nil {
		t.Fatalf("SpoolInfo: %v", err)
	}
	if !info2.TranscriptAvailable {
		t.Errorf("TranscriptAvailable = false with a transcript file present")
	}
	if info2.TranscriptSizeBytes != int64(len("transcript body")) {
		t.Errorf("TranscriptSizeBytes = %d, want %d", info2.TranscriptSizeBytes, len("transcript body"))
	}
}

func TestSpoolStatsTotalsAndBounds(t *testing.T) {
	f := newTestFacade(t, nil)
	now := time.Now()
	seedRecord(t, f, &spool.Record{ID: "33333333", Status: spool.StatusComplete, CreatedAt: now.Add(-time.Hour)})
	seedRecord(t, f, &spool.Record{ID: "44444444", Status: spool.StatusComplete, CreatedAt: now})
	seedRecord(t, f, &spool.Record{ID: "55555555", Status: spool.StatusError, CreatedAt: now.Add(-2 * time.Hour)})

	stats := f.SpoolStats()
	if stats.TotalsByStatus[spool.StatusComplete] != 2 {
		t.Errorf("TotalsByStatus[complete] = %d, want 2", stats.TotalsByStatus[spool.StatusComplete])
	}
	if stats.TotalsByStatus[spool.StatusError] != 1 {
		t.Errorf("TotalsByStatus[error] = %d, want 1", stats.TotalsByStatus[spool.StatusError])
	}
	if stats.Oldest == nil || !stats.Oldest.Equal(now.Add(-2*time.Hour)) {
		t.Errorf("Oldest = %v, want 2h ago", stats.Oldest)
	}
	if stats.Newest == nil || !stats.Newest.Equal(now) {
		t.Errorf("Newest = %v, want now", stats.Newest)
	}
}

func TestSpoolExportJSONAndMarkdown(t *testing.T) {
	f := newTestFacade(t, nil)
	result := "done"
	seedRecord(t, f, &spool.Record{ID: "66666666", Status: spool.StatusComplete, Prompt: "p", Result: &result})

	jsonPath, err := f.SpoolExport([]string{"all"}, "json", "")
	if err != nil {
		t.Fatalf("SpoolExport(json): %v", err)
	}
	if !strings.HasSuffix(jsonPath, "export.json") {
		t.Errorf("jsonPath = %q, want export.json suffix", jsonPath)
	}

	mdPath, err := f.SpoolExport([]string{"66666666"}, "md", "")
	if err != nil {
		t.Fatalf("SpoolExport(md): %v", err)
	}
	if !strings.HasSuffix(mdPath, "export.md") {
		t.Errorf("mdPath = %q, want export.md suffix", mdPath)
	}
}

func TestSpoolExportInvalidFormat(t *testing.T) {
	f := newTestFacade(t, nil)
	if _, err := f.SpoolExport([]string{"all"}, "yaml", ""); err == nil {
		t.Errorf("SpoolExport with an invalid format did not error")
	}
}

func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
