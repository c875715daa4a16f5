package facade

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spiritengine/spindle/internal/spool"
)

// SpoolSummary is the compact per-spool projection used by `spools`.
type SpoolSummary struct {
	Status    spool.Status `json:"status"`
	Prompt    string       `json:"prompt"`
	CreatedAt time.Time    `json:"created_at"`
	SessionID *string      `json:"session_id"`
}

// Spools implements the `spools` tool: compact dict projection of all
// spools. First calls recovery finalize on all running records.
func (f *Facade) Spools() map[string]SpoolSummary {
	records := f.Store.List()
	for _, rec := range records {
		if rec.Status == spool.StatusRunning {
			f.Supervisor.CheckAndFinalize(rec.ID)
		}
	}

	out := make(map[string]SpoolSummary, len(records))
	for _, rec := range f.Store.List() {
		out[rec.ID] = SpoolSummary{
			Status:    rec.Status,
			Prompt:    truncateRunes(rec.Prompt, 100),
			CreatedAt: rec.CreatedAt,
			SessionID: rec.SessionID,
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var ageWindows = map[string]time.Duration{
	"1h":  time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
}

// SpoolResults implements `spool_results`: filter by status, a relative age
// window from a small closed vocabulary, limit; sorted newest-first;
// prompt truncated to 100 chars, result to 500.
func (f *Facade) SpoolResults(status, since string, limit int) ([]*spool.Record, error) {
	var cutoff time.Time
	if since != "" {
		window, ok := ageWindows[since]
		if !ok {
			return nil, errf("invalid since window %q (expected one of 1h,6h,12h,1d,7d)", since)
		}
		cutoff = time.Now().Add(-window)
	}

	var out []*spool.Record
	for _, rec := range f.Store.List() {
		if status != "" && string(rec.Status) != status {
			continue
		}
		if !cutoff.IsZero() && rec.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, truncatedCopy(rec))
	}
	spool.SortByCreatedDesc(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func truncatedCopy(rec *spool.Record) *spool.Record {
	cp := *rec
	cp.Prompt = truncateRunes(rec.Prompt, 100)
	if rec.Result != nil {
		truncated := truncateRunes(*rec.Result, 500)
		cp.Result = &truncated
	}
	return &cp
}

// SearchMatch is one result of `spool_search`.
type SearchMatch struct {
	ID      string `json:"id"`
	Field   string `json:"field"`
	Snippet string `json:"snippet"`
}

// SpoolSearch implements `spool_search`: case-insensitive substring search
// over prompt, result, or both, with a context snippet (±30 chars for
// prompt, ±50 for result).
func (f *Facade) SpoolSearch(query, field string) ([]SearchMatch, error) {
	if field == "" {
		field = "both"
	}
	if field != "prompt" && field != "result" && field != "both" {
		return nil, errf("invalid field %q (expected prompt, result, or both)", field)
	}
	needle := strings.ToLower(query)

	var matches []SearchMatch
	for _, rec := range f.Store.List() {
		if field == "prompt" || field == "both" {
			if snippet, ok := snippetAround(rec.Prompt, needle, 30); ok {
				matches = append(matches, SearchMatch{ID: rec.ID, Field: "prompt", Snippet: snippet})
			}
		}
		if (field == "result" || field == "both") && rec.Result != nil {
			if snippet, ok := snippetAround(*rec.Result, needle, 50); ok {
				matches = append(matches, SearchMatch{ID: rec.ID, Field: "result", Snippet: snippet})
			}
		}
	}
	return matches, nil
}

// snippetAround locates lowerNeedle in a case-folded copy of text but walks
// runes (not the fold's byte offsets, which can shift for letters whose
// lower-case form has a different UTF-8 width, e.g. U+0130) to translate the
// match back into a safe slice of the original text.
func snippetAround(text, lowerNeedle string, radius int) (string, bool) {
	lower := strings.ToLower(text)
	byteIdx := strings.Index(lower, lowerNeedle)
	if byteIdx < 0 {
		return "", false
	}
	runes := []rune(text)
	matchStartRune := len([]rune(lower[:byteIdx]))
	matchRuneLen := len([]rune(lowerNeedle))

	start := matchStartRune - radius
	if start < 0 {
		start = 0
	}
	end := matchStartRune + matchRuneLen + radius
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end]), true
}

// GrepMatch is the per-spool result of `spool_grep`.
type GrepMatch struct {
	ID      string   `json:"id"`
	Count   int      `json:"count"`
	Matches []string `json:"matches"`
}

// SpoolGrep implements `spool_grep`: case-insensitive regex over results;
// first 10 distinct matches plus total count per spool; an invalid regex
// is an error, never a crash.
func (f *Facade) SpoolGrep(pattern string) ([]GrepMatch, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, errf("invalid regex: %v", err)
	}

	var out []GrepMatch
	for _, rec := range f.Store.List() {
		if rec.Result == nil {
			continue
		}
		all := re.FindAllString(*rec.Result, -1)
		if len(all) == 0 {
			continue
		}
		seen := make(map[string]bool)
		var distinct []string
		for _, m := range all {
			if !seen[m] {
				seen[m] = true
				distinct = append(distinct, m)
				if len(distinct) == 10 {
					break
				}
			}
		}
		out = append(out, GrepMatch{ID: rec.ID, Count: len(all), Matches: distinct})
	}
	return out, nil
}

// PeekResult is the `spool_peek` response.
type PeekResult struct {
	Status     spool.Status `json:"status"`
	TotalLines int          `json:"total_lines"`
	Tail       string       `json:"tail"`
}

// SpoolPeek implements `spool_peek`: tail the live stdout file by N lines
// with a header indicating status and total line count.
func (f *Facade) SpoolPeek(id string, lines int) (*PeekResult, error) {
	rec, ok := f.Store.Read(id)
	if !ok {
		return nil, errf("spool %s not found", id)
	}
	data, err := os.ReadFile(f.Store.StdoutPath(id))
	if err != nil {
		return &PeekResult{Status: rec.Status, TotalLines: 0, Tail: ""}, nil
	}

	allLines := splitLines(string(data))
	total := len(allLines)
	if lines <= 0 || lines > total {
		lines = total
	}
	tailLines := allLines[total-lines:]
	return &PeekResult{Status: rec.Status, TotalLines: total, Tail: strings.Join(tailLines, "\n")}, nil
}

func splitLines(s string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out
}

// InfoResult is the `spool_info` response: full record plus transcript meta.
type InfoResult struct {
	Record               *spool.Record `json:"record"`
	TranscriptAvailable  bool          `json:"transcript_available"`
	TranscriptSizeBytes  int64         `json:"transcript_size_bytes"`
}

// SpoolInfo implements `spool_info`.
func (f *Facade) SpoolInfo(id string) (*InfoResult, error) {
	rec, ok := f.Store.Read(id)
	if !ok {
		return nil, errf("spool %s not found", id)
	}
	info := &InfoResult{Record: rec}
	if st, err := os.Stat(f.Store.TranscriptPath(id)); err == nil {
		info.TranscriptAvailable = true
		info.TranscriptSizeBytes = st.Size()
	}
	return info, nil
}

// StatsResult is the `spool_stats` response.
type StatsResult struct {
	TotalsByStatus map[spool.Status]int `json:"totals_by_status"`
	Oldest         *time.Time           `json:"oldest"`
	Newest         *time.Time           `json:"newest"`
}

// SpoolStats implements `spool_stats`.
func (f *Facade) SpoolStats() StatsResult {
	result := StatsResult{TotalsByStatus: make(map[spool.Status]int)}
	for _, rec := range f.Store.List() {
		result.TotalsByStatus[rec.Status]++
		if result.Oldest == nil || rec.CreatedAt.Before(*result.Oldest) {
			t := rec.CreatedAt
			result.Oldest = &t
		}
		if result.Newest == nil || rec.CreatedAt.After(*result.Newest) {
			t := rec.CreatedAt
			result.Newest = &t
		}
	}
	return result
}

// markdownTemplate is the fixed export template (spec §6).
const markdownTemplate = "## %s\n**Status:** %s\n**Created:** %s\n\n### Prompt\n```\n%s\n```\n\n### Result\n```\n%s\n```\n\n---\n"

// SpoolExport implements `spool_export`: dump selected records to a file,
// json or md.
func (f *Facade) SpoolExport(ids []string, format, outputPath string) (string, error) {
	var records []*spool.Record
	if len(ids) == 1 && ids[0] == "all" {
		records = f.Store.List()
	} else {
		for _, id := range ids {
			if rec, ok := f.Store.Read(id); ok {
				records = append(records, rec)
			}
		}
	}
	spool.SortByCreatedDesc(records)

	if outputPath == "" {
		ext := "json"
		if format == "md" {
			ext = "md"
		}
		outputPath = fmt.Sprintf("%s/export.%s", f.Store.Dir(), ext)
	}

	var content string
	switch format {
	case "md":
		var b strings.Builder
		for _, rec := range records {
			result := ""
			if rec.Result != nil {
				result = *rec.Result
			}
			b.WriteString(fmt.Sprintf(markdownTemplate, rec.ID, rec.Status, rec.CreatedAt.Format(time.RFC3339), rec.Prompt, result))
		}
		content = b.String()
	case "json", "":
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", errf("marshal export: %v", err)
		}
		content = string(data)
	default:
		return "", errf("invalid format %q (expected json or md)", format)
	}

	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return "", errf("write export file: %v", err)
	}
	return outputPath, nil
}
