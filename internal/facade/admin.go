package facade

import (
	"context"
	"os"
	"time"
)

// HealthPayload is the GET /health response body (spec §6).
type HealthPayload struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	RunningSpools  int     `json:"running_spools"`
	MaxConcurrent  int     `json:"max_concurrent"`
}

// Health implements the /health endpoint contract.
func (f *Facade) Health() HealthPayload {
	running := 0
	for _, rec := range f.Store.List() {
		if rec.Status == "running" {
			running++
		}
	}
	return HealthPayload{
		Status:        "healthy",
		UptimeSeconds: time.Since(f.StartedAt).Seconds(),
		RunningSpools: running,
		MaxConcurrent: f.Cfg.MaxConcurrent,
	}
}

func writeTouchfile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(time.Now().UTC().Format(time.RFC3339))
	return err
}

// triagePromptTemplate is the fixed prompt template for the `triage` tool
// (spec §4.9).
const triagePromptTemplate = `Inspect the contents of this worktree and determine what work is present. ` +
	`Summarize findings and, if a peer workflow service is available, submit a tender describing the work via SKEIN.`

// Triage implements the `triage` tool: sugar spawning an internal spool
// pointed at worktreePath with careful permission (no auto-shard) and tag
// "triage".
func (f *Facade) Triage(ctx context.Context, worktreePath string) (string, error) {
	return f.Spin(ctx, SpinArgs{
		Prompt:     triagePromptTemplate,
		Permission: "careful",
		ShardSet:   true,
		Shard:      false,
		WorkingDir: worktreePath,
		Tags:       []string{"triage"},
		Harness:    "",
	})
}
