package facade

import (
	"context"
	"testing"
	"time"

	"github.com/spiritengine/spindle/internal/spool"
)

func TestSpoolDashboardCounts(t *testing.T) {
	f := newTestFacade(t, nil)
	now := time.Now()

	seedRecord(t, f, &spool.Record{ID: "aaaaaaaa", Status: spool.StatusRunning, CreatedAt: now})
	completedAt := now.Add(-10 * time.Minute)
	seedRecord(t, f, &spool.Record{ID: "bbbbbbbb", Status: spool.StatusComplete, CreatedAt: now.Add(-time.Hour), CompletedAt: &completedAt})
	oldCompletedAt := now.Add(-3 * time.Hour)
	seedRecord(t, f, &spool.Record{ID: "cccccccc", Status: spool.StatusError, CreatedAt: now.Add(-4 * time.Hour), CompletedAt: &oldCompletedAt})

	dash := f.SpoolDashboard(context.Background())
	if dash.Running != 1 {
		t.Errorf("Running = %d, want 1", dash.Running)
	}
	if dash.CompleteLastHour != 1 {
		t.Errorf("CompleteLastHour = %d, want 1", dash.CompleteLastHour)
	}
	if dash.ErrorsTotal != 1 {
		t.Errorf("ErrorsTotal = %d, want 1", dash.ErrorsTotal)
	}
	if dash.ErrorsLastHour != 0 {
		t.Errorf("ErrorsLastHour = %d, want 0 (error completed 3h ago)", dash.ErrorsLastHour)
	}
	if len(dash.RecentCompletions) != 1 {
		t.Errorf("RecentCompletions = %d, want 1 (only complete records listed)", len(dash.RecentCompletions))
	}
}

func TestHumanAge(t *testing.T) {
	now := time.Now()
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "just now"},
		{1 * time.Minute, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{1 * time.Hour, "1 hour ago"},
		{3 * time.Hour, "3 hours ago"},
		{25 * time.Hour, "1 day ago"},
	}
	for _, c := range cases {
		got := humanAge(now, now.Add(-c.ago))
		if got != c.want {
			t.Errorf("humanAge(%v ago) = %q, want %q", c.ago, got, c.want)
		}
	}
}
