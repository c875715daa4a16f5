package supervisor

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spiritengine/spindle/internal/permission"
	"github.com/spiritengine/spindle/internal/spool"
)

// tryTranscriptFallback implements the monitor-observed branch of respin
// fallback (spec §4.7): the failing child is killed; if a transcript exists
// for this spool it is replayed as a fresh prompt without any resume flag.
// Returns true if a replacement child was spawned (the caller should keep
// monitoring the same record under its new pid).
func (s *Supervisor) tryTranscriptFallback(rec *spool.Record) bool {
	if rec.PID != nil {
		signalProcessGroup(*rec.PID, syscall.SIGTERM)
	}

	transcript, err := os.ReadFile(s.store.TranscriptPath(rec.ID))
	if err != nil || len(transcript) == 0 {
		// No transcript: let normal finalization observe the failure as an
		// error (spec §4.7 step 3).
		return false
	}

	newPrompt := fmt.Sprintf(
		"Previous conversation transcript:\n\n%s\n\n---\n\nContinue from above. New message: %s",
		string(transcript), rec.Prompt,
	)

	mode := permission.ModeAcceptEdits
	if rec.Permission == "full" || rec.Permission == "shard" || hasShardSuffix(rec.Permission) {
		mode = permission.ModeBypass
	}

	pid, cleanup, err := s.SpawnDetached(SpawnRequest{
		ID:              rec.ID,
		Harness:         rec.Harness,
		WorkingDir:      rec.WorkingDir,
		Prompt:          rec.Prompt,
		EffectivePrompt: newPrompt,
		SystemPrompt:    rec.SystemPrompt,
		Model:           rec.Model,
		ResumeID:        nil, // re-spawn without any resume flag
		Mode:            mode,
		AllowedTools:    rec.AllowedTools,
		Timeout:         rec.Timeout,
	})
	if err != nil {
		s.log.Errorw("supervisor", "transcript fallback respawn failed", "id", rec.ID, "err", err.Error())
		return false
	}

	cleanup()
	rec.PID = &pid
	rec.UsedTranscriptFallback = true
	if werr := s.store.Write(rec); werr != nil {
		s.log.Errorw("supervisor", "transcript fallback write failed", "id", rec.ID, "err", werr.Error())
		return false
	}
	s.log.Infow("supervisor", "transcript fallback respawned", "id", rec.ID, "pid", pid)
	return true
}

func hasShardSuffix(permissionName string) bool {
	return len(permissionName) >= 6 && permissionName[len(permissionName)-6:] == "+shard"
}
