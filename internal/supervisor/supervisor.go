// Package supervisor implements the Process Supervisor (spec §4.5): detached
// child spawning, per-spool polling monitors, finalization, timeout
// enforcement, and cancellation.
//
// Children are placed in a new session (syscall.SysProcAttr{Setsid: true})
// rather than merely a new process group, so a daemon restart does not
// orphan-kill them — the ancestor CLI's own child-spawning code
// (internal/agent/claude.go) only sets Setpgid and relies on cmd.Wait()
// inside the same process lifetime, which cannot survive a daemon restart;
// the detached-session idiom here is instead grounded on that CLI's own
// internal/session/daemon.go, which self-execs a long-lived daemon the same
// way. Completion is detected by polling (stdout-completion heuristic +
// pid liveness), never by blocking in Wait, for the same reason.
package supervisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/spiritengine/spindle/internal/harness"
	"github.com/spiritengine/spindle/internal/permission"
	"github.com/spiritengine/spindle/internal/spindlelog"
	"github.com/spiritengine/spindle/internal/spool"
)

const pollInterval = 2 * time.Second
const sigtermGrace = 500 * time.Millisecond
const stderrTruncateLen = 500

// sessionExpiredSentinel is the exact stderr marker that triggers transcript
// fallback (spec §4.7).
const sessionExpiredSentinel = "No conversation found with session ID"

// Supervisor owns the lifecycle of every running spool.
type Supervisor struct {
	store *spool.Store
	log   *spindlelog.Logger

	mu       sync.Mutex
	monitors map[string]cancelFunc
}

type cancelFunc func()

// New creates a Supervisor backed by store.
func New(store *spool.Store, log *spindlelog.Logger) *Supervisor {
	if log == nil {
		log = spindlelog.Global()
	}
	return &Supervisor{store: store, log: log, monitors: make(map[string]cancelFunc)}
}

// SpawnRequest describes a single spin/respin invocation, already past
// admission (spec data flow, §2).
type SpawnRequest struct {
	ID           string
	Harness      spool.Harness
	WorkingDir   string
	Prompt       string
	EffectivePrompt string // prompt with shard preamble, if sharded
	SystemPrompt *string
	Model        *string
	ResumeID     *string
	Mode         permission.BypassMode
	AllowedTools string
	Timeout      *int // seconds
}

// SpawnDetached starts the child process redirected to the spool's stdout
// and stderr files, in a new session, and returns its pid; the caller
// records the pid on the spool record.
// working_dir must be provided by the caller — the supervisor never
// defaults to its own cwd (spec §4.5).
func (s *Supervisor) SpawnDetached(req SpawnRequest) (pid int, cleanup func(), err error) {
	if req.WorkingDir == "" {
		return 0, nil, fmt.Errorf("spin: working_dir is required")
	}

	var launcherPath string
	if req.Harness == spool.HarnessGemini {
		launcherPath = s.store.LauncherPath(req.ID)
	}

	composed, err := harness.Compose(req.Harness, harness.SpawnArgs{
		Prompt:       promptOrDefault(req.EffectivePrompt, req.Prompt),
		SystemPrompt: req.SystemPrompt,
		Model:        req.Model,
		ResumeID:     req.ResumeID,
		Mode:         req.Mode,
		AllowedTools: req.AllowedTools,
		LauncherPath: launcherPath,
	})
	if err != nil {
		return 0, nil, err
	}

	stdoutF, err := os.OpenFile(s.store.StdoutPath(req.ID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, nil, fmt.Errorf("spin: open stdout file: %w", err)
	}
	stderrF, err := os.OpenFile(s.store.StderrPath(req.ID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		stdoutF.Close()
		return 0, nil, fmt.Errorf("spin: open stderr file: %w", err)
	}

	cmd := exec.Command(composed.Command, composed.Args...)
	cmd.Dir = req.WorkingDir
	cmd.Stdout = stdoutF
	cmd.Stderr = stderrF
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	cmd.Env = os.Environ()
	for k, v := range composed.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if err := cmd.Start(); err != nil {
		stdoutF.Close()
		stderrF.Close()
		return 0, nil, fmt.Errorf("spin: start child: %w", err)
	}

	pid = cmd.Process.Pid
	// The child is detached: completion is observed by polling, never by
	// Wait. A reaper goroutine calls Wait only to release the OS-level
	// resources once the process exits, without blocking finalization on it.
	go func() { cmd.Wait() }()

	closeFiles := func() {
		stdoutF.Close()
		stderrF.Close()
		if composed.Cleanup != nil {
			composed.Cleanup()
		}
	}
	return pid, closeFiles, nil
}

func promptOrDefault(effective, original string) string {
	if effective != "" {
		return effective
	}
	return original
}

// StartMonitor launches the per-spool monitor goroutine for id (spec §4.5).
// It runs for the daemon's lifetime or until the spool reaches a terminal
// state.
func (s *Supervisor) StartMonitor(id string, maxBytes int) {
	s.mu.Lock()
	if _, exists := s.monitors[id]; exists {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.monitors[id] = func() { close(stop) }
	s.mu.Unlock()

	go s.monitorLoop(id, stop)
}

func (s *Supervisor) monitorLoop(id string, stop chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	defer s.forgetMonitor(id)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.tick(id) {
				return
			}
		}
	}
}

func (s *Supervisor) forgetMonitor(id string) {
	s.mu.Lock()
	delete(s.monitors, id)
	s.mu.Unlock()
}

// tick runs one monitor iteration; returns true if the monitor should stop
// (the spool reached a terminal state or vanished).
func (s *Supervisor) tick(id string) bool {
	rec, ok := s.store.Read(id)
	if !ok || rec.Status != spool.StatusRunning {
		return true
	}

	if rec.Timeout != nil {
		deadline := rec.CreatedAt.Add(time.Duration(*rec.Timeout) * time.Second)
		if time.Now().After(deadline) {
			s.enforceTimeout(rec)
			return true
		}
	}

	if rec.SessionID != nil {
		stderr, _ := os.ReadFile(s.store.StderrPath(id))
		if bytes.Contains(stderr, []byte(sessionExpiredSentinel)) {
			if s.tryTranscriptFallback(rec) {
				return false // continues running under the new pid
			}
		}
	}

	done := s.CheckAndFinalize(id)
	return done
}

// enforceTimeout delivers SIGTERM, waits the grace period, SIGKILLs if
// still alive, and marks the spool timed out (spec §4.5 step 2).
func (s *Supervisor) enforceTimeout(rec *spool.Record) {
	if rec.PID != nil {
		signalProcessGroup(*rec.PID, syscall.SIGTERM)
		time.Sleep(sigtermGrace)
		if processAlive(*rec.PID) {
			signalProcessGroup(*rec.PID, syscall.SIGKILL)
		}
	}

	release, ok, err := s.store.TryFinalizeLock(rec.ID)
	if err != nil || !ok {
		return
	}
	defer release()

	rec, stillOK := s.store.Read(rec.ID)
	if !stillOK || rec.Status.Terminal() {
		return
	}
	rec.Status = spool.StatusTimeout
	errMsg := fmt.Sprintf("Timeout after %ds", valueOrZero(rec.Timeout))
	rec.Error = &errMsg
	now := time.Now().UTC()
	rec.CompletedAt = &now
	s.store.Write(rec)
	s.store.DeleteTransientOutputs(rec.ID)
	s.log.Infow("supervisor", "spool timed out", "id", rec.ID)
}

func valueOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// CheckAndFinalize implements check_and_finalize (spec §4.5). It returns
// true iff finalization (or an already-terminal observation) was performed
// by this caller.
func (s *Supervisor) CheckAndFinalize(id string) bool {
	release, ok, err := s.store.TryFinalizeLock(id)
	if err != nil {
		s.log.Errorw("supervisor", "finalize lock error", "id", id, "err", err.Error())
		return false
	}
	if !ok {
		return false
	}
	defer release()

	rec, exists := s.store.Read(id)
	if !exists {
		return true
	}
	if rec.Status.Terminal() {
		return true
	}
	if rec.Status != spool.StatusRunning {
		return false
	}

	stdout, _ := os.ReadFile(s.store.StdoutPath(id))
	stderr, _ := os.ReadFile(s.store.StderrPath(id))

	alive := rec.PID != nil && processAlive(*rec.PID)
	parsed, parseable := parseResultJSON(stdout)

	if alive && !parseable {
		return false
	}

	s.finalize(rec, stdout, stderr, parsed, parseable)
	return true
}

type resultPayload struct {
	Result    *string         `json:"result"`
	SessionID *string         `json:"session_id"`
	Cost      json.RawMessage `json:"cost"`
	Error     *string         `json:"error"`
}

func parseResultJSON(stdout []byte) (resultPayload, bool) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return resultPayload{}, false
	}
	var p resultPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return resultPayload{}, false
	}
	if p.Result == nil && p.Error == nil {
		return resultPayload{}, false
	}
	return p, true
}

func (s *Supervisor) finalize(rec *spool.Record, stdout, stderr []byte, parsed resultPayload, parseable bool) {
	now := time.Now().UTC()

	switch {
	case parseable:
		if parsed.Result != nil {
			rec.Result = parsed.Result
		} else {
			out := string(stdout)
			rec.Result = &out
		}
		rec.SessionID = parsed.SessionID
		rec.Cost = parsed.Cost
		rec.Status = spool.StatusComplete
	case len(bytes.TrimSpace(stdout)) > 0:
		out := string(stdout)
		rec.Result = &out
		rec.Status = spool.StatusComplete
	case len(bytes.TrimSpace(stderr)) > 0:
		rec.Status = spool.StatusError
		truncated := truncate(string(stderr), stderrTruncateLen)
		rec.Error = &truncated
	default:
		rec.Status = spool.StatusError
		msg := "Process exited with no output"
		rec.Error = &msg
	}

	rec.CompletedAt = &now
	if err := s.store.Write(rec); err != nil {
		s.log.Errorw("supervisor", "finalize write failed", "id", rec.ID, "err", err.Error())
		return
	}

	if rec.SessionID != nil && *rec.SessionID != "" && len(stdout) > 0 {
		_ = os.WriteFile(s.store.TranscriptPath(rec.ID), stdout, 0o644)
	}

	s.store.DeleteTransientOutputs(rec.ID)
	s.log.Infow("supervisor", "spool finalized", "id", rec.ID, "status", string(rec.Status))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CancelRunning implements spin_drop (spec §4.5): refuse if not running;
// SIGTERM the process group; mark error; cleanup transient files.
func (s *Supervisor) CancelRunning(id string) error {
	rec, ok := s.store.Read(id)
	if !ok {
		return fmt.Errorf("Error: spool %s not found", id)
	}
	if rec.Status != spool.StatusRunning {
		return fmt.Errorf("Error: spool %s is not running", id)
	}

	if rec.PID != nil {
		if err := signalProcessGroup(*rec.PID, syscall.SIGTERM); err != nil {
			syscall.Kill(*rec.PID, syscall.SIGTERM)
		}
	}

	release, ok, err := s.store.TryFinalizeLock(id)
	if err != nil {
		return err
	}
	if !ok {
		// Another finalizer is in flight; that's fine, it will observe
		// cancellation via process death shortly.
		return nil
	}
	defer release()

	rec, exists := s.store.Read(id)
	if !exists || rec.Status.Terminal() {
		return nil
	}
	rec.Status = spool.StatusError
	msg := "Cancelled by user"
	rec.Error = &msg
	now := time.Now().UTC()
	rec.CompletedAt = &now
	if err := s.store.Write(rec); err != nil {
		return err
	}
	s.store.DeleteTransientOutputs(id)
	return nil
}

func signalProcessGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

func processAlive(pid int) bool {
	// Signal 0 performs error checking without sending a signal.
	err := syscall.Kill(pid, 0)
	return err == nil
}
