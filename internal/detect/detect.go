// Package detect locates the claude/gemini harness binaries spindle shells
// out to, so spin can fail fast with a clear error instead of leaving a
// spool stuck in "pending" behind a reservation it can never fulfill.
//
// Grounded on the ancestor CLI's internal/detect/detect.go Scan(), trimmed
// from a multi-agent (claude/codex/vibe/opencode/gemini) PATH scanner with
// version probing and reasoning-level/model-catalog discovery down to the
// two harnesses spindle actually runs — there's no agentmeta-style catalog
// of capabilities/models/reasoning-levels here, since spin never needs to
// choose among them, only confirm one exists.
package detect

import (
	"os/exec"

	"github.com/spiritengine/spindle/internal/spool"
)

// binaryFor maps a harness to the command name it shells out to.
func binaryFor(h spool.Harness) string {
	switch h {
	case spool.HarnessGemini:
		return "gemini"
	default:
		return "claude"
	}
}

// Available reports whether the given harness's CLI binary is on PATH.
func Available(h spool.Harness) bool {
	_, err := exec.LookPath(binaryFor(h))
	return err == nil
}

// Path returns the resolved path to the harness's CLI binary, or "" if it
// is not on PATH.
func Path(h spool.Harness) string {
	path, err := exec.LookPath(binaryFor(h))
	if err != nil {
		return ""
	}
	return path
}
