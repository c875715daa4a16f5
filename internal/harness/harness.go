// Package harness parameterizes the Process Supervisor over "how do I turn
// (prompt, model, system_prompt) into argv" for each child binary family
// (spec §3 `harness` field, §9 "Secondary harness (Gemini)").
//
// Both harnesses share the same lifecycle and the same terminal-stdout JSON
// parsing convention (spec §4.5); only argv composition and launcher
// bookkeeping differ, grounded respectively on the ancestor CLI's
// internal/agent/claude.go and internal/agent/gemini.go.
package harness

import (
	"fmt"
	"os"

	"github.com/spiritengine/spindle/internal/permission"
	"github.com/spiritengine/spindle/internal/spool"
)

// SpawnArgs carries everything a harness needs to compose argv/env for one
// child invocation.
type SpawnArgs struct {
	Prompt       string
	SystemPrompt *string
	Model        *string
	ResumeID     *string // set on respin
	Mode         permission.BypassMode
	AllowedTools string // empty means unrestricted, never emitted as a flag
	LauncherPath string // only used by the gemini harness
}

// Composed is the result of composing a child invocation: the command name,
// argv, and any extra env overlay.
type Composed struct {
	Command string
	Args    []string
	Env     map[string]string
	// Cleanup removes any generated launcher file; nil if none was created.
	Cleanup func()
}

// Compose builds the argv/env for harness h.
func Compose(h spool.Harness, a SpawnArgs) (Composed, error) {
	switch h {
	case spool.HarnessClaude:
		return composeClaude(a), nil
	case spool.HarnessGemini:
		return composeGemini(a)
	default:
		return Composed{}, fmt.Errorf("harness: unknown harness %q", h)
	}
}

func composeClaude(a SpawnArgs) Composed {
	args := []string{"--print", "--output-format", "json"}
	if a.ResumeID != nil && *a.ResumeID != "" {
		args = append(args, "--resume", *a.ResumeID)
	}
	if a.Model != nil && *a.Model != "" {
		args = append(args, "--model", *a.Model)
	}
	if a.SystemPrompt != nil && *a.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", *a.SystemPrompt)
	}
	switch a.Mode {
	case permission.ModeBypass:
		args = append(args, "--dangerously-skip-permissions")
	default:
		args = append(args, "--permission-mode", "acceptEdits")
	}
	if a.AllowedTools != "" {
		args = append(args, "--allowedTools", a.AllowedTools)
	}
	args = append(args, a.Prompt)

	return Composed{Command: "claude", Args: args, Env: map[string]string{}}
}

// composeGemini additionally writes a small launcher script the gemini CLI
// is invoked through when LauncherPath is set (spec §9); Composed.Cleanup
// removes it. The launcher only execs gemini with the composed argv: the
// model is passed as --model and the system prompt through the
// GEMINI_SYSTEM_PROMPT environment variable.
func composeGemini(a SpawnArgs) (Composed, error) {
	args := []string{"--output-format", "json"}
	if a.ResumeID != nil && *a.ResumeID != "" {
		args = append(args, "--resume", *a.ResumeID)
	}
	if a.Model != nil && *a.Model != "" {
		args = append(args, "--model", *a.Model)
	}
	args = append(args, "-y", "-p", a.Prompt)

	env := map[string]string{}
	if a.SystemPrompt != nil && *a.SystemPrompt != "" {
		env["GEMINI_SYSTEM_PROMPT"] = *a.SystemPrompt
	}

	if a.LauncherPath != "" {
		script := "#!/bin/sh\nexec gemini \"$@\"\n"
		if err := os.WriteFile(a.LauncherPath, []byte(script), 0o755); err != nil {
			return Composed{}, fmt.Errorf("harness: write gemini launcher: %w", err)
		}
		cleanup := func() { os.Remove(a.LauncherPath) }
		return Composed{Command: a.LauncherPath, Args: args, Env: env, Cleanup: cleanup}, nil
	}

	return Composed{Command: "gemini", Args: args, Env: env}, nil
}
