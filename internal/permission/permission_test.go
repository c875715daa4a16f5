package permission

import "testing"

func TestResolveReadonly(t *testing.T) {
	r := Resolve("readonly", nil)
	if r.Profile != "readonly" {
		t.Errorf("Profile = %q, want readonly", r.Profile)
	}
	if r.AutoShard {
		t.Errorf("readonly should not auto-shard")
	}
	if r.Mode != ModeAcceptEdits {
		t.Errorf("readonly mode = %q, want accept-edits", r.Mode)
	}
	if r.AllowedTools == "" {
		t.Errorf("readonly should have a restricted, non-empty allowed_tools list")
	}
}

func TestResolveCareful(t *testing.T) {
	r := Resolve("careful", nil)
	if r.AutoShard {
		t.Errorf("careful should not auto-shard")
	}
	if r.Mode != ModeAcceptEdits {
		t.Errorf("careful mode = %q, want accept-edits", r.Mode)
	}
	if r.AllowedTools == "" {
		t.Errorf("careful should have a non-empty allowed_tools list")
	}
}

func TestResolveFull(t *testing.T) {
	r := Resolve("full", nil)
	if r.AllowedTools != "" {
		t.Errorf("full should be unrestricted, got %q", r.AllowedTools)
	}
	if r.AutoShard {
		t.Errorf("full should not auto-shard")
	}
	if r.Mode != ModeBypass {
		t.Errorf("full mode = %q, want bypass-permissions", r.Mode)
	}
}

func TestResolveShard(t *testing.T) {
	r := Resolve("shard", nil)
	if r.AllowedTools != "" {
		t.Errorf("shard should be unrestricted, got %q", r.AllowedTools)
	}
	if !r.AutoShard {
		t.Errorf("shard should auto-shard")
	}
	if r.Mode != ModeBypass {
		t.Errorf("shard mode = %q, want bypass-permissions", r.Mode)
	}
}

func TestResolveCarefulShard(t *testing.T) {
	r := Resolve("careful+shard", nil)
	if !r.AutoShard {
		t.Errorf("careful+shard should auto-shard")
	}
	if r.Mode != ModeBypass {
		t.Errorf("careful+shard mode = %q, want bypass-permissions (+shard suffix)", r.Mode)
	}
	if r.AllowedTools == "" {
		t.Errorf("careful+shard should keep careful's restricted tool list")
	}
}

func TestResolveUnknownFallsBackToCareful(t *testing.T) {
	r := Resolve("nonsense-profile", nil)
	if r.Profile != "careful" {
		t.Errorf("unknown profile resolved to %q, want fallback careful", r.Profile)
	}
}

func TestResolveEmptyDefaultsToCareful(t *testing.T) {
	r := Resolve("", nil)
	if r.Profile != "careful" {
		t.Errorf("empty profile resolved to %q, want careful", r.Profile)
	}
}

func TestResolveExplicitAllowedToolsWinsAndSuppressesAutoShard(t *testing.T) {
	explicit := "Read,Write"
	r := Resolve("shard", &explicit)
	if r.AllowedTools != explicit {
		t.Errorf("AllowedTools = %q, want explicit override %q", r.AllowedTools, explicit)
	}
	if r.AutoShard {
		t.Errorf("explicit allowed_tools must suppress auto_shard even for the shard profile")
	}
	if r.Mode != ModeBypass {
		t.Errorf("mode should still derive from the shard profile name, got %q", r.Mode)
	}
}

// TestResolveExplicitAllowedToolsWithUnknownProfileFallsBackToCareful pins
// that the explicit-allowed_tools path normalizes an unknown profile name
// the same way the implicit path does, so a persisted Record.Permission
// re-resolves identically on a later spool_retry/respin.
func TestResolveExplicitAllowedToolsWithUnknownProfileFallsBackToCareful(t *testing.T) {
	explicit := "Read,Write"
	r := Resolve("typo-profile", &explicit)
	if r.Profile != "careful" {
		t.Errorf("Profile = %q, want fallback careful", r.Profile)
	}
	if r.Mode != ModeAcceptEdits {
		t.Errorf("Mode = %q, want accept-edits (careful's mode)", r.Mode)
	}
}
