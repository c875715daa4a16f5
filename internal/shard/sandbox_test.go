package shard

import "testing"

func TestWrapArgvUnchangedWhenSandboxUnavailable(t *testing.T) {
	if SandboxAvailable() {
		t.Skip("bwrap is on PATH in this environment; unwrapped-argv case not exercisable")
	}

	argv := []string{"claude", "--print"}
	got := WrapArgv("/repo", "/repo/shards/worker-1", argv)
	if len(got) != len(argv) {
		t.Errorf("WrapArgv changed argv length without a sandbox binary: %v", got)
	}
	for i := range argv {
		if got[i] != argv[i] {
			t.Errorf("WrapArgv altered argv[%d]: got %q, want %q", i, got[i], argv[i])
		}
	}
}

func TestWrapArgvEmptyArgvReturnsEmpty(t *testing.T) {
	got := WrapArgv("/repo", "/repo/shards/worker-1", nil)
	if len(got) != 0 {
		t.Errorf("WrapArgv(nil) = %v, want empty", got)
	}
}
