package commands

import (
	"os"
	"strconv"
	"testing"
)

func TestReadDaemonPIDMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	pid, alive := readDaemonPID()
	if alive || pid != 0 {
		t.Errorf("readDaemonPID() = (%d, %v), want (0, false) with no pidfile", pid, alive)
	}
}

func TestReadDaemonPIDStaleEntry(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	// PID 999999 is extremely unlikely to be a live process in any test
	// environment.
	if err := os.WriteFile(pidFilePath(), []byte("999999"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pid, alive := readDaemonPID()
	if alive {
		t.Errorf("readDaemonPID() reported a stale pid as alive")
	}
	if pid != 999999 {
		t.Errorf("pid = %d, want 999999", pid)
	}
}

func TestReadDaemonPIDLiveProcess(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	self := os.Getpid()
	if err := os.WriteFile(pidFilePath(), []byte(strconv.Itoa(self)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pid, alive := readDaemonPID()
	if !alive || pid != self {
		t.Errorf("readDaemonPID() = (%d, %v), want (%d, true) for the current process", pid, alive, self)
	}
}

func TestStopDaemonNotRunning(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := stopDaemon(); err == nil {
		t.Errorf("stopDaemon() with no pidfile did not error")
	}
}
