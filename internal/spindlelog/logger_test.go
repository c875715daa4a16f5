package spindlelog

import (
	"path/filepath"
	"testing"
)

func TestInitCreatesRotatingLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spindle.log")
	l, err := Init(path)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if l == nil {
		t.Fatalf("Init returned a nil logger")
	}
	l.Infow("test", "hello", "k", "v")
	l.Sync()
}

func TestGlobalFallsBackToDiscard(t *testing.T) {
	globalMu.Lock()
	global = nil
	globalMu.Unlock()

	l := Global()
	if l == nil {
		t.Fatalf("Global() returned nil without Init")
	}
	l.Infow("test", "should not panic")
}

func TestNewDiscardDoesNotPanic(t *testing.T) {
	l := NewDiscard()
	l.Infow("test", "msg", "k", "v")
	l.Warnw("test", "warn")
	l.Errorw("test", "err")
	l.Sync()
}
