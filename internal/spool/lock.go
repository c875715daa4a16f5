package spool

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// concurrencyLockName is the sole admission lock file (spec §3, §4.3).
const concurrencyLockName = ".concurrency.lock"

// ConcurrencyLockPath returns the path of the global admission lock.
func (s *Store) ConcurrencyLockPath() string {
	return filepath.Join(s.dir, concurrencyLockName)
}

// TryFinalizeLock attempts to acquire the per-spool lock non-blocking.
// Finalization must be non-blocking: if contended, the caller yields and the
// competing holder will complete the work (spec §4.3). The returned release
// func must be called to unlock, but only if ok is true.
func (s *Store) TryFinalizeLock(id string) (release func(), ok bool, err error) {
	fl := flock.New(s.lockPath(id))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("spool: try-lock %s: %w", id, err)
	}
	if !locked {
		return nil, false, nil
	}
	return func() { fl.Unlock() }, true, nil
}

// admissionCount counts spools currently occupying a concurrency slot
// (pending or running) — invariant 4.
func (s *Store) admissionCount() int {
	n := 0
	for _, rec := range s.List() {
		if rec.Status == StatusPending || rec.Status == StatusRunning {
			n++
		}
	}
	return n
}

// TryReserveSlotAndCreate implements try_reserve_slot_and_create (spec
// §4.3): holds the global admission lock across counting current
// pending+running spools and, if under limit, persisting the stub record.
// This is the sole mechanism that bounds concurrency — no other code path
// may create a running/pending record.
func (s *Store) TryReserveSlotAndCreate(maxConcurrent int, build func() *Record) (*Record, error) {
	fl := flock.New(s.ConcurrencyLockPath())
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("spool: acquire admission lock: %w", err)
	}
	defer fl.Unlock()

	if s.admissionCount() >= maxConcurrent {
		return nil, fmt.Errorf("Max %d concurrent spools reached", maxConcurrent)
	}
	rec := build()
	if err := s.Write(rec); err != nil {
		return nil, fmt.Errorf("spool: persist stub record: %w", err)
	}
	return rec, nil
}

// lockTimeout is not referenced by any call site; git subprocesses are
// bounded by the shard package's own gitTimeout.
const lockTimeout = 30 * time.Second
