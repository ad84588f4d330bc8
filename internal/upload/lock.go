package upload

import (
	"sync"
	"sync/atomic"
)

// assemblyLocks hands out one mutex per (targetDir, fingerprint) pair so
// that exactly one goroutine may attempt final-file assembly at a time,
// per §4.4/§9. The pattern — a sync.Map of refcounted per-key mutexes,
// evicted once the refcount returns to zero — is adapted from the
// teacher's store.CAS.lockHash, which used the same pool shape to
// serialize writes to a given content hash. Here the key is the
// (targetDir, fingerprint) pair instead of a SHA-256 hex string.
type assemblyLocks struct {
	mu sync.Map // map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int32
}

func newAssemblyLocks() *assemblyLocks {
	return &assemblyLocks{}
}

func assemblyKey(targetDir, fingerprint string) string {
	return targetDir + "\x00" + fingerprint
}

// lock acquires the mutex for (targetDir, fingerprint) and returns an
// unlock function. Callers MUST call the returned function exactly once.
func (a *assemblyLocks) lock(targetDir, fingerprint string) (unlock func()) {
	key := assemblyKey(targetDir, fingerprint)

	// Atomically get-or-create the entry and bump its refcount before
	// locking, so the entry can never be evicted while someone holds it.
	v, _ := a.mu.LoadOrStore(key, &lockEntry{})
	e := v.(*lockEntry)
	atomic.AddInt32(&e.refs, 1)
	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		if atomic.AddInt32(&e.refs, -1) == 0 {
			a.mu.CompareAndDelete(key, e)
		}
	}
}
