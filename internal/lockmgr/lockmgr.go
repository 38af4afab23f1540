// Package lockmgr provides per-user-key exclusive locking: a sharded
// table of bucket mutexes, each guarding a map of refcounted per-key
// mutexes, as described in SPEC_FULL.md §4.2. Mutual exclusion is exact
// on the byte-string user_key; fairness is not guaranteed and recursive
// acquisition is not supported.
package lockmgr

import (
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

const numBuckets = 256

type entry struct {
	mu       sync.Mutex
	refcount int
}

type bucket struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Manager is a fixed-size array of bucket tables indexed by a hash of
// the key, so acquisitions on unrelated keys rarely contend on the same
// bucket mutex.
type Manager struct {
	buckets      [numBuckets]*bucket
	waitObserver func(time.Duration)
}

// New creates a lock manager ready to serve Acquire calls.
func New() *Manager {
	m := &Manager{}
	for i := range m.buckets {
		m.buckets[i] = &bucket{entries: make(map[string]*entry)}
	}
	return m
}

func (m *Manager) bucketFor(key []byte) *bucket {
	h := xxh3.Hash(key)
	return m.buckets[h%uint64(numBuckets)]
}

// ObserveWait registers fn to be called with how long each Acquire
// spent blocked on the per-key mutex. Stores wire this to
// engine.Metrics.LockWait (SPEC_FULL.md §5.2); nil (the default) skips
// timing entirely.
func (m *Manager) ObserveWait(fn func(time.Duration)) {
	m.waitObserver = fn
}

// Guard is returned by Acquire; call Release exactly once to unlock.
type Guard struct {
	mgr *Manager
	b   *bucket
	key string
	e   *entry
}

// Acquire blocks until it holds exclusive access to key, returning a
// Guard the caller must Release. Callers must never re-acquire the same
// key from the same goroutine (recursive acquisition deadlocks, by
// design — this layer doesn't support it).
func (m *Manager) Acquire(key []byte) *Guard {
	b := m.bucketFor(key)
	sk := string(key)

	b.mu.Lock()
	e, ok := b.entries[sk]
	if !ok {
		e = &entry{}
		b.entries[sk] = e
	}
	e.refcount++
	b.mu.Unlock()

	start := time.Now()
	e.mu.Lock()
	if m.waitObserver != nil {
		m.waitObserver(time.Since(start))
	}

	return &Guard{mgr: m, b: b, key: sk, e: e}
}

// Release unlocks the key this Guard was acquired for. It is not
// idempotent — a second call unlocks an unlocked mutex (a fatal error),
// or, if another goroutine has since locked the key, releases that
// goroutine's lock and corrupts the refcount.
func (g *Guard) Release() {
	g.e.mu.Unlock()

	g.b.mu.Lock()
	g.e.refcount--
	if g.e.refcount == 0 {
		delete(g.b.entries, g.key)
	}
	g.b.mu.Unlock()
}

// AcquireTwo locks two user_keys in a fixed, deadlock-free order:
// lexicographically by key, collapsing to a single acquisition when the
// keys are equal. Used by RPoplpush (SPEC_FULL.md §4.8, §5).
func (m *Manager) AcquireTwo(a, b []byte) (ga, gb *Guard) {
	if string(a) == string(b) {
		g := m.Acquire(a)
		return g, g
	}
	if string(a) < string(b) {
		ga = m.Acquire(a)
		gb = m.Acquire(b)
		return ga, gb
	}
	gb = m.Acquire(b)
	ga = m.Acquire(a)
	return ga, gb
}

// ReleaseTwo releases the guards from AcquireTwo, correctly handling the
// collapsed single-guard case.
func ReleaseTwo(ga, gb *Guard) {
	if ga == gb {
		ga.Release()
		return
	}
	ga.Release()
	gb.Release()
}
