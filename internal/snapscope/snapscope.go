// Package snapscope provides the scoped snapshot handle of
// SPEC_FULL.md §4.3: taking an engine snapshot is the first thing a
// read-modify-write command does, and releasing it on every exit path
// (success, error, or panic) is mandatory so long-lived readers never
// pin engine memory. This mirrors the teacher's guarded-resource idiom
// (the directory flock, the active data file) generalized to the
// engine's per-CF btree clones.
package snapscope

import "github.com/PikaLabs/blackwidow/internal/engine"

// snapshotter is satisfied by *engine.DB; named as an interface so
// stores can be tested against a fake engine.
type snapshotter interface {
	NewSnapshot() *engine.Snapshot
}

// Scope owns one engine snapshot for the lifetime of a command. Callers
// open a Scope at the start of a command and Close it via defer:
//
//	scope := snapscope.Open(db)
//	defer scope.Close()
//	v, err := scope.Snapshot().Get(cfMeta, key)
type Scope struct {
	snap *engine.Snapshot
}

// Open takes a fresh snapshot from db.
func Open(db snapshotter) *Scope {
	return &Scope{snap: db.NewSnapshot()}
}

// Snapshot returns the scope's underlying snapshot for reads.
func (s *Scope) Snapshot() *engine.Snapshot { return s.snap }

// Close releases the snapshot. Safe to call multiple times.
func (s *Scope) Close() {
	if s.snap != nil {
		s.snap.Release()
		s.snap = nil
	}
}
