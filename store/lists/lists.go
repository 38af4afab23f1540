// Package lists implements the list store of SPEC_FULL.md §4.8: a meta
// column family carrying left/right free-position markers plus a node
// column family keyed by user_key, version and a signed 64-bit index.
// The list occupies [left+1, right-1]; pushing decrements left (LPush)
// or increments right (RPush), so both ends can grow without
// rebalancing the other.
package lists

import (
	"time"

	"github.com/PikaLabs/blackwidow/internal/codec"
	"github.com/PikaLabs/blackwidow/internal/engine"
	"github.com/PikaLabs/blackwidow/internal/lockmgr"
	"github.com/PikaLabs/blackwidow/internal/snapscope"
	"github.com/PikaLabs/blackwidow/internal/status"
	"github.com/PikaLabs/blackwidow/internal/verid"
)

const (
	cfMeta = "default"
	cfNode = "node_cf"
)

// ColumnFamilies lists the column families this store's engine.DB must
// be opened with.
var ColumnFamilies = []string{cfMeta, cfNode}

type Store struct {
	db    *engine.DB
	locks *lockmgr.Manager
	gen   *verid.Generator
	now   func() uint32
}

func New(db *engine.DB, now func() uint32) *Store {
	locks := lockmgr.New()
	if m := db.Metrics(); m != nil {
		locks.ObserveWait(func(d time.Duration) { m.LockWait.Observe(d.Seconds()) })
	}
	return &Store{db: db, locks: locks, gen: verid.New(), now: now}
}

func (s *Store) Close() error { return s.db.Close() }
func (s *Store) Compact()     { s.db.Compact() }

func (s *Store) observe(command string) func() { return s.db.Metrics().Observe("lists", command) }

// GetMeta implements internal/filter.MetaCapability.
func (s *Store) GetMeta(userKey []byte) ([]byte, error) {
	return s.db.Get(cfMeta, userKey)
}

func readMeta(scope *snapscope.Scope, key []byte, now uint32) (meta codec.ListMeta, found bool, st *status.Status) {
	raw, err := scope.Snapshot().Get(cfMeta, key)
	if err != nil {
		if err == engine.ErrKeyNotFound {
			return codec.ListMeta{}, false, nil
		}
		return codec.ListMeta{}, false, status.FromErr(err)
	}
	m, derr := codec.DecodeListMeta(raw)
	if derr != nil {
		return codec.ListMeta{}, false, status.Corruptionf("lists: %v", derr)
	}
	if m.IsStale(now) {
		return m, false, nil
	}
	return m, true, nil
}

func nodeKey(key []byte, version uint32, idx int64) []byte {
	return codec.EncodeListNodeKey(key, version, idx)
}

// push implements LPush (left=true) / RPush (left=false): values are
// written one at a time in call order. LPush decrements left for each
// value, so the last value ends up left-most (pushing a, b, c yields
// c, b, a); RPush increments right, so the last value ends up right-most.
func (s *Store) push(key []byte, values [][]byte, left bool) (int64, *status.Status) {
	if left {
		defer s.observe("LPush")()
	} else {
		defer s.observe("RPush")()
	}
	g := s.locks.Acquire(key)
	defer g.Release()

	scope := snapscope.Open(s.db)
	defer scope.Close()

	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return 0, st
	}
	var m codec.ListMeta
	version := uint32(0)
	if !liveMeta {
		version = s.gen.Next()
		m = codec.NewListMeta(version, 0)
	} else {
		m = meta.Clone()
		version = m.Version()
	}

	b := s.db.NewBatch()
	for _, v := range values {
		var idx int64
		if left {
			idx = m.Left()
			m.SetLeft(idx - 1)
		} else {
			idx = m.Right()
			m.SetRight(idx + 1)
		}
		b.Put(cfNode, nodeKey(key, version, idx), v)
	}
	b.Put(cfMeta, key, m.Bytes())
	if err := b.Commit(); err != nil {
		return 0, status.FromErr(err)
	}
	return m.Count(), nil
}

func (s *Store) LPush(key []byte, values [][]byte) (int64, *status.Status) { return s.push(key, values, true) }
func (s *Store) RPush(key []byte, values [][]byte) (int64, *status.Status) { return s.push(key, values, false) }

func (s *Store) pop(key []byte, left bool) ([]byte, *status.Status) {
	if left {
		defer s.observe("LPop")()
	} else {
		defer s.observe("RPop")()
	}
	g := s.locks.Acquire(key)
	defer g.Release()

	scope := snapscope.Open(s.db)
	defer scope.Close()

	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return nil, st
	}
	if !liveMeta || meta.Count() == 0 {
		return nil, status.ErrNotFound
	}

	m := meta.Clone()
	var idx int64
	if left {
		idx = m.Left() + 1
	} else {
		idx = m.Right() - 1
	}
	nk := nodeKey(key, m.Version(), idx)
	v, err := scope.Snapshot().Get(cfNode, nk)
	if err != nil {
		return nil, status.FromErr(err)
	}

	b := s.db.NewBatch()
	b.Delete(cfNode, nk)
	if left {
		m.SetLeft(idx)
	} else {
		m.SetRight(idx)
	}
	if m.Count() == 0 {
		m.ResetList(s.gen)
	}
	b.Put(cfMeta, key, m.Bytes())
	if err := b.Commit(); err != nil {
		return nil, status.FromErr(err)
	}
	return v, nil
}

func (s *Store) LPop(key []byte) ([]byte, *status.Status) { return s.pop(key, true) }
func (s *Store) RPop(key []byte) ([]byte, *status.Status) { return s.pop(key, false) }

// LLen returns right-left-1, 0 if absent/stale.
func (s *Store) LLen(key []byte) (int64, *status.Status) {
	defer s.observe("LLen")()
	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return 0, st
	}
	if !liveMeta {
		return 0, nil
	}
	return meta.Count(), nil
}

// normalizeIndex resolves a Redis-style (possibly negative) logical index
// against length, without clamping.
func normalizeIndex(index, length int64) int64 {
	if index < 0 {
		return length + index
	}
	return index
}

// LRange normalizes start/stop against LLen, clamps to the live range,
// and returns the elements in that (inclusive) range.
func (s *Store) LRange(key []byte, start, stop int64) ([][]byte, *status.Status) {
	defer s.observe("LRange")()
	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return nil, st
	}
	if !liveMeta {
		return nil, nil
	}
	length := meta.Count()
	start = normalizeIndex(start, length)
	stop = normalizeIndex(stop, length)
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	if length == 0 || start > stop || start >= length {
		return nil, nil
	}

	lower := meta.Left() + 1 + start
	upperExclusive := meta.Left() + 1 + stop + 1
	var out [][]byte
	err := scope.Snapshot().AscendRange(cfNode,
		nodeKey(key, meta.Version(), lower),
		nodeKey(key, meta.Version(), upperExclusive),
		func(_, value []byte) bool {
			out = append(out, value)
			return true
		})
	if err != nil {
		return nil, status.FromErr(err)
	}
	return out, nil
}

// LIndex reads one element without removing it.
func (s *Store) LIndex(key []byte, index int64) ([]byte, *status.Status) {
	defer s.observe("LIndex")()
	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return nil, st
	}
	if !liveMeta {
		return nil, status.ErrNotFound
	}
	length := meta.Count()
	index = normalizeIndex(index, length)
	if index < 0 || index >= length {
		return nil, status.ErrNotFound
	}
	v, err := scope.Snapshot().Get(cfNode, nodeKey(key, meta.Version(), meta.Left()+1+index))
	if err != nil {
		if err == engine.ErrKeyNotFound {
			return nil, status.ErrNotFound
		}
		return nil, status.FromErr(err)
	}
	return v, nil
}

// LSet overwrites the element at index.
func (s *Store) LSet(key []byte, index int64, value []byte) *status.Status {
	defer s.observe("LSet")()
	g := s.locks.Acquire(key)
	defer g.Release()

	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return st
	}
	if !liveMeta {
		return status.ErrNotFound
	}
	length := meta.Count()
	index = normalizeIndex(index, length)
	if index < 0 || index >= length {
		return status.ErrInvalidArgument
	}
	return status.FromErr(s.db.Put(cfNode, nodeKey(key, meta.Version(), meta.Left()+1+index), value))
}

// loadAll reads the values of every live element in order, left to
// right.
func (s *Store) loadAll(scope *snapscope.Scope, key []byte, meta codec.ListMeta) ([][]byte, *status.Status) {
	var out [][]byte
	err := scope.Snapshot().Ascend(cfNode, codec.SubkeyPrefix(key, meta.Version()), func(_, value []byte) bool {
		out = append(out, value)
		return true
	})
	if err != nil {
		return nil, status.FromErr(err)
	}
	return out, nil
}

// rewrite deletes every physical node for key's current version and
// writes elements as a fresh contiguous run starting at the existing
// left boundary, updating right accordingly. Used by LRem/LTrim, which
// change the set of live elements by more than one slot at once.
func (s *Store) rewrite(key []byte, meta codec.ListMeta, elements [][]byte, existing [][]byte) *status.Status {
	b := s.db.NewBatch()
	for i := range existing {
		b.Delete(cfNode, nodeKey(key, meta.Version(), meta.Left()+1+int64(i)))
	}
	m := meta.Clone()
	if len(elements) == 0 {
		m.ResetList(s.gen)
	} else {
		for i, v := range elements {
			b.Put(cfNode, nodeKey(key, meta.Version(), meta.Left()+1+int64(i)), v)
		}
		m.SetRight(meta.Left() + 1 + int64(len(elements)))
	}
	b.Put(cfMeta, key, m.Bytes())
	return status.FromErr(b.Commit())
}

// LRem removes matching elements: the first count from the left
// (count>0), the first |count| from the right (count<0), or every
// match (count==0). Returns the number removed.
func (s *Store) LRem(key []byte, count int64, value []byte) (int, *status.Status) {
	defer s.observe("LRem")()
	g := s.locks.Acquire(key)
	defer g.Release()

	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return 0, st
	}
	if !liveMeta {
		return 0, nil
	}
	existing, st := s.loadAll(scope, key, meta)
	if st != nil {
		return 0, st
	}

	keep := make([]bool, len(existing))
	for i := range keep {
		keep[i] = true
	}
	removed := 0
	eq := func(a, b []byte) bool {
		return len(a) == len(b) && string(a) == string(b)
	}
	switch {
	case count > 0:
		for i := 0; i < len(existing) && int64(removed) < count; i++ {
			if eq(existing[i], value) {
				keep[i] = false
				removed++
			}
		}
	case count < 0:
		limit := -count
		for i := len(existing) - 1; i >= 0 && int64(removed) < limit; i-- {
			if eq(existing[i], value) {
				keep[i] = false
				removed++
			}
		}
	default:
		for i := range existing {
			if eq(existing[i], value) {
				keep[i] = false
				removed++
			}
		}
	}
	if removed == 0 {
		return 0, nil
	}

	kept := make([][]byte, 0, len(existing)-removed)
	for i, v := range existing {
		if keep[i] {
			kept = append(kept, v)
		}
	}
	if st := s.rewrite(key, meta, kept, existing); st != nil {
		return 0, st
	}
	return removed, nil
}

// LTrim retains only [start, stop] (normalized, clamped), marking the
// list stale if the retained range is empty.
func (s *Store) LTrim(key []byte, start, stop int64) *status.Status {
	defer s.observe("LTrim")()
	g := s.locks.Acquire(key)
	defer g.Release()

	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return st
	}
	if !liveMeta {
		return nil
	}
	existing, st := s.loadAll(scope, key, meta)
	if st != nil {
		return st
	}
	length := int64(len(existing))
	start = normalizeIndex(start, length)
	stop = normalizeIndex(stop, length)
	if start < 0 {
		start = 0
	}
	if stop >= length {
		stop = length - 1
	}
	var kept [][]byte
	if start <= stop && start < length {
		kept = existing[start : stop+1]
	}
	return s.rewrite(key, meta, kept, existing)
}

// LInsert scans from the left end for pivot, then inserts value before
// or after it. Returns the new length, -1 if pivot wasn't found, or
// NotFound if the list is absent/stale.
func (s *Store) LInsert(key []byte, before bool, pivot, value []byte) (int64, *status.Status) {
	defer s.observe("LInsert")()
	g := s.locks.Acquire(key)
	defer g.Release()

	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return 0, st
	}
	if !liveMeta {
		return 0, status.ErrNotFound
	}
	existing, st := s.loadAll(scope, key, meta)
	if st != nil {
		return 0, st
	}

	pos := -1
	for i, v := range existing {
		if len(v) == len(pivot) && string(v) == string(pivot) {
			pos = i
			break
		}
	}
	if pos == -1 {
		return -1, nil
	}
	insertAt := pos
	if !before {
		insertAt = pos + 1
	}

	next := make([][]byte, 0, len(existing)+1)
	next = append(next, existing[:insertAt]...)
	next = append(next, value)
	next = append(next, existing[insertAt:]...)

	if st := s.rewrite(key, meta, next, existing); st != nil {
		return 0, st
	}
	return int64(len(next)), nil
}

// Expire rewrites key's meta expiry when ttlSeconds > 0, or marks it
// stale when ttlSeconds <= 0.
func (s *Store) Expire(key []byte, ttlSeconds int64) *status.Status {
	defer s.observe("Expire")()
	g := s.locks.Acquire(key)
	defer g.Release()
	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return st
	}
	if !liveMeta {
		return status.ErrNotFound
	}
	next := meta.Clone()
	if ttlSeconds <= 0 {
		next.ResetList(s.gen)
	} else {
		next.SetRelativeExpire(s.now(), ttlSeconds)
	}
	return status.FromErr(s.db.Put(cfMeta, key, next.Bytes()))
}

// Del marks key stale outright, reporting whether it had been live.
func (s *Store) Del(key []byte) (bool, *status.Status) {
	defer s.observe("Del")()
	g := s.locks.Acquire(key)
	defer g.Release()
	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return false, st
	}
	if !liveMeta {
		return false, nil
	}
	next := meta.Clone()
	next.ResetList(s.gen)
	if err := s.db.Put(cfMeta, key, next.Bytes()); err != nil {
		return false, status.FromErr(err)
	}
	return true, nil
}

// Exists reports whether key has a live meta.
func (s *Store) Exists(key []byte) (bool, *status.Status) {
	defer s.observe("Exists")()
	scope := snapscope.Open(s.db)
	defer scope.Close()
	_, liveMeta, st := readMeta(scope, key, s.now())
	return liveMeta, st
}

// Scan walks the meta CF starting at resume, emitting every live
// user_key matching match, stopping after count keys examined
// (SPEC_FULL.md §4.9). Returns the resume cursor for the next call, or
// nil once the CF is exhausted.
func (s *Store) Scan(resume []byte, count int, match func([]byte) bool, emit func([]byte)) ([]byte, *status.Status) {
	defer s.observe("Scan")()
	scope := snapscope.Open(s.db)
	defer scope.Close()

	var (
		visited   int
		last      []byte
		exhausted = true
	)
	err := scope.Snapshot().AscendFrom(cfMeta, resume, func(key, value []byte) bool {
		if visited >= count {
			exhausted = false
			return false
		}
		visited++
		last = append([]byte(nil), key...)
		m, derr := codec.DecodeListMeta(value)
		if derr == nil && !m.IsStale(s.now()) && match(key) {
			emit(key)
		}
		return true
	})
	if err != nil {
		return nil, status.FromErr(err)
	}
	if exhausted || last == nil {
		return nil, nil
	}
	return engine.NextKey(last), nil
}

// RPoplpush pops from src's right and pushes onto dst's left, holding
// both locks in lexicographic order (collapsing to one when src==dst)
// to avoid deadlocking against a concurrent reverse transfer.
func (s *Store) RPoplpush(src, dst []byte) ([]byte, *status.Status) {
	defer s.observe("RPoplpush")()
	ga, gb := s.locks.AcquireTwo(src, dst)
	defer lockmgr.ReleaseTwo(ga, gb)
	return s.rpoplpushLocked(src, dst)
}

func (s *Store) rpoplpushLocked(src, dst []byte) ([]byte, *status.Status) {
	scope := snapscope.Open(s.db)
	defer scope.Close()

	srcMeta, liveSrc, st := readMeta(scope, src, s.now())
	if st != nil {
		return nil, st
	}
	if !liveSrc || srcMeta.Count() == 0 {
		return nil, status.ErrNotFound
	}

	sm := srcMeta.Clone()
	srcIdx := sm.Right() - 1
	srcKey := nodeKey(src, sm.Version(), srcIdx)
	v, err := scope.Snapshot().Get(cfNode, srcKey)
	if err != nil {
		return nil, status.FromErr(err)
	}

	b := s.db.NewBatch()

	sameKey := string(src) == string(dst)
	var dm codec.ListMeta
	var dstVersion uint32
	if sameKey {
		dm = sm
		dstVersion = sm.Version()
	} else {
		dstMeta, liveDst, st := readMeta(scope, dst, s.now())
		if st != nil {
			return nil, st
		}
		if !liveDst {
			dstVersion = s.gen.Next()
			dm = codec.NewListMeta(dstVersion, 0)
		} else {
			dm = dstMeta.Clone()
			dstVersion = dm.Version()
		}
	}

	if sameKey {
		// Popping and pushing the same list: delete the node at the old
		// right end and write the value at the new left end, moving both
		// markers on the one meta record (SPEC_FULL.md §8 S6). The count
		// is unchanged.
		b.Delete(cfNode, srcKey)
		sm.SetRight(srcIdx)
		newLeftIdx := sm.Left()
		sm.SetLeft(newLeftIdx - 1)
		b.Put(cfNode, nodeKey(dst, dstVersion, newLeftIdx), v)
		if sm.Count() == 0 {
			// can't happen: we just pushed one back in, but keep the
			// invariant check for symmetry with pop().
		}
		b.Put(cfMeta, src, sm.Bytes())
	} else {
		b.Delete(cfNode, srcKey)
		sm.SetRight(srcIdx)
		newLeftIdx := dm.Left()
		dm.SetLeft(newLeftIdx - 1)
		b.Put(cfNode, nodeKey(dst, dstVersion, newLeftIdx), v)
		if sm.Count() == 0 {
			sm.ResetList(s.gen)
		}
		b.Put(cfMeta, src, sm.Bytes())
		b.Put(cfMeta, dst, dm.Bytes())
	}

	if err := b.Commit(); err != nil {
		return nil, status.FromErr(err)
	}
	return v, nil
}
