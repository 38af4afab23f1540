// Package sets implements the set store of SPEC_FULL.md §4.7: a meta
// column family plus a member column family whose keys embed user_key,
// version and member, with an empty value (membership only).
package sets

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
	cfMeta   = "default"
	cfMember = "member_cf"
)

// ColumnFamilies lists the column families this store's engine.DB must
// be opened with.
var ColumnFamilies = []string{cfMeta, cfMember}

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

func (s *Store) observe(command string) func() { return s.db.Metrics().Observe("sets", command) }

// GetMeta implements internal/filter.MetaCapability.
func (s *Store) GetMeta(userKey []byte) ([]byte, error) {
	return s.db.Get(cfMeta, userKey)
}

func readMeta(scope *snapscope.Scope, key []byte, now uint32) (meta codec.HashSetMeta, found bool, st *status.Status) {
	raw, err := scope.Snapshot().Get(cfMeta, key)
	if err != nil {
		if err == engine.ErrKeyNotFound {
			return codec.HashSetMeta{}, false, nil
		}
		return codec.HashSetMeta{}, false, status.FromErr(err)
	}
	m, derr := codec.DecodeHashSetMeta(raw)
	if derr != nil {
		return codec.HashSetMeta{}, false, status.Corruptionf("sets: %v", derr)
	}
	if m.IsStale(now) {
		return m, false, nil
	}
	return m, true, nil
}

// SAdd deduplicates members (preserving first occurrence), then adds
// each unique one that isn't already present; returns the count of
// newly inserted members.
func (s *Store) SAdd(key []byte, members [][]byte) (int, *status.Status) {
	defer s.observe("SAdd")()
	g := s.locks.Acquire(key)
	defer g.Release()

	scope := snapscope.Open(s.db)
	defer scope.Close()

	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return 0, st
	}

	seen := make(map[string]struct{}, len(members))
	var unique [][]byte
	for _, m := range members {
		k := string(m)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, m)
	}

	b := s.db.NewBatch()
	var version uint32
	if liveMeta {
		version = meta.Version()
	} else {
		version = s.gen.Next()
	}

	inserted := 0
	for _, m := range unique {
		mk := codec.EncodeSetMemberKey(key, version, m)
		if liveMeta {
			if _, err := scope.Snapshot().Get(cfMember, mk); err != engine.ErrKeyNotFound {
				if err != nil {
					return 0, status.FromErr(err)
				}
				continue // already a member
			}
		}
		b.Put(cfMember, mk, nil)
		inserted++
	}
	if inserted == 0 {
		return 0, nil
	}

	if !liveMeta {
		b.Put(cfMeta, key, codec.NewHashSetMeta(int32(inserted), version, 0).Bytes())
	} else {
		next := meta.Clone()
		next.SetCount(meta.Count() + int32(inserted))
		b.Put(cfMeta, key, next.Bytes())
	}
	if err := b.Commit(); err != nil {
		return 0, status.FromErr(err)
	}
	return inserted, nil
}

// SRem removes members, decrementing count by however many were
// actually present and marking the meta stale (bumped version) if it
// reaches zero.
func (s *Store) SRem(key []byte, members [][]byte) (int, *status.Status) {
	defer s.observe("SRem")()
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

	b := s.db.NewBatch()
	removed := 0
	for _, m := range members {
		mk := codec.EncodeSetMemberKey(key, meta.Version(), m)
		if _, err := scope.Snapshot().Get(cfMember, mk); err == engine.ErrKeyNotFound {
			continue
		} else if err != nil {
			return 0, status.FromErr(err)
		}
		b.Delete(cfMember, mk)
		removed++
	}
	if removed == 0 {
		return 0, nil
	}

	next := meta.Clone()
	remaining := meta.Count() - int32(removed)
	if remaining <= 0 {
		next.SetCount(0)
		next.UpdateVersion(s.gen)
		next.SetExpire(0)
	} else {
		next.SetCount(remaining)
	}
	b.Put(cfMeta, key, next.Bytes())
	if err := b.Commit(); err != nil {
		return 0, status.FromErr(err)
	}
	return removed, nil
}

// SCard returns the number of live members under key.
func (s *Store) SCard(key []byte) (int32, *status.Status) {
	defer s.observe("SCard")()
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

// SIsmember reports whether member is live under key.
func (s *Store) SIsmember(key, member []byte) (bool, *status.Status) {
	defer s.observe("SIsmember")()
	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return false, st
	}
	if !liveMeta {
		return false, nil
	}
	_, err := scope.Snapshot().Get(cfMember, codec.EncodeSetMemberKey(key, meta.Version(), member))
	if err == engine.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, status.FromErr(err)
	}
	return true, nil
}

// members returns every live member under key.
func (s *Store) members(key []byte) ([][]byte, *status.Status) {
	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return nil, st
	}
	if !liveMeta {
		return nil, nil
	}
	var out [][]byte
	var iterErr *status.Status
	prefix := codec.SubkeyPrefix(key, meta.Version())
	_ = scope.Snapshot().Ascend(cfMember, prefix, func(mk, _ []byte) bool {
		_, _, member, err := codec.DecodeSetMemberKey(mk)
		if err != nil {
			iterErr = status.Corruptionf("sets: %v", err)
			return false
		}
		out = append(out, append([]byte{}, member...))
		return true
	})
	return out, iterErr
}

// SMembers returns every live member under key.
func (s *Store) SMembers(key []byte) ([][]byte, *status.Status) {
	defer s.observe("SMembers")()
	return s.members(key)
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
		next.SetCount(0)
		next.UpdateVersion(s.gen)
		next.SetExpire(0)
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
	next.SetCount(0)
	next.UpdateVersion(s.gen)
	next.SetExpire(0)
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
		m, derr := codec.DecodeHashSetMeta(value)
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

// SUnion returns the union of members across keys.
func (s *Store) SUnion(keys [][]byte) ([][]byte, *status.Status) {
	defer s.observe("SUnion")()
	seen := make(map[string][]byte)
	for _, k := range keys {
		mem, st := s.members(k)
		if st != nil {
			return nil, st
		}
		for _, m := range mem {
			seen[string(m)] = m
		}
	}
	return flatten(seen), nil
}

// SInter returns the intersection of members across keys.
func (s *Store) SInter(keys [][]byte) ([][]byte, *status.Status) {
	defer s.observe("SInter")()
	if len(keys) == 0 {
		return nil, nil
	}
	first, st := s.members(keys[0])
	if st != nil {
		return nil, st
	}
	counts := make(map[string][]byte, len(first))
	for _, m := range first {
		counts[string(m)] = m
	}
	for _, k := range keys[1:] {
		mem, st := s.members(k)
		if st != nil {
			return nil, st
		}
		present := make(map[string]struct{}, len(mem))
		for _, m := range mem {
			present[string(m)] = struct{}{}
		}
		for k := range counts {
			if _, ok := present[k]; !ok {
				delete(counts, k)
			}
		}
	}
	return flatten(counts), nil
}

// SDiff returns the members of keys[0] not present in any of keys[1:].
func (s *Store) SDiff(keys [][]byte) ([][]byte, *status.Status) {
	defer s.observe("SDiff")()
	if len(keys) == 0 {
		return nil, nil
	}
	first, st := s.members(keys[0])
	if st != nil {
		return nil, st
	}
	result := make(map[string][]byte, len(first))
	for _, m := range first {
		result[string(m)] = m
	}
	for _, k := range keys[1:] {
		mem, st := s.members(k)
		if st != nil {
			return nil, st
		}
		for _, m := range mem {
			delete(result, string(m))
		}
	}
	return flatten(result), nil
}

// SUnionstore/SInterstore/SDiffstore compute the corresponding set
// operation and overwrite destKey with the result, returning its size.
func (s *Store) SUnionstore(destKey []byte, keys [][]byte) (int, *status.Status) {
	defer s.observe("SUnionstore")()
	members, st := s.SUnion(keys)
	return s.storeResult(destKey, members, st)
}

func (s *Store) SInterstore(destKey []byte, keys [][]byte) (int, *status.Status) {
	defer s.observe("SInterstore")()
	members, st := s.SInter(keys)
	return s.storeResult(destKey, members, st)
}

func (s *Store) SDiffstore(destKey []byte, keys [][]byte) (int, *status.Status) {
	defer s.observe("SDiffstore")()
	members, st := s.SDiff(keys)
	return s.storeResult(destKey, members, st)
}

func (s *Store) storeResult(destKey []byte, members [][]byte, st *status.Status) (int, *status.Status) {
	if st != nil {
		return 0, st
	}
	if _, st := s.Del(destKey); st != nil && !status.IsNotFound(st) {
		return 0, st
	}
	if len(members) == 0 {
		return 0, nil
	}
	n, st := s.SAdd(destKey, members)
	if st != nil {
		return 0, st
	}
	return n, nil
}

func flatten(m map[string][]byte) [][]byte {
	out := make([][]byte, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
