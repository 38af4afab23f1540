// Package hashes implements the hash store of SPEC_FULL.md §4.6: a
// meta column family (count/version/expire per user_key) plus a field
// column family whose keys embed user_key, version and field so stale
// fields left behind by a reset sort into a contiguous, filterable run.
package hashes

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
	cfMeta  = "default"
	cfField = "field_cf"
)

// ColumnFamilies lists the column families this store's engine.DB must
// be opened with.
var ColumnFamilies = []string{cfMeta, cfField}

// Store is the hash type store.
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

func (s *Store) observe(command string) func() { return s.db.Metrics().Observe("hashes", command) }

// GetMeta implements internal/filter.MetaCapability for this store's
// meta CF: the latest committed meta bytes for userKey, or
// engine.ErrKeyNotFound.
func (s *Store) GetMeta(userKey []byte) ([]byte, error) {
	return s.db.Get(cfMeta, userKey)
}

// readMeta loads key's meta from scope, reporting found=false if absent
// or stale (SPEC_FULL.md §3.4 invariant 3).
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
		return codec.HashSetMeta{}, false, status.Corruptionf("hashes: %v", derr)
	}
	if m.IsStale(now) {
		return m, false, nil
	}
	return m, true, nil
}

// HSet writes field=value under key, creating a fresh meta if key is
// absent or stale. Returns true iff field was newly inserted.
func (s *Store) HSet(key, field, value []byte) (bool, *status.Status) {
	defer s.observe("HSet")()
	g := s.locks.Acquire(key)
	defer g.Release()
	return s.setField(key, field, value, false)
}

// HSetnx sets field=value only if field does not already exist; returns
// true iff it wrote. The existence check and the write happen under the
// same lock acquisition as HSet (via setField) so two concurrent
// HSetnx calls on the same absent field can't both observe "absent" and
// race each other into overwriting one write with the other.
func (s *Store) HSetnx(key, field, value []byte) (bool, *status.Status) {
	defer s.observe("HSetnx")()
	g := s.locks.Acquire(key)
	defer g.Release()
	return s.setField(key, field, value, true)
}

// setField performs HSet's write, assuming the caller already holds
// key's lock. When onlyIfAbsent is true it behaves like HSetnx: an
// existing field is left untouched and setField reports false.
func (s *Store) setField(key, field, value []byte, onlyIfAbsent bool) (bool, *status.Status) {
	scope := snapscope.Open(s.db)
	defer scope.Close()

	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return false, st
	}

	b := s.db.NewBatch()
	if !liveMeta {
		fresh := codec.NewHashSetMeta(1, s.gen.Next(), 0)
		b.Put(cfMeta, key, fresh.Bytes())
		b.Put(cfField, codec.EncodeHashFieldKey(key, fresh.Version(), field), value)
		if err := b.Commit(); err != nil {
			return false, status.FromErr(err)
		}
		return true, nil
	}

	fk := codec.EncodeHashFieldKey(key, meta.Version(), field)
	_, err := scope.Snapshot().Get(cfField, fk)
	existed := err == nil
	if !existed && err != engine.ErrKeyNotFound {
		return false, status.FromErr(err)
	}
	if existed && onlyIfAbsent {
		return false, nil
	}

	b.Put(cfField, fk, value)
	if !existed {
		next := meta.Clone()
		next.SetCount(meta.Count() + 1)
		b.Put(cfMeta, key, next.Bytes())
	}
	if err := b.Commit(); err != nil {
		return false, status.FromErr(err)
	}
	return !existed, nil
}

// HMSet batches multiple field writes under one lock/batch, incrementing
// count only for fields that didn't already exist.
func (s *Store) HMSet(key []byte, fields map[string][]byte) *status.Status {
	defer s.observe("HMSet")()
	g := s.locks.Acquire(key)
	defer g.Release()

	scope := snapscope.Open(s.db)
	defer scope.Close()

	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return st
	}

	b := s.db.NewBatch()
	var version uint32
	var count int32
	if liveMeta {
		version = meta.Version()
		count = meta.Count()
	} else {
		version = s.gen.Next()
	}

	inserted := int32(0)
	for field, value := range fields {
		fk := codec.EncodeHashFieldKey(key, version, []byte(field))
		if liveMeta {
			if _, err := scope.Snapshot().Get(cfField, fk); err == engine.ErrKeyNotFound {
				inserted++
			} else if err != nil {
				return status.FromErr(err)
			}
		} else {
			inserted++
		}
		b.Put(cfField, fk, value)
	}

	newMeta := codec.NewHashSetMeta(count+inserted, version, 0)
	if liveMeta {
		newMeta.SetExpire(meta.Expire())
	}
	b.Put(cfMeta, key, newMeta.Bytes())
	return status.FromErr(b.Commit())
}

// HGet returns field's value, NotFound if key or field is absent/stale.
func (s *Store) HGet(key, field []byte) ([]byte, *status.Status) {
	defer s.observe("HGet")()
	scope := snapscope.Open(s.db)
	defer scope.Close()

	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return nil, st
	}
	if !liveMeta {
		return nil, status.ErrNotFound
	}
	v, err := scope.Snapshot().Get(cfField, codec.EncodeHashFieldKey(key, meta.Version(), field))
	if err != nil {
		if err == engine.ErrKeyNotFound {
			return nil, status.ErrNotFound
		}
		return nil, status.FromErr(err)
	}
	return v, nil
}

// HExists reports whether field is live under key.
func (s *Store) HExists(key, field []byte) (bool, *status.Status) {
	defer s.observe("HExists")()
	_, st := s.HGet(key, field)
	if st == nil {
		return true, nil
	}
	if status.IsNotFound(st) {
		return false, nil
	}
	return false, st
}

// HMGet reads several fields at once; absent ones come back nil.
func (s *Store) HMGet(key []byte, fields [][]byte) ([][]byte, *status.Status) {
	defer s.observe("HMGet")()
	scope := snapscope.Open(s.db)
	defer scope.Close()

	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return nil, st
	}
	out := make([][]byte, len(fields))
	if !liveMeta {
		return out, nil
	}
	for i, f := range fields {
		v, err := scope.Snapshot().Get(cfField, codec.EncodeHashFieldKey(key, meta.Version(), f))
		if err == nil {
			out[i] = v
		} else if err != engine.ErrKeyNotFound {
			return nil, status.FromErr(err)
		}
	}
	return out, nil
}

// HDel removes fields, decrementing count by however many were
// actually present. If count reaches zero, the meta's version is bumped
// so it reads as stale without deleting its field entries outright —
// compaction reclaims them later.
func (s *Store) HDel(key []byte, fields [][]byte) (int, *status.Status) {
	defer s.observe("HDel")()
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
	for _, f := range fields {
		fk := codec.EncodeHashFieldKey(key, meta.Version(), f)
		if _, err := scope.Snapshot().Get(cfField, fk); err == engine.ErrKeyNotFound {
			continue
		} else if err != nil {
			return 0, status.FromErr(err)
		}
		b.Delete(cfField, fk)
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

// HLen returns the number of live fields under key.
func (s *Store) HLen(key []byte) (int32, *status.Status) {
	defer s.observe("HLen")()
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

// HStrlen returns len(HGet(key, field)), 0 if not found.
func (s *Store) HStrlen(key, field []byte) (int, *status.Status) {
	defer s.observe("HStrlen")()
	v, st := s.HGet(key, field)
	if st != nil {
		if status.IsNotFound(st) {
			return 0, nil
		}
		return 0, st
	}
	return len(v), nil
}

func (s *Store) iterateFields(key []byte, fn func(field, value []byte) bool) *status.Status {
	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return st
	}
	if !liveMeta {
		return nil
	}
	prefix := codec.SubkeyPrefix(key, meta.Version())
	var iterErr *status.Status
	_ = scope.Snapshot().Ascend(cfField, prefix, func(fk, value []byte) bool {
		_, _, field, err := codec.DecodeHashFieldKey(fk)
		if err != nil {
			iterErr = status.Corruptionf("hashes: %v", err)
			return false
		}
		return fn(field, value)
	})
	return iterErr
}

// HKeys returns every live field name under key.
func (s *Store) HKeys(key []byte) ([][]byte, *status.Status) {
	defer s.observe("HKeys")()
	var out [][]byte
	st := s.iterateFields(key, func(field, _ []byte) bool {
		out = append(out, append([]byte{}, field...))
		return true
	})
	return out, st
}

// HVals returns every live field value under key.
func (s *Store) HVals(key []byte) ([][]byte, *status.Status) {
	defer s.observe("HVals")()
	var out [][]byte
	st := s.iterateFields(key, func(_, value []byte) bool {
		out = append(out, append([]byte{}, value...))
		return true
	})
	return out, st
}

// HGetall returns every live (field, value) pair under key as a flat
// field1, value1, field2, value2, ... slice, matching Redis's HGETALL.
func (s *Store) HGetall(key []byte) ([][]byte, *status.Status) {
	defer s.observe("HGetall")()
	var out [][]byte
	st := s.iterateFields(key, func(field, value []byte) bool {
		out = append(out, append([]byte{}, field...), append([]byte{}, value...))
		return true
	})
	return out, st
}

// Expire rewrites key's meta expiry when ttlSeconds > 0, or marks it
// stale (bumping version, zeroing count) when ttlSeconds <= 0.
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

// HIncrby requires an integer field payload (absent treated as 0),
// writes the incremented value, and returns it.
func (s *Store) HIncrby(key, field []byte, delta int64) (int64, *status.Status) {
	defer s.observe("HIncrby")()
	v, st := s.hArith(key, field, func(payload []byte) ([]byte, any, *status.Status) {
		cur, perr := parseInt(payload)
		if perr != nil {
			return nil, nil, perr
		}
		next := cur + delta
		if (delta > 0 && next < cur) || (delta < 0 && next > cur) {
			return nil, nil, status.InvalidArgumentf("hincrby: overflow")
		}
		return []byte(formatInt(next)), next, nil
	})
	if st != nil {
		return 0, st
	}
	return v.(int64), nil
}

// HIncrbyfloat requires a float field payload (absent treated as 0),
// writes the incremented value rendered without trailing zeros, and
// returns it.
func (s *Store) HIncrbyfloat(key, field []byte, delta float64) (float64, *status.Status) {
	defer s.observe("HIncrbyfloat")()
	v, st := s.hArith(key, field, func(payload []byte) ([]byte, any, *status.Status) {
		cur, perr := parseFloat(payload)
		if perr != nil {
			return nil, nil, perr
		}
		next := cur + delta
		return []byte(formatFloat(next)), next, nil
	})
	if st != nil {
		return 0, st
	}
	return v.(float64), nil
}

func (s *Store) hArith(key, field []byte, apply func(payload []byte) ([]byte, any, *status.Status)) (any, *status.Status) {
	g := s.locks.Acquire(key)
	defer g.Release()

	scope := snapscope.Open(s.db)
	defer scope.Close()
	meta, liveMeta, st := readMeta(scope, key, s.now())
	if st != nil {
		return nil, st
	}

	b := s.db.NewBatch()
	var version uint32
	var count int32
	if liveMeta {
		version = meta.Version()
		count = meta.Count()
	} else {
		version = s.gen.Next()
	}
	fk := codec.EncodeHashFieldKey(key, version, field)

	var payload []byte
	existed := false
	if liveMeta {
		if v, err := scope.Snapshot().Get(cfField, fk); err == nil {
			payload = v
			existed = true
		} else if err != engine.ErrKeyNotFound {
			return nil, status.FromErr(err)
		}
	}

	next, result, aerr := apply(payload)
	if aerr != nil {
		return nil, aerr
	}
	b.Put(cfField, fk, next)
	if !liveMeta {
		b.Put(cfMeta, key, codec.NewHashSetMeta(1, version, 0).Bytes())
	} else if !existed {
		nm := meta.Clone()
		nm.SetCount(count + 1)
		b.Put(cfMeta, key, nm.Bytes())
	}
	if err := b.Commit(); err != nil {
		return nil, status.FromErr(err)
	}
	return result, nil
}
