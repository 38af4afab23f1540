// Package strings implements the strings store of SPEC_FULL.md §4.5:
// a single column family keyed by the raw user_key, valued
// payload_bytes || expire_u32. Every command that reads then writes
// takes the key's lock so concurrent Incrby/Append/Setrange calls on
// the same key serialize, matching SPEC_FULL.md §5's per-key ordering
// guarantee.
package strings

import (
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/PikaLabs/blackwidow/internal/codec"
	"github.com/PikaLabs/blackwidow/internal/engine"
	"github.com/PikaLabs/blackwidow/internal/lockmgr"
	"github.com/PikaLabs/blackwidow/internal/snapscope"
	"github.com/PikaLabs/blackwidow/internal/status"
)

const cfDefault = "default"

// ColumnFamilies lists the column families this store's engine.DB must
// be opened with.
var ColumnFamilies = []string{cfDefault}

// Store is the strings type store: one engine.DB over the single
// strings column family, plus the per-user_key lock table.
type Store struct {
	db    *engine.DB
	locks *lockmgr.Manager
	now   func() uint32
}

// New wraps an already-open engine.DB (opened over ColumnFamilies) as a
// strings store. now supplies the wall clock; tests may override it.
func New(db *engine.DB, now func() uint32) *Store {
	locks := lockmgr.New()
	if m := db.Metrics(); m != nil {
		locks.ObserveWait(func(d time.Duration) { m.LockWait.Observe(d.Seconds()) })
	}
	return &Store{db: db, locks: locks, now: now}
}

func (s *Store) observe(command string) func() { return s.db.Metrics().Observe("strings", command) }

// Close releases the store's underlying engine.
func (s *Store) Close() error { return s.db.Close() }

// Compact runs the strings CF's compaction filter once, synchronously.
func (s *Store) Compact() { s.db.Compact() }

func (s *Store) readRaw(key []byte) (payload []byte, expire uint32, found bool, st *status.Status) {
	scope := snapscope.Open(s.db)
	defer scope.Close()

	raw, err := scope.Snapshot().Get(cfDefault, key)
	if err != nil {
		if err == engine.ErrKeyNotFound {
			return nil, 0, false, nil
		}
		return nil, 0, false, status.FromErr(err)
	}
	payload, expire, derr := codec.DecodeStringValue(raw)
	if derr != nil {
		return nil, 0, false, status.Corruptionf("strings: %v", derr)
	}
	return payload, expire, true, nil
}

// get returns the live payload for key, or found=false if absent or
// stale (expired); stale entries are reported as not found without
// being rewritten — the compaction filter reclaims them.
func (s *Store) get(key []byte) (payload []byte, found bool, st *status.Status) {
	payload, expire, found, st := s.readRaw(key)
	if st != nil || !found {
		return nil, false, st
	}
	if codec.IsStringExpired(expire, s.now()) {
		return nil, false, nil
	}
	return payload, true, nil
}

func (s *Store) write(key, payload []byte, expire uint32) *status.Status {
	return status.FromErr(s.db.Put(cfDefault, key, codec.EncodeStringValue(payload, expire)))
}

// Set overwrites key with value, clearing any expiry.
func (s *Store) Set(key, value []byte) *status.Status {
	defer s.observe("Set")()
	g := s.locks.Acquire(key)
	defer g.Release()
	return s.write(key, value, 0)
}

// Setex is Set with an absolute expiry of now+ttlSeconds.
func (s *Store) Setex(key, value []byte, ttlSeconds int64) *status.Status {
	defer s.observe("Setex")()
	g := s.locks.Acquire(key)
	defer g.Release()
	return s.write(key, value, uint32(int64(s.now())+ttlSeconds))
}

// Setnx writes value only if key is absent or stale. Returns true if it
// wrote.
func (s *Store) Setnx(key, value []byte) (bool, *status.Status) {
	defer s.observe("Setnx")()
	g := s.locks.Acquire(key)
	defer g.Release()
	_, found, st := s.get(key)
	if st != nil {
		return false, st
	}
	if found {
		return false, nil
	}
	if st := s.write(key, value, 0); st != nil {
		return false, st
	}
	return true, nil
}

// GetSet atomically sets key to value and returns the previous value
// (NotFound if absent/stale).
func (s *Store) GetSet(key, value []byte) ([]byte, *status.Status) {
	defer s.observe("GetSet")()
	g := s.locks.Acquire(key)
	defer g.Release()
	prev, found, st := s.get(key)
	if st != nil {
		return nil, st
	}
	if err := s.write(key, value, 0); err != nil {
		return nil, err
	}
	if !found {
		return nil, status.ErrNotFound
	}
	return prev, nil
}

// Get returns the live payload for key, NotFound if absent/stale.
func (s *Store) Get(key []byte) ([]byte, *status.Status) {
	defer s.observe("Get")()
	payload, found, st := s.get(key)
	if st != nil {
		return nil, st
	}
	if !found {
		return nil, status.ErrNotFound
	}
	return payload, nil
}

// Strlen returns len(Get(key)), 0 if NotFound.
func (s *Store) Strlen(key []byte) (int, *status.Status) {
	defer s.observe("Strlen")()
	payload, found, st := s.get(key)
	if st != nil {
		return 0, st
	}
	if !found {
		return 0, status.ErrNotFound
	}
	return len(payload), nil
}

// Append concatenates value onto key's payload (or writes it fresh if
// absent/stale), clearing expiry per SPEC_FULL.md §4.5/§9, and returns
// the new length.
func (s *Store) Append(key, value []byte) (int, *status.Status) {
	defer s.observe("Append")()
	g := s.locks.Acquire(key)
	defer g.Release()

	payload, found, st := s.get(key)
	if st != nil {
		return 0, st
	}
	var next []byte
	if !found {
		next = append([]byte{}, value...)
	} else {
		next = append(append([]byte{}, payload...), value...)
	}
	if st := s.write(key, next, 0); st != nil {
		return 0, st
	}
	return len(next), nil
}

const maxStringLen = 1 << 29

// Setrange writes value at offset, zero-padding with NULs if the
// existing payload is shorter, and returns the new length.
func (s *Store) Setrange(key []byte, offset int, value []byte) (int, *status.Status) {
	defer s.observe("Setrange")()
	if offset < 0 {
		return 0, status.ErrInvalidArgument
	}
	if offset+len(value) > maxStringLen {
		return 0, status.InvalidArgumentf("setrange: result exceeds %d bytes", maxStringLen)
	}

	g := s.locks.Acquire(key)
	defer g.Release()

	payload, found, st := s.get(key)
	if st != nil {
		return 0, st
	}
	if !found {
		payload = nil
	}
	newLen := offset + len(value)
	if newLen < len(payload) {
		newLen = len(payload)
	}
	next := make([]byte, newLen)
	copy(next, payload)
	copy(next[offset:], value)
	if st := s.write(key, next, 0); st != nil {
		return 0, st
	}
	return len(next), nil
}

func (s *Store) arith(key []byte, apply func(payload []byte) ([]byte, *status.Status)) *status.Status {
	g := s.locks.Acquire(key)
	defer g.Release()

	payload, found, st := s.get(key)
	if st != nil {
		return st
	}
	if !found {
		payload = nil
	}
	next, st := apply(payload)
	if st != nil {
		return st
	}
	return s.write(key, next, 0)
}

// Incrby parses the payload as a base-10 integer (0 if absent/stale),
// adds delta, and writes the new representation.
func (s *Store) Incrby(key []byte, delta int64) (int64, *status.Status) {
	defer s.observe("Incrby")()
	var result int64
	st := s.arith(key, func(payload []byte) ([]byte, *status.Status) {
		cur, err := parseInt(payload)
		if err != nil {
			return nil, err
		}
		next := cur + delta
		if (delta > 0 && next < cur) || (delta < 0 && next > cur) {
			return nil, status.InvalidArgumentf("incrby: overflow")
		}
		result = next
		return []byte(strconv.FormatInt(next, 10)), nil
	})
	return result, st
}

// Decrby is Incrby with the sign flipped.
func (s *Store) Decrby(key []byte, delta int64) (int64, *status.Status) {
	defer s.observe("Decrby")()
	return s.Incrby(key, -delta)
}

// Incrbyfloat parses the payload as a float (0 if absent/stale), adds
// delta, and writes the result rendered without trailing zeros.
func (s *Store) Incrbyfloat(key []byte, delta float64) (float64, *status.Status) {
	defer s.observe("Incrbyfloat")()
	var result float64
	st := s.arith(key, func(payload []byte) ([]byte, *status.Status) {
		cur, err := parseFloat(payload)
		if err != nil {
			return nil, err
		}
		next := cur + delta
		if math.IsInf(next, 0) || math.IsNaN(next) {
			return nil, status.InvalidArgumentf("incrbyfloat: not a representable number")
		}
		result = next
		return []byte(strconv.FormatFloat(next, 'f', -1, 64)), nil
	})
	return result, st
}

func parseInt(payload []byte) (int64, *status.Status) {
	if len(payload) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(payload), 10, 64)
	if err != nil {
		return 0, status.Corruptionf("strings: payload is not an integer")
	}
	return v, nil
}

func parseFloat(payload []byte) (float64, *status.Status) {
	if len(payload) == 0 {
		return 0, nil
	}
	v, err := strconv.ParseFloat(string(payload), 64)
	if err != nil {
		return 0, status.Corruptionf("strings: payload is not a float")
	}
	return v, nil
}

// Expire rewrites key's expiry when ttlSeconds > 0, or deletes it
// outright when ttlSeconds <= 0 (strings have no meta to mark stale —
// deletion is the direct equivalent). Either way, it first checks key
// actually holds a live string, returning NotFound otherwise.
func (s *Store) Expire(key []byte, ttlSeconds int64) *status.Status {
	defer s.observe("Expire")()
	g := s.locks.Acquire(key)
	defer g.Release()

	payload, found, st := s.get(key)
	if st != nil {
		return st
	}
	if !found {
		return status.ErrNotFound
	}
	if ttlSeconds <= 0 {
		return status.FromErr(s.db.Delete(cfDefault, key))
	}
	return s.write(key, payload, uint32(int64(s.now())+ttlSeconds))
}

// Del deletes key unconditionally, reporting whether it was present and
// live beforehand.
func (s *Store) Del(key []byte) (bool, *status.Status) {
	defer s.observe("Del")()
	g := s.locks.Acquire(key)
	defer g.Release()

	_, found, st := s.get(key)
	if st != nil {
		return false, st
	}
	if err := s.db.Delete(cfDefault, key); err != nil {
		return false, status.FromErr(err)
	}
	return found, nil
}

// Exists reports whether key is present and live.
func (s *Store) Exists(key []byte) (bool, *status.Status) {
	defer s.observe("Exists")()
	_, found, st := s.get(key)
	return found, st
}

// Scan walks the strings CF starting at resume (nil/empty means the
// start of the keyspace), calling emit for every live key whose bytes
// satisfy match, and stops once it has examined count keys, so a call
// emits at most count keys (SPEC_FULL.md §4.9). It returns the cursor to resume from
// on the next call, or nil when the CF is exhausted.
func (s *Store) Scan(resume []byte, count int, match func([]byte) bool, emit func([]byte)) ([]byte, *status.Status) {
	defer s.observe("Scan")()
	scope := snapscope.Open(s.db)
	defer scope.Close()

	var (
		visited int
		last    []byte
		exhausted = true
	)
	err := scope.Snapshot().AscendFrom(cfDefault, resume, func(key, value []byte) bool {
		if visited >= count {
			exhausted = false
			return false
		}
		visited++
		last = append([]byte(nil), key...)
		_, expire, derr := codec.DecodeStringValue(value)
		if derr == nil && !codec.IsStringExpired(expire, s.now()) && match(key) {
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

// MSet writes every key/value pair, clearing expiry on each.
func (s *Store) MSet(pairs map[string][]byte) *status.Status {
	defer s.observe("MSet")()
	b := s.db.NewBatch()
	for k, v := range pairs {
		b.Put(cfDefault, []byte(k), codec.EncodeStringValue(v, 0))
	}
	return status.FromErr(b.Commit())
}

// MGet reads every key, reporting NotFound entries as nil.
func (s *Store) MGet(keys [][]byte) ([][]byte, *status.Status) {
	defer s.observe("MGet")()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		v, found, st := s.get(k)
		if st != nil {
			return nil, st
		}
		if found {
			out[i] = v
		}
	}
	return out, nil
}

// MSetnx writes every pair only if none of the keys currently exist and
// are live; returns whether it wrote. It holds every key's lock, taken in
// sorted key order, across the check and the write.
func (s *Store) MSetnx(pairs map[string][]byte) (bool, *status.Status) {
	defer s.observe("MSetnx")()
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		g := s.locks.Acquire([]byte(k))
		defer g.Release()
	}
	for _, k := range keys {
		_, found, st := s.get([]byte(k))
		if st != nil {
			return false, st
		}
		if found {
			return false, nil
		}
	}
	if st := s.MSet(pairs); st != nil {
		return false, st
	}
	return true, nil
}
