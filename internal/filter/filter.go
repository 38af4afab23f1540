// Package filter implements the three compaction-filter predicates of
// SPEC_FULL.md §4.4: strings, meta (hash/set/list), and subentry
// (hash field / set member / list node). Filters run on the engine's
// background compaction goroutine and must never take the lock manager
// — they rely on monotonic versions for correctness instead.
package filter

import (
	"bytes"
	"sync"

	"github.com/PikaLabs/blackwidow/internal/codec"
	"github.com/PikaLabs/blackwidow/internal/engine"
)

// Clock returns the current time as seconds since the Unix epoch, the
// same 32-bit wall-clock source the rest of the system uses.
type Clock func() uint32

// MetaCapability is the narrow capability a subentry filter needs: read
// the latest committed meta record for a user_key. Passing this instead
// of a full *engine.DB keeps filters from growing engine-wide reach,
// per the cyclic-ownership note in SPEC_FULL.md §9 (filters receive a
// capability object, not the store or the lock manager).
type MetaCapability interface {
	GetMeta(userKey []byte) ([]byte, error)
}

// StringsFilter drops a strings CF entry iff its encoded expire is
// positive and has passed.
type StringsFilter struct {
	Now Clock
}

func (f StringsFilter) Decision(_, value []byte) engine.Decision {
	_, expire, err := codec.DecodeStringValue(value)
	if err != nil {
		return engine.Keep
	}
	if codec.IsStringExpired(expire, f.Now()) {
		return engine.Drop
	}
	return engine.Keep
}

// metaStaleFunc decodes a meta CF value and reports whether it is stale.
type metaStaleFunc func(value []byte, now uint32) (stale bool, err error)

// MetaFilter drops a hash/set/list meta record once it is stale (count
// zero, or expired). It is parameterized over the decode function
// because hash/set meta and list meta have different byte layouts.
type MetaFilter struct {
	Now     Clock
	IsStale metaStaleFunc
}

func (f MetaFilter) Decision(_, value []byte) engine.Decision {
	stale, err := f.IsStale(value, f.Now())
	if err != nil {
		return engine.Keep
	}
	if stale {
		return engine.Drop
	}
	return engine.Keep
}

// NewHashSetMetaFilter builds the meta filter for the hash and set meta
// column families.
func NewHashSetMetaFilter(now Clock) MetaFilter {
	return MetaFilter{Now: now, IsStale: func(value []byte, n uint32) (bool, error) {
		m, err := codec.DecodeHashSetMeta(value)
		if err != nil {
			return false, err
		}
		return m.IsStale(n), nil
	}}
}

// NewListMetaFilter builds the meta filter for the list meta column
// family.
func NewListMetaFilter(now Clock) MetaFilter {
	return MetaFilter{Now: now, IsStale: func(value []byte, n uint32) (bool, error) {
		m, err := codec.DecodeListMeta(value)
		if err != nil {
			return false, err
		}
		return m.IsStale(n), nil
	}}
}

// metaReadFunc decodes a meta CF value into (stale, version).
type metaReadFunc func(value []byte, now uint32) (stale bool, version uint32, err error)

// SubentryFilter drops a hash field / set member / list node once its
// embedded version no longer matches its meta's current version, or the
// meta is missing or stale. Consecutive invocations on the same
// user_key (guaranteed contiguous by the subentry key layout) reuse one
// cached lookup instead of re-reading the meta CF for every subentry.
type SubentryFilter struct {
	Now  Clock
	Meta MetaCapability
	Read metaReadFunc

	mu         sync.Mutex
	cacheKey   []byte
	cacheStale bool
	cacheVer   uint32
	cacheFound bool
	cacheSet   bool
}

func (f *SubentryFilter) Decision(key, _ []byte) engine.Decision {
	userKey, version, _, err := codec.SplitSubkey(key)
	if err != nil {
		return engine.Drop
	}
	stale, metaVersion, found := f.lookup(userKey)
	if !found || stale {
		return engine.Drop
	}
	if version != metaVersion {
		return engine.Drop
	}
	return engine.Keep
}

func (f *SubentryFilter) lookup(userKey []byte) (stale bool, version uint32, found bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cacheSet && bytes.Equal(f.cacheKey, userKey) {
		return f.cacheStale, f.cacheVer, f.cacheFound
	}

	metaBytes, err := f.Meta.GetMeta(userKey)
	if err != nil {
		f.setCache(userKey, false, 0, false)
		return false, 0, false
	}
	st, ver, err := f.Read(metaBytes, f.Now())
	if err != nil {
		f.setCache(userKey, false, 0, false)
		return false, 0, false
	}
	f.setCache(userKey, st, ver, true)
	return st, ver, true
}

func (f *SubentryFilter) setCache(userKey []byte, stale bool, version uint32, found bool) {
	f.cacheKey = append(f.cacheKey[:0], userKey...)
	f.cacheStale = stale
	f.cacheVer = version
	f.cacheFound = found
	f.cacheSet = true
}

// NewHashFieldFilter / NewSetMemberFilter build the subentry filter for
// hash fields and set members, which share the hash/set meta layout.
func NewHashFieldFilter(now Clock, meta MetaCapability) *SubentryFilter {
	return &SubentryFilter{Now: now, Meta: meta, Read: hashSetRead}
}

func NewSetMemberFilter(now Clock, meta MetaCapability) *SubentryFilter {
	return &SubentryFilter{Now: now, Meta: meta, Read: hashSetRead}
}

// NewListNodeFilter builds the subentry filter for list nodes, which use
// the list meta layout (version field lives at the same offset, but
// staleness also depends on left/right, not count).
func NewListNodeFilter(now Clock, meta MetaCapability) *SubentryFilter {
	return &SubentryFilter{Now: now, Meta: meta, Read: listRead}
}

func hashSetRead(value []byte, now uint32) (bool, uint32, error) {
	m, err := codec.DecodeHashSetMeta(value)
	if err != nil {
		return false, 0, err
	}
	return m.IsStale(now), m.Version(), nil
}

func listRead(value []byte, now uint32) (bool, uint32, error) {
	m, err := codec.DecodeListMeta(value)
	if err != nil {
		return false, 0, err
	}
	return m.IsStale(now), m.Version(), nil
}
