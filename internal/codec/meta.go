package codec

// VersionSource produces the next version for a reset logical key. It is
// satisfied by internal/verid.Generator; defined here (rather than
// imported) so the codec package stays dependency-free.
type VersionSource interface {
	Next() uint32
}

const (
	hashSetMetaSize = 4 + 4 + 4      // count(i32) | version(u32) | expire(u32)
	listMetaSize    = hashSetMetaSize + 8 + 8 // + left(i64) | right(i64)
)

// HashSetMeta is a view over an already-decoded meta record for a hash or
// a set. It never copies: accessors read directly out of buf, and the
// Set* mutators rewrite buf in place so callers can reuse the buffer
// they read as the next value they write.
type HashSetMeta struct {
	buf []byte
}

// NewHashSetMeta creates a fresh meta record with the given count,
// version and expire (count 1 when the first subentry is about to be
// written).
func NewHashSetMeta(count int32, version, expire uint32) HashSetMeta {
	m := HashSetMeta{buf: make([]byte, hashSetMetaSize)}
	m.SetCount(count)
	m.SetVersion(version)
	m.SetExpire(expire)
	return m
}

// DecodeHashSetMeta parses buf as a hash/set meta record. The returned
// value aliases buf.
func DecodeHashSetMeta(buf []byte) (HashSetMeta, error) {
	if len(buf) < hashSetMetaSize {
		return HashSetMeta{}, ErrCorruption
	}
	return HashSetMeta{buf: buf[:hashSetMetaSize]}, nil
}

func (m HashSetMeta) Bytes() []byte   { return m.buf }
func (m HashSetMeta) Count() int32    { return getI32(m.buf[0:4]) }
func (m HashSetMeta) Version() uint32 { return getU32(m.buf[4:8]) }
func (m HashSetMeta) Expire() uint32  { return getU32(m.buf[8:12]) }

func (m HashSetMeta) SetCount(c int32)     { putI32(m.buf[0:4], c) }
func (m HashSetMeta) SetVersion(v uint32)  { putU32(m.buf[4:8], v) }
func (m HashSetMeta) SetExpire(e uint32)   { putU32(m.buf[8:12], e) }

// SetRelativeExpire writes now+ttlSeconds as the absolute expire. It does
// not special-case ttlSeconds <= 0; callers handle a non-positive TTL
// themselves.
func (m HashSetMeta) SetRelativeExpire(now uint32, ttlSeconds int64) {
	m.SetExpire(uint32(int64(now) + ttlSeconds))
}

// UpdateVersion assigns a new version from gen and writes it into buf,
// returning the new version. Used whenever a logical key is reset.
func (m HashSetMeta) UpdateVersion(gen VersionSource) uint32 {
	v := gen.Next()
	m.SetVersion(v)
	return v
}

// IsStale reports whether this meta is logically empty: zero count, or a
// positive expire at or before now.
func (m HashSetMeta) IsStale(now uint32) bool {
	return m.Count() == 0 || (m.Expire() != 0 && m.Expire() <= now)
}

// Clone returns an independent copy, safe to mutate without aliasing the
// original buffer (e.g. the buffer returned by an engine read bound to a
// snapshot's lifetime).
func (m HashSetMeta) Clone() HashSetMeta {
	buf := make([]byte, len(m.buf))
	copy(buf, m.buf)
	return HashSetMeta{buf: buf}
}

// ListMeta is a view over a list's meta record: count/version/expire plus
// the left/right free-position markers.
type ListMeta struct {
	buf []byte
}

// midpoint is the starting left/right index for a fresh list, chosen so
// the list can grow symmetrically in either direction without rebalancing.
const midpoint = int64(1) << 62

// A fresh list starts with right = left+1, not right == left: count is
// derived as right-left-1, so the two endpoints must already bracket an
// empty range (0 = (left+1)-left-1) rather than coincide (which would
// derive to -1).
func NewListMeta(version, expire uint32) ListMeta {
	m := ListMeta{buf: make([]byte, listMetaSize)}
	m.SetCount(0)
	m.SetVersion(version)
	m.SetExpire(expire)
	m.SetLeft(midpoint)
	m.SetRight(midpoint + 1)
	return m
}

func DecodeListMeta(buf []byte) (ListMeta, error) {
	if len(buf) < listMetaSize {
		return ListMeta{}, ErrCorruption
	}
	return ListMeta{buf: buf[:listMetaSize]}, nil
}

func (m ListMeta) Bytes() []byte   { return m.buf }
func (m ListMeta) Count() int64    { return m.Right() - m.Left() - 1 }
func (m ListMeta) Version() uint32 { return getU32(m.buf[4:8]) }
func (m ListMeta) Expire() uint32  { return getU32(m.buf[8:12]) }
func (m ListMeta) Left() int64     { return getI64(m.buf[12:20]) }
func (m ListMeta) Right() int64    { return getI64(m.buf[20:28]) }

// SetCount exists for symmetry with HashSetMeta but a list's count is
// derived from left/right; a 0 count here only matters when building a
// fresh meta buffer before left/right are set.
func (m ListMeta) SetCount(int32)       {}
func (m ListMeta) SetVersion(v uint32)  { putU32(m.buf[4:8], v) }
func (m ListMeta) SetExpire(e uint32)   { putU32(m.buf[8:12], e) }
func (m ListMeta) SetLeft(v int64)      { putI64(m.buf[12:20], v) }
func (m ListMeta) SetRight(v int64)     { putI64(m.buf[20:28], v) }

func (m ListMeta) SetRelativeExpire(now uint32, ttlSeconds int64) {
	m.SetExpire(uint32(int64(now) + ttlSeconds))
}

func (m ListMeta) UpdateVersion(gen VersionSource) uint32 {
	v := gen.Next()
	m.SetVersion(v)
	return v
}

func (m ListMeta) IsStale(now uint32) bool {
	return m.Count() == 0 || (m.Expire() != 0 && m.Expire() <= now)
}

func (m ListMeta) Clone() ListMeta {
	buf := make([]byte, len(m.buf))
	copy(buf, m.buf)
	return ListMeta{buf: buf}
}

// ResetList marks a list stale in place: left and right return to the
// fresh-list positions (right == left+1, so the derived count is zero),
// version bumps, expire clears.
func (m ListMeta) ResetList(gen VersionSource) {
	m.UpdateVersion(gen)
	m.SetLeft(midpoint)
	m.SetRight(midpoint + 1)
	m.SetExpire(0)
}
