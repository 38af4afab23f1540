package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeGen struct{ n uint32 }

func (f *fakeGen) Next() uint32 { f.n++; return f.n }

func TestHashSetMetaRoundTrip(t *testing.T) {
	m := NewHashSetMeta(1, 42, 0)
	decoded, err := DecodeHashSetMeta(m.Bytes())
	assert.NoError(t, err)
	assert.Equal(t, int32(1), decoded.Count())
	assert.Equal(t, uint32(42), decoded.Version())
	assert.Equal(t, uint32(0), decoded.Expire())
}

func TestHashSetMetaStaleness(t *testing.T) {
	m := NewHashSetMeta(0, 1, 0)
	assert.True(t, m.IsStale(100))

	m = NewHashSetMeta(1, 1, 50)
	assert.False(t, m.IsStale(10))
	assert.True(t, m.IsStale(50))
	assert.True(t, m.IsStale(51))
}

func TestHashSetMetaUpdateVersion(t *testing.T) {
	m := NewHashSetMeta(0, 1, 0)
	gen := &fakeGen{n: 5}
	v := m.UpdateVersion(gen)
	assert.Equal(t, uint32(6), v)
	assert.Equal(t, uint32(6), m.Version())
}

func TestListMetaRoundTrip(t *testing.T) {
	m := NewListMeta(7, 0)
	assert.Equal(t, int64(0), m.Count())

	m.SetRight(m.Right() + 3)
	assert.Equal(t, int64(3), m.Count())

	decoded, err := DecodeListMeta(m.Bytes())
	assert.NoError(t, err)
	assert.Equal(t, int64(3), decoded.Count())
	assert.Equal(t, uint32(7), decoded.Version())
}

func TestListMetaReset(t *testing.T) {
	m := NewListMeta(1, 100)
	m.SetRight(m.Right() + 5)
	gen := &fakeGen{}
	m.ResetList(gen)
	assert.Equal(t, int64(0), m.Count())
	assert.Equal(t, uint32(0), m.Expire())
	assert.Equal(t, uint32(1), m.Version())
}

func TestStringValueRoundTrip(t *testing.T) {
	buf := EncodeStringValue([]byte("hello"), 0)
	payload, expire, err := DecodeStringValue(buf)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), payload)
	assert.Equal(t, uint32(0), expire)
}

func TestStringValueTruncated(t *testing.T) {
	_, _, err := DecodeStringValue([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorruption)
}

func TestHashFieldKeyRoundTrip(t *testing.T) {
	key := EncodeHashFieldKey([]byte("myhash"), 3, []byte("field1"))
	userKey, version, field, err := DecodeHashFieldKey(key)
	assert.NoError(t, err)
	assert.Equal(t, []byte("myhash"), userKey)
	assert.Equal(t, uint32(3), version)
	assert.Equal(t, []byte("field1"), field)
}

func TestSetMemberKeyRoundTrip(t *testing.T) {
	key := EncodeSetMemberKey([]byte("myset"), 9, []byte("member"))
	userKey, version, member, err := DecodeSetMemberKey(key)
	assert.NoError(t, err)
	assert.Equal(t, []byte("myset"), userKey)
	assert.Equal(t, uint32(9), version)
	assert.Equal(t, []byte("member"), member)
}

func TestListNodeKeyRoundTrip(t *testing.T) {
	key := EncodeListNodeKey([]byte("mylist"), 2, -17)
	userKey, version, idx, err := DecodeListNodeKey(key)
	assert.NoError(t, err)
	assert.Equal(t, []byte("mylist"), userKey)
	assert.Equal(t, uint32(2), version)
	assert.Equal(t, int64(-17), idx)
}

func TestSubkeysForSameUserKeySortContiguously(t *testing.T) {
	k1 := EncodeHashFieldKey([]byte("h"), 1, []byte("a"))
	k2 := EncodeHashFieldKey([]byte("h"), 1, []byte("b"))
	k3 := EncodeHashFieldKey([]byte("hh"), 1, []byte("a"))

	assert.Less(t, string(k1), string(k2))
	assert.Less(t, string(k2), string(k3))
}

func TestSubkeyUserKeyFastPath(t *testing.T) {
	key := EncodeSetMemberKey([]byte("s"), 4, []byte("m"))
	uk, err := SubkeyUserKey(key)
	assert.NoError(t, err)
	assert.Equal(t, []byte("s"), uk)
}

func TestSplitSubkeyTruncated(t *testing.T) {
	_, _, _, err := SplitSubkey([]byte{0, 0, 0, 5, 'a', 'b'})
	assert.ErrorIs(t, err, ErrCorruption)
}
