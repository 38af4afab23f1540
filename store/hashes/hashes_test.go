package hashes

import (
	"testing"

	"github.com/PikaLabs/blackwidow/internal/engine"
	"github.com/PikaLabs/blackwidow/internal/status"
	"github.com/stretchr/testify/assert"
)

type clock struct{ t uint32 }

func (c *clock) now() uint32 { return c.t }

func newStore(t *testing.T) (*Store, *clock) {
	db, err := engine.Open(t.TempDir(), ColumnFamilies, engine.Options{CreateIfMissing: true})
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	c := &clock{t: 1000}
	return New(db, c.now), c
}

func TestHSetInsertThenOverwrite(t *testing.T) {
	s, _ := newStore(t)

	inserted, st := s.HSet([]byte("h"), []byte("f"), []byte("v1"))
	assert.Nil(t, st)
	assert.True(t, inserted)

	inserted, st = s.HSet([]byte("h"), []byte("f"), []byte("v2"))
	assert.Nil(t, st)
	assert.False(t, inserted)

	v, st := s.HGet([]byte("h"), []byte("f"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("v2"), v)

	n, st := s.HLen([]byte("h"))
	assert.Nil(t, st)
	assert.Equal(t, int32(1), n)
}

func TestHMSetCountsOnlyNewFields(t *testing.T) {
	s, _ := newStore(t)

	assert.Nil(t, s.HMSet([]byte("h"), map[string][]byte{"a": []byte("1"), "b": []byte("2")}))
	n, st := s.HLen([]byte("h"))
	assert.Nil(t, st)
	assert.Equal(t, int32(2), n)

	assert.Nil(t, s.HMSet([]byte("h"), map[string][]byte{"b": []byte("22"), "c": []byte("3")}))
	n, st = s.HLen([]byte("h"))
	assert.Nil(t, st)
	assert.Equal(t, int32(3), n)
}

func TestHDelMarksStaleAtZero(t *testing.T) {
	s, _ := newStore(t)

	_, st := s.HSet([]byte("h"), []byte("f"), []byte("v"))
	assert.Nil(t, st)

	removed, st := s.HDel([]byte("h"), [][]byte{[]byte("f")})
	assert.Nil(t, st)
	assert.Equal(t, 1, removed)

	_, st = s.HGet([]byte("h"), []byte("f"))
	assert.Equal(t, status.NotFound, st.Kind)

	inserted, st := s.HSet([]byte("h"), []byte("f"), []byte("v2"))
	assert.Nil(t, st)
	assert.True(t, inserted)
}

func TestHIncrbyRequiresIntegerPayload(t *testing.T) {
	s, _ := newStore(t)

	_, st := s.HSet([]byte("h"), []byte("f"), []byte("notanumber"))
	assert.Nil(t, st)

	_, st = s.HIncrby([]byte("h"), []byte("f"), 1)
	assert.Equal(t, status.Corruption, st.Kind)
}

func TestHGetallAndKeysVals(t *testing.T) {
	s, _ := newStore(t)

	assert.Nil(t, s.HMSet([]byte("h"), map[string][]byte{"a": []byte("1"), "b": []byte("2")}))

	keys, st := s.HKeys([]byte("h"))
	assert.Nil(t, st)
	assert.Len(t, keys, 2)

	vals, st := s.HVals([]byte("h"))
	assert.Nil(t, st)
	assert.Len(t, vals, 2)

	all, st := s.HGetall([]byte("h"))
	assert.Nil(t, st)
	assert.Len(t, all, 4)
}

func TestHSetnxOnlyWritesWhenAbsent(t *testing.T) {
	s, _ := newStore(t)

	inserted, st := s.HSetnx([]byte("h"), []byte("f"), []byte("v1"))
	assert.Nil(t, st)
	assert.True(t, inserted)

	inserted, st = s.HSetnx([]byte("h"), []byte("f"), []byte("v2"))
	assert.Nil(t, st)
	assert.False(t, inserted)

	v, st := s.HGet([]byte("h"), []byte("f"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("v1"), v)
}

func TestHSetnxOnFreshKeyCreatesMeta(t *testing.T) {
	s, _ := newStore(t)

	inserted, st := s.HSetnx([]byte("h"), []byte("f"), []byte("v"))
	assert.Nil(t, st)
	assert.True(t, inserted)

	n, st := s.HLen([]byte("h"))
	assert.Nil(t, st)
	assert.Equal(t, int32(1), n)
}

func TestHashExpireNonPositiveMarksStale(t *testing.T) {
	s, _ := newStore(t)

	_, st := s.HSet([]byte("h"), []byte("f"), []byte("v"))
	assert.Nil(t, st)
	assert.Nil(t, s.Expire([]byte("h"), 0))

	_, st = s.HGet([]byte("h"), []byte("f"))
	assert.Equal(t, status.NotFound, st.Kind)
}
