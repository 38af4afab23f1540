package lists

import (
	"testing"

	"github.com/PikaLabs/blackwidow/internal/engine"
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

func byteSlices(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestPushPopLen(t *testing.T) {
	s, _ := newStore(t)

	n, st := s.RPush([]byte("l"), byteSlices("a", "b", "c"))
	assert.Nil(t, st)
	assert.Equal(t, int64(3), n)

	length, st := s.LLen([]byte("l"))
	assert.Nil(t, st)
	assert.Equal(t, int64(3), length)

	v, st := s.LPop([]byte("l"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("a"), v)

	v, st = s.RPop([]byte("l"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("c"), v)

	length, st = s.LLen([]byte("l"))
	assert.Nil(t, st)
	assert.Equal(t, int64(1), length)
}

func TestLIndexAndLSet(t *testing.T) {
	s, _ := newStore(t)
	_, st := s.RPush([]byte("l"), byteSlices("a", "b", "c"))
	assert.Nil(t, st)

	v, st := s.LIndex([]byte("l"), 1)
	assert.Nil(t, st)
	assert.Equal(t, []byte("b"), v)

	v, st = s.LIndex([]byte("l"), -1)
	assert.Nil(t, st)
	assert.Equal(t, []byte("c"), v)

	assert.Nil(t, s.LSet([]byte("l"), 1, []byte("B")))
	v, st = s.LIndex([]byte("l"), 1)
	assert.Nil(t, st)
	assert.Equal(t, []byte("B"), v)
}

func TestLInsertBeforeAfter(t *testing.T) {
	s, _ := newStore(t)
	_, st := s.RPush([]byte("l"), byteSlices("a", "c"))
	assert.Nil(t, st)

	n, st := s.LInsert([]byte("l"), true, []byte("c"), []byte("b"))
	assert.Nil(t, st)
	assert.Equal(t, int64(3), n)

	vals, st := s.LRange([]byte("l"), 0, -1)
	assert.Nil(t, st)
	assert.Equal(t, byteSlices("a", "b", "c"), vals)

	n, st = s.LInsert([]byte("l"), false, []byte("missing"), []byte("x"))
	assert.Nil(t, st)
	assert.Equal(t, int64(-1), n)
}

func TestLRemPositiveNegativeZero(t *testing.T) {
	s, _ := newStore(t)
	_, st := s.RPush([]byte("l"), byteSlices("a", "b", "a", "b", "a"))
	assert.Nil(t, st)

	removed, st := s.LRem([]byte("l"), 1, []byte("a"))
	assert.Nil(t, st)
	assert.Equal(t, 1, removed)
	vals, st := s.LRange([]byte("l"), 0, -1)
	assert.Nil(t, st)
	assert.Equal(t, byteSlices("b", "a", "b", "a"), vals)

	removed, st = s.LRem([]byte("l"), -1, []byte("a"))
	assert.Nil(t, st)
	assert.Equal(t, 1, removed)
	vals, st = s.LRange([]byte("l"), 0, -1)
	assert.Nil(t, st)
	assert.Equal(t, byteSlices("b", "a", "b"), vals)

	removed, st = s.LRem([]byte("l"), 0, []byte("b"))
	assert.Nil(t, st)
	assert.Equal(t, 2, removed)
	vals, st = s.LRange([]byte("l"), 0, -1)
	assert.Nil(t, st)
	assert.Equal(t, byteSlices("a"), vals)
}

func TestLTrimMarksStaleWhenEmpty(t *testing.T) {
	s, _ := newStore(t)
	_, st := s.RPush([]byte("l"), byteSlices("a", "b", "c"))
	assert.Nil(t, st)

	assert.Nil(t, s.LTrim([]byte("l"), 5, 10))

	length, st := s.LLen([]byte("l"))
	assert.Nil(t, st)
	assert.Equal(t, int64(0), length)
}

func TestRPoplpushBetweenLists(t *testing.T) {
	s, _ := newStore(t)
	_, st := s.RPush([]byte("src"), byteSlices("a", "b"))
	assert.Nil(t, st)

	v, st := s.RPoplpush([]byte("src"), []byte("dst"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("b"), v)

	vals, st := s.LRange([]byte("dst"), 0, -1)
	assert.Nil(t, st)
	assert.Equal(t, byteSlices("b"), vals)

	vals, st = s.LRange([]byte("src"), 0, -1)
	assert.Nil(t, st)
	assert.Equal(t, byteSlices("a"), vals)
}

func TestListScanResumesAcrossCalls(t *testing.T) {
	s, _ := newStore(t)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		_, st := s.RPush([]byte(k), byteSlices("x"))
		assert.Nil(t, st)
	}

	seen := map[string]bool{}
	var cursor []byte
	for {
		var out [][]byte
		next, st := s.Scan(cursor, 2, func([]byte) bool { return true }, func(k []byte) { out = append(out, k) })
		assert.Nil(t, st)
		for _, k := range out {
			seen[string(k)] = true
		}
		if next == nil {
			break
		}
		cursor = next
	}
	assert.Len(t, seen, 5)
}
