package strings

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

func TestSetGet(t *testing.T) {
	s, _ := newStore(t)
	assert.Nil(t, s.Set([]byte("k"), []byte("v")))
	v, st := s.Get([]byte("k"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("v"), v)
}

func TestGetAbsentIsNotFound(t *testing.T) {
	s, _ := newStore(t)
	_, st := s.Get([]byte("missing"))
	assert.NotNil(t, st)
	assert.Equal(t, status.NotFound, st.Kind)
}

func TestSetnx(t *testing.T) {
	s, _ := newStore(t)
	ok, st := s.Setnx([]byte("k"), []byte("v1"))
	assert.Nil(t, st)
	assert.True(t, ok)

	ok, st = s.Setnx([]byte("k"), []byte("v2"))
	assert.Nil(t, st)
	assert.False(t, ok)

	v, st := s.Get([]byte("k"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("v1"), v)
}

func TestAppendClearsExpiry(t *testing.T) {
	s, clk := newStore(t)
	assert.Nil(t, s.Setex([]byte("k"), []byte("ab"), 10))

	n, st := s.Append([]byte("k"), []byte("cd"))
	assert.Nil(t, st)
	assert.Equal(t, 4, n)

	clk.t += 20
	v, st := s.Get([]byte("k"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("abcd"), v)
}

func TestSetrangePadsWithNuls(t *testing.T) {
	s, _ := newStore(t)
	n, st := s.Setrange([]byte("k"), 5, []byte("hi"))
	assert.Nil(t, st)
	assert.Equal(t, 7, n)

	v, st := s.Get([]byte("k"))
	assert.Nil(t, st)
	assert.Equal(t, append(make([]byte, 5), []byte("hi")...), v)
}

func TestIncrbyOverflow(t *testing.T) {
	s, _ := newStore(t)
	assert.Nil(t, s.Set([]byte("k"), []byte("9223372036854775807")))
	_, st := s.Incrby([]byte("k"), 1)
	assert.NotNil(t, st)
	assert.Equal(t, status.InvalidArgument, st.Kind)
}

func TestIncrbyfloatRendersWithoutTrailingZeros(t *testing.T) {
	s, _ := newStore(t)
	v, st := s.Incrbyfloat([]byte("k"), 1.5)
	assert.Nil(t, st)
	assert.Equal(t, 1.5, v)

	raw, st := s.Get([]byte("k"))
	assert.Nil(t, st)
	assert.Equal(t, "1.5", string(raw))
}

func TestExpireDeletesOnNonPositiveTTL(t *testing.T) {
	s, _ := newStore(t)
	assert.Nil(t, s.Set([]byte("k"), []byte("v")))
	assert.Nil(t, s.Expire([]byte("k"), 0))
	_, st := s.Get([]byte("k"))
	assert.Equal(t, status.NotFound, st.Kind)
}

func TestExpireOnAbsentKeyIsNotFound(t *testing.T) {
	s, _ := newStore(t)
	st := s.Expire([]byte("never-set"), 0)
	assert.Equal(t, status.NotFound, st.Kind)

	st = s.Expire([]byte("never-set"), 10)
	assert.Equal(t, status.NotFound, st.Kind)
}

func TestGetSetReturnsPreviousValue(t *testing.T) {
	s, _ := newStore(t)
	assert.Nil(t, s.Set([]byte("k"), []byte("old")))

	prev, st := s.GetSet([]byte("k"), []byte("new"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("old"), prev)

	v, st := s.Get([]byte("k"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("new"), v)
}

func TestMSetMGet(t *testing.T) {
	s, _ := newStore(t)
	assert.Nil(t, s.MSet(map[string][]byte{"a": []byte("1"), "b": []byte("2")}))

	vals, st := s.MGet([][]byte{[]byte("a"), []byte("b"), []byte("missing")})
	assert.Nil(t, st)
	assert.Equal(t, [][]byte{[]byte("1"), []byte("2"), nil}, vals)
}

func TestMSetnxFailsIfAnyKeyExists(t *testing.T) {
	s, _ := newStore(t)
	assert.Nil(t, s.Set([]byte("a"), []byte("1")))

	ok, st := s.MSetnx(map[string][]byte{"a": []byte("new"), "c": []byte("3")})
	assert.Nil(t, st)
	assert.False(t, ok)

	_, st = s.Get([]byte("c"))
	assert.Equal(t, status.NotFound, st.Kind)

	ok, st = s.MSetnx(map[string][]byte{"c": []byte("3"), "d": []byte("4")})
	assert.Nil(t, st)
	assert.True(t, ok)
}

func TestScanResumesAcrossCalls(t *testing.T) {
	s, _ := newStore(t)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		assert.Nil(t, s.Set([]byte(k), []byte("v")))
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
