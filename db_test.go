package blackwidow

import (
	"os"
	"testing"

	"github.com/PikaLabs/blackwidow/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move "now" forward without sleeping, matching
// the S1-S7 scenarios' sleep(2s) steps without the wall-clock wait.
type fakeClock struct{ t uint32 }

func (c *fakeClock) now() uint32 { return c.t }

func openTestDB(t *testing.T) (*DB, *fakeClock) {
	dir := t.TempDir()
	clock := &fakeClock{t: 1000}
	db, err := Open(dir, WithCreateIfMissing(true), WithNow(clock.now), WithRegisterer(prometheus.NewRegistry()))
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(); _ = os.RemoveAll(dir) })
	return db, clock
}

// S1: Set("K","V"); Expire("K",1); sleep past it; Get("K") -> NotFound.
func TestScenario_StringsExpire(t *testing.T) {
	db, clock := openTestDB(t)

	assert.Nil(t, db.Strings.Set([]byte("K"), []byte("V")))
	assert.Nil(t, db.Strings.Expire([]byte("K"), 1))
	clock.t += 2
	_, st := db.Strings.Get([]byte("K"))
	assert.True(t, IsNotFound(st))
}

// S2: Setex("K","HELLO",60); Strlen("K") -> 5.
func TestScenario_SetexStrlen(t *testing.T) {
	db, _ := openTestDB(t)

	assert.Nil(t, db.Strings.Setex([]byte("K"), []byte("HELLO"), 60))
	n, st := db.Strings.Strlen([]byte("K"))
	assert.Nil(t, st)
	assert.Equal(t, 5, n)
}

// S3: hash reset by expire, then re-created with a fresh field.
func TestScenario_HashResetByExpire(t *testing.T) {
	db, clock := openTestDB(t)

	_, st := db.Hashes.HSet([]byte("H"), []byte("f"), []byte("v"))
	assert.Nil(t, st)
	assert.Nil(t, db.Hashes.Expire([]byte("H"), 1))
	clock.t += 2

	_, st = db.Hashes.HGet([]byte("H"), []byte("f"))
	assert.True(t, IsNotFound(st))

	inserted, st := db.Hashes.HSet([]byte("H"), []byte("f2"), []byte("v2"))
	assert.Nil(t, st)
	assert.True(t, inserted)

	n, st := db.Hashes.HLen([]byte("H"))
	assert.Nil(t, st)
	assert.Equal(t, int32(1), n)
}

// S4: SAdd dedups, SCard counts distinct members.
func TestScenario_SetDedup(t *testing.T) {
	db, _ := openTestDB(t)

	n, st := db.Sets.SAdd([]byte("S"), [][]byte{[]byte("a"), []byte("b"), []byte("a"), []byte("c")})
	assert.Nil(t, st)
	assert.Equal(t, 3, n)

	card, st := db.Sets.SCard([]byte("S"))
	assert.Nil(t, st)
	assert.Equal(t, int32(3), card)
}

// S5: LPush in order, LRange reverses push order.
func TestScenario_ListPushRange(t *testing.T) {
	db, _ := openTestDB(t)

	n, st := db.Lists.LPush([]byte("L"), [][]byte{
		[]byte("h"), []byte("s"), []byte("a"), []byte("l"), []byte("s"),
	})
	assert.Nil(t, st)
	assert.Equal(t, int64(5), n)

	vals, st := db.Lists.LRange([]byte("L"), 0, -1)
	assert.Nil(t, st)
	want := [][]byte{[]byte("s"), []byte("l"), []byte("a"), []byte("s"), []byte("h")}
	assert.Equal(t, want, vals)
}

// S6: RPoplpush on the same key with one element is a no-op transfer.
func TestScenario_RPoplpushSelf(t *testing.T) {
	db, _ := openTestDB(t)

	_, st := db.Lists.RPush([]byte("L"), [][]byte{[]byte("o")})
	assert.Nil(t, st)

	elem, st := db.Lists.RPoplpush([]byte("L"), []byte("L"))
	assert.Nil(t, st)
	assert.Equal(t, []byte("o"), elem)

	vals, st := db.Lists.LRange([]byte("L"), 0, -1)
	assert.Nil(t, st)
	assert.Equal(t, [][]byte{[]byte("o")}, vals)
}

// S7: Del fans out across types; a key deleted under any type no
// longer answers under any type.
func TestScenario_CrossTypeDel(t *testing.T) {
	db, _ := openTestDB(t)

	assert.Nil(t, db.Strings.Set([]byte("K"), []byte("v")))
	_, st := db.Hashes.HSet([]byte("K"), []byte("f"), []byte("v"))
	assert.Nil(t, st)

	deleted, st := db.Del([][]byte{[]byte("K")})
	assert.Nil(t, st)
	assert.Equal(t, 1, deleted)

	_, st = db.Strings.Get([]byte("K"))
	assert.True(t, IsNotFound(st))
	_, st = db.Hashes.HGet([]byte("K"), []byte("f"))
	assert.True(t, IsNotFound(st))
}

func TestExistsCountsEachTypeSeparately(t *testing.T) {
	db, _ := openTestDB(t)

	assert.Nil(t, db.Strings.Set([]byte("K"), []byte("v")))
	_, st := db.Hashes.HSet([]byte("K"), []byte("f"), []byte("v"))
	assert.Nil(t, st)

	n, st := db.Exists([][]byte{[]byte("K")})
	assert.Nil(t, st)
	assert.Equal(t, 2, n)
}

func TestScanAcrossTypes(t *testing.T) {
	db, _ := openTestDB(t)

	assert.Nil(t, db.Strings.Set([]byte("alpha"), []byte("1")))
	assert.Nil(t, db.Strings.Set([]byte("beta"), []byte("2")))
	_, st := db.Hashes.HSet([]byte("gamma"), []byte("f"), []byte("v"))
	assert.Nil(t, st)

	var found [][]byte
	var cursor []byte
	for {
		var out [][]byte
		next, st := db.Scan(cursor, "*", 10, &out)
		assert.Nil(t, st)
		found = append(found, out...)
		if next == nil {
			break
		}
		cursor = next
	}

	names := map[string]bool{}
	for _, k := range found {
		names[string(k)] = true
	}
	assert.True(t, names["alpha"])
	assert.True(t, names["beta"])
	assert.True(t, names["gamma"])
}

func TestScanPatternFilters(t *testing.T) {
	db, _ := openTestDB(t)

	assert.Nil(t, db.Strings.Set([]byte("user:1"), []byte("a")))
	assert.Nil(t, db.Strings.Set([]byte("user:2"), []byte("b")))
	assert.Nil(t, db.Strings.Set([]byte("order:1"), []byte("c")))

	var found [][]byte
	var cursor []byte
	for {
		var out [][]byte
		next, st := db.Scan(cursor, "user:*", 10, &out)
		assert.Nil(t, st)
		found = append(found, out...)
		if next == nil {
			break
		}
		cursor = next
	}
	assert.Len(t, found, 2)
}

// A key that only exists as a hash must not be counted as successfully
// expired under strings too (strings.Expire has to check liveness, not
// just delete unconditionally).
func TestFacadeExpireCountsOnlyLiveTypes(t *testing.T) {
	db, _ := openTestDB(t)

	_, st := db.Hashes.HSet([]byte("K"), []byte("f"), []byte("v"))
	assert.Nil(t, st)

	statuses := map[string]*Status{}
	ok := db.Expire([]byte("K"), 0, statuses)
	assert.Equal(t, 1, ok)
	assert.True(t, IsNotFound(statuses["strings"]))
	assert.True(t, IsNotFound(statuses["sets"]))
	assert.True(t, IsNotFound(statuses["lists"]))
	assert.Nil(t, statuses["hashes"])
}

func TestCompactReclaimsStaleMeta(t *testing.T) {
	db, clock := openTestDB(t)

	_, st := db.Hashes.HSet([]byte("H"), []byte("f"), []byte("v"))
	assert.Nil(t, st)
	assert.Nil(t, db.Hashes.Expire([]byte("H"), 1))
	clock.t += 2

	db.Compact()

	_, err := db.Hashes.GetMeta([]byte("H"))
	assert.ErrorIs(t, err, engine.ErrKeyNotFound)

	_, st = db.Hashes.HGet([]byte("H"), []byte("f"))
	assert.True(t, IsNotFound(st))
}
