package lockmgr

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquireExcludesSameKey(t *testing.T) {
	m := New()
	var counter int
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g := m.Acquire([]byte("k"))
			defer g.Release()
			counter++
			time.Sleep(time.Microsecond)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestAcquireDistinctKeysDoNotBlockEachOther(t *testing.T) {
	m := New()
	g1 := m.Acquire([]byte("a"))
	done := make(chan struct{})
	go func() {
		g2 := m.Acquire([]byte("b"))
		g2.Release()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("acquiring a distinct key blocked")
	}
	g1.Release()
}

func TestEntryIsRemovedWhenRefcountReachesZero(t *testing.T) {
	m := New()
	g := m.Acquire([]byte("x"))
	g.Release()

	b := m.bucketFor([]byte("x"))
	b.mu.Lock()
	_, present := b.entries["x"]
	b.mu.Unlock()
	assert.False(t, present)
}

func TestAcquireTwoReversedKeysGivesDistinctGuards(t *testing.T) {
	m := New()
	ga, gb := m.AcquireTwo([]byte("b"), []byte("a"))
	assert.NotSame(t, ga, gb)
	ReleaseTwo(ga, gb)
}

func TestAcquireTwoSameKeyCollapses(t *testing.T) {
	m := New()
	ga, gb := m.AcquireTwo([]byte("same"), []byte("same"))
	assert.Same(t, ga, gb)
	ReleaseTwo(ga, gb)
}
