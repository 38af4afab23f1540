package verid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIsStrictlyMonotonic(t *testing.T) {
	g := New()
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		v := g.Next()
		assert.Greater(t, v, prev)
		prev = v
	}
}

func TestConcurrentNextNeverRepeats(t *testing.T) {
	g := New()
	const n = 200
	results := make(chan uint32, n)
	for i := 0; i < n; i++ {
		go func() { results <- g.Next() }()
	}
	seen := make(map[uint32]bool, n)
	for i := 0; i < n; i++ {
		v := <-results
		assert.False(t, seen[v], "version %d handed out twice", v)
		seen[v] = true
	}
}
