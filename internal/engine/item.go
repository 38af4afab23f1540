package engine

import (
	"bytes"

	"github.com/google/btree"
)

// kv is the btree.Item stored in every column family's ordered index.
// Equality/ordering is purely on key; value rides along.
type kv struct {
	key   []byte
	value []byte
}

func (a *kv) Less(than btree.Item) bool {
	return bytes.Compare(a.key, than.(*kv).key) < 0
}

func newProbe(key []byte) *kv { return &kv{key: key} }

// NextKey returns the lexicographically smallest byte string strictly
// greater than key, by appending a zero byte. Scan (SPEC_FULL.md §4.9)
// uses this to turn "last key visited" into a resume cursor without
// needing the column family's keyspace to support increment.
func NextKey(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}
