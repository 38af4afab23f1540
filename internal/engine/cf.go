package engine

import (
	"sync"

	"github.com/google/btree"
)

// btreeDegree matches the teacher's keydir.BTree default degree.
const btreeDegree = 32

// Decision is what a CompactionFilter returns for one entry. This core
// only ever needs keep/drop, not the engine's full replace() capability.
type Decision int

const (
	Keep Decision = iota
	Drop
)

// CompactionFilter is invoked by the background compaction loop for
// every entry in the column family it's registered against. It must be
// safe to call concurrently with foreground reads and writes and must
// never block on the lock manager.
type CompactionFilter interface {
	Decision(key, value []byte) Decision
}

// cf is one column family: an ordered in-memory index backed by an
// append-only log for durability, plus an optional compaction filter.
type cf struct {
	name   string
	mu     sync.RWMutex
	tree   *btree.BTree
	log    *logFile
	filter CompactionFilter
}

func openCF(name, path string) (*cf, error) {
	lf, err := openLogFile(path)
	if err != nil {
		return nil, err
	}
	c := &cf{name: name, tree: btree.New(btreeDegree), log: lf}
	if err := lf.replay(func(key, value []byte, isDelete bool) {
		if isDelete {
			c.tree.Delete(newProbe(key))
		} else {
			c.tree.ReplaceOrInsert(&kv{key: key, value: value})
		}
	}); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *cf) get(key []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item := c.tree.Get(newProbe(key))
	if item == nil {
		return nil, ErrKeyNotFound
	}
	return item.(*kv).value, nil
}

func (c *cf) clone() *btree.BTree {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tree.Clone()
}

func (c *cf) close() error {
	return c.log.close()
}
