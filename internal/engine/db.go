package engine

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/PikaLabs/blackwidow/fio"
	"github.com/google/btree"
	"go.uber.org/zap"
)

// Options configures Open. The zero value is usable: no logger, no
// metrics, no background compaction (callers must invoke Compact
// themselves), create_if_missing false.
type Options struct {
	CreateIfMissing   bool
	CompactionInterval time.Duration
	Logger            *zap.Logger
	Metrics           *Metrics
}

// DB is one on-disk engine instance: a fixed set of column families
// sharing a directory and a directory-exclusive flock, a single write
// mutex serializing batch commits (mirrors the teacher's db.mu around
// WriteBatch.Commit), and an optional background compaction loop.
type DB struct {
	dir    string
	flock  fio.FileLocker
	mu     sync.Mutex
	cfs    map[string]*cf
	logger *zap.Logger
	metrics *Metrics

	closed   bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Open opens (and, if CreateIfMissing, creates) a database directory
// holding exactly the named column families, one log file each.
func Open(dir string, cfNames []string, opts Options) (*DB, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if !opts.CreateIfMissing {
			return nil, err
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	fl := fio.NewFlock(dir)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrDirInUse
	}

	db := &DB{
		dir:    dir,
		flock:  fl,
		cfs:    make(map[string]*cf, len(cfNames)),
		logger: opts.Logger,
		metrics: opts.Metrics,
		stopCh: make(chan struct{}),
	}

	for _, name := range cfNames {
		c, err := openCF(name, filepath.Join(dir, name+".log"))
		if err != nil {
			_ = fl.Unlock()
			return nil, err
		}
		db.cfs[name] = c
	}

	if opts.CompactionInterval > 0 {
		db.wg.Add(1)
		go db.compactionLoop(opts.CompactionInterval)
	}

	if db.logger != nil {
		db.logger.Info("engine opened", zap.String("dir", dir), zap.Strings("cfs", cfNames))
	}
	return db, nil
}

// Metrics returns the metrics this DB was opened with, or nil if none
// were supplied. Stores use this to wire their own command-latency and
// lock-wait observations without Open's caller threading *Metrics
// through every store constructor.
func (db *DB) Metrics() *Metrics { return db.metrics }

// RegisterFilter installs the compaction filter for one column family.
// Must be called before the background compaction loop or any Compact
// call can rely on it; safe to call once per CF at setup time.
func (db *DB) RegisterFilter(cfName string, filter CompactionFilter) error {
	c, ok := db.cfs[cfName]
	if !ok {
		return ErrUnknownCF
	}
	c.filter = filter
	return nil
}

func (db *DB) cfOrErr(name string) (*cf, error) {
	c, ok := db.cfs[name]
	if !ok {
		return nil, ErrUnknownCF
	}
	return c, nil
}

// Get reads the latest committed value for key in cfName, bypassing any
// snapshot. Compaction filters use this (via the meta capability) to see
// the latest state, per SPEC_FULL.md §4.4.
func (db *DB) Get(cfName string, key []byte) ([]byte, error) {
	c, err := db.cfOrErr(cfName)
	if err != nil {
		return nil, err
	}
	return c.get(key)
}

// Put is a single-key, single-CF convenience wrapper around a one-op
// batch; most store code goes through NewBatch directly so a command
// that touches meta + subentry commits atomically.
func (db *DB) Put(cfName string, key, value []byte) error {
	b := db.NewBatch()
	b.Put(cfName, key, value)
	return b.Commit()
}

func (db *DB) Delete(cfName string, key []byte) error {
	b := db.NewBatch()
	b.Delete(cfName, key)
	return b.Commit()
}

// Compact runs every registered filter once, synchronously, over its
// column family's current live entries. Used both by the background
// loop and by the façade's exported Compact().
func (db *DB) Compact() {
	for name, c := range db.cfs {
		if c.filter == nil {
			continue
		}
		db.compactCF(name, c)
	}
}

func (db *DB) compactCF(name string, c *cf) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toDrop [][]byte
	c.tree.Ascend(func(i btree.Item) bool {
		item := i.(*kv)
		if c.filter.Decision(item.key, item.value) == Drop {
			toDrop = append(toDrop, item.key)
		}
		return true
	})
	for _, key := range toDrop {
		c.tree.Delete(newProbe(key))
	}

	if err := c.log.rewrite(func(emit func(key, value []byte)) {
		c.tree.Ascend(func(i btree.Item) bool {
			item := i.(*kv)
			emit(item.key, item.value)
			return true
		})
	}); err != nil && db.logger != nil {
		db.logger.Error("compaction log rewrite failed", zap.String("cf", name), zap.Error(err))
	}

	if db.metrics != nil {
		db.metrics.CompactionRuns.Inc()
		db.metrics.EntriesDropped.WithLabelValues(name).Add(float64(len(toDrop)))
	}
	if db.logger != nil {
		db.logger.Debug("compaction pass finished", zap.String("cf", name), zap.Int("dropped", len(toDrop)))
	}
}

func (db *DB) compactionLoop(interval time.Duration) {
	defer db.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopCh:
			return
		case <-ticker.C:
			db.Compact()
		}
	}
}

// Close stops the background compaction loop (if any), releases the
// directory lock, and closes every column family's log file.
func (db *DB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	close(db.stopCh)
	db.wg.Wait()

	var firstErr error
	for _, c := range db.cfs {
		if err := c.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := db.flock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	if db.logger != nil {
		db.logger.Info("engine closed", zap.String("dir", db.dir))
	}
	return firstErr
}
