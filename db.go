// Package blackwidow implements a multi-type data store layering
// Redis-style abstract data types (strings, hashes, sets, lists) over
// four independent ordered key-value engines, one per type, connected
// by a shared encoding/lock/snapshot/compaction-filter discipline
// (SPEC_FULL.md §§2-4).
package blackwidow

import (
	"os"
	"path/filepath"

	"github.com/PikaLabs/blackwidow/internal/engine"
	"github.com/PikaLabs/blackwidow/internal/filter"
	"github.com/PikaLabs/blackwidow/internal/glob"
	"github.com/PikaLabs/blackwidow/internal/status"
	"github.com/PikaLabs/blackwidow/store/hashes"
	"github.com/PikaLabs/blackwidow/store/lists"
	"github.com/PikaLabs/blackwidow/store/sets"
	strs "github.com/PikaLabs/blackwidow/store/strings"
	"go.uber.org/zap"
)

// DB is the façade of SPEC_FULL.md §4.9: the single entry point that
// owns one independent on-disk engine per ADT (strings/, hashes/,
// sets/, lists/ under path) and routes commands to the right store, or
// fans a cross-type command (Expire, Del, Exists, Scan) out across all
// four.
type DB struct {
	Strings *strs.Store
	Hashes  *hashes.Store
	Sets    *sets.Store
	Lists   *lists.Store

	opts *Options
}

// Open opens (or creates, if WithCreateIfMissing) the four type
// directories under path and wires each store's compaction filters.
func Open(path string, opts ...Option) (*DB, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	metrics := engine.NewMetrics(o.registerer)

	strDB, err := openEngine(filepath.Join(path, "strings"), strs.ColumnFamilies, o, metrics)
	if err != nil {
		return nil, err
	}
	hashDB, err := openEngine(filepath.Join(path, "hashes"), hashes.ColumnFamilies, o, metrics)
	if err != nil {
		return nil, err
	}
	setDB, err := openEngine(filepath.Join(path, "sets"), sets.ColumnFamilies, o, metrics)
	if err != nil {
		return nil, err
	}
	listDB, err := openEngine(filepath.Join(path, "lists"), lists.ColumnFamilies, o, metrics)
	if err != nil {
		return nil, err
	}

	strsStore := strs.New(strDB, o.now)
	hashStore := hashes.New(hashDB, o.now)
	setStore := sets.New(setDB, o.now)
	listStore := lists.New(listDB, o.now)

	if err := strDB.RegisterFilter(strs.ColumnFamilies[0], filter.StringsFilter{Now: o.now}); err != nil {
		return nil, err
	}
	if err := hashDB.RegisterFilter(hashes.ColumnFamilies[0], filter.NewHashSetMetaFilter(o.now)); err != nil {
		return nil, err
	}
	if err := hashDB.RegisterFilter(hashes.ColumnFamilies[1], filter.NewHashFieldFilter(o.now, hashStore)); err != nil {
		return nil, err
	}
	if err := setDB.RegisterFilter(sets.ColumnFamilies[0], filter.NewHashSetMetaFilter(o.now)); err != nil {
		return nil, err
	}
	if err := setDB.RegisterFilter(sets.ColumnFamilies[1], filter.NewSetMemberFilter(o.now, setStore)); err != nil {
		return nil, err
	}
	if err := listDB.RegisterFilter(lists.ColumnFamilies[0], filter.NewListMetaFilter(o.now)); err != nil {
		return nil, err
	}
	if err := listDB.RegisterFilter(lists.ColumnFamilies[1], filter.NewListNodeFilter(o.now, listStore)); err != nil {
		return nil, err
	}

	if o.logger != nil {
		o.logger.Info("blackwidow opened", zap.String("path", path))
	}

	return &DB{
		Strings: strsStore,
		Hashes:  hashStore,
		Sets:    setStore,
		Lists:   listStore,
		opts:    o,
	}, nil
}

func openEngine(dir string, cfs []string, o *Options, metrics *engine.Metrics) (*engine.DB, error) {
	if o.createIfMissing {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return engine.Open(dir, cfs, engine.Options{
		CreateIfMissing:    o.createIfMissing,
		CompactionInterval: o.compactionInterval,
		Logger:             o.logger,
		Metrics:            metrics,
	})
}

// Close releases every type store's engine.
func (db *DB) Close() error {
	var firstErr error
	for _, c := range []func() error{db.Strings.Close, db.Hashes.Close, db.Sets.Close, db.Lists.Close} {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Compact fans out to every type's engine, running all registered
// compaction filters once, synchronously (SPEC_FULL.md Open Question:
// unlike the original, which only compacted strings and hashes, this
// compacts every type for consistency).
func (db *DB) Compact() {
	db.Strings.Compact()
	db.Hashes.Compact()
	db.Sets.Compact()
	db.Lists.Compact()
}

// Expire calls Expire(key, ttlSeconds) on every type store, populating
// statuses with each type's result and returning the count of types
// where it succeeded, or -1 if any non-NotFound error occurred
// (SPEC_FULL.md §4.9).
func (db *DB) Expire(key []byte, ttlSeconds int64, statuses map[string]*status.Status) int {
	ok := 0
	for name, fn := range map[string]func([]byte, int64) *status.Status{
		"strings": db.Strings.Expire,
		"hashes":  db.Hashes.Expire,
		"sets":    db.Sets.Expire,
		"lists":   db.Lists.Expire,
	} {
		st := fn(key, ttlSeconds)
		if statuses != nil {
			statuses[name] = st
		}
		if st == nil {
			ok++
		} else if !status.IsNotFound(st) {
			return -1
		}
	}
	return ok
}

// Del deletes key from every type, counting it as deleted overall if at
// least one type deleted it successfully.
func (db *DB) Del(keys [][]byte) (int, *status.Status) {
	deleted := 0
	for _, key := range keys {
		any := false
		for _, fn := range []func([]byte) (bool, *status.Status){
			db.Strings.Del, db.Hashes.Del, db.Sets.Del, db.Lists.Del,
		} {
			ok, st := fn(key)
			if st != nil && !status.IsNotFound(st) {
				return 0, st
			}
			if ok {
				any = true
			}
		}
		if any {
			deleted++
		}
	}
	return deleted, nil
}

// scanners fixes the type order Scan walks, matching the façade's
// field order (SPEC_FULL.md §4.9).
func (db *DB) scanners() []func([]byte, int, func([]byte) bool, func([]byte)) ([]byte, *status.Status) {
	return []func([]byte, int, func([]byte) bool, func([]byte)) ([]byte, *status.Status){
		db.Strings.Scan, db.Hashes.Scan, db.Sets.Scan, db.Lists.Scan,
	}
}

// Scan continues a cursor-based iteration across every type in a fixed
// order, appending live keys matching pattern to out. cursor is nil (or
// empty) to start; the returned cursor is nil once iteration has
// covered every type, matching the standard at-least-once,
// terminates-at-zero scan contract. count is a hint for how many
// entries to examine per call, not a hard cap on matches returned
// (SPEC_FULL.md §4.9).
func (db *DB) Scan(cursor []byte, pattern string, count int, out *[][]byte) ([]byte, *status.Status) {
	typeIdx := 0
	var resume []byte
	if len(cursor) > 0 {
		typeIdx = int(cursor[0])
		resume = cursor[1:]
	}
	if count <= 0 {
		count = 10
	}

	match := func(key []byte) bool { return glob.Match(pattern, string(key)) }
	emit := func(key []byte) { *out = append(*out, append([]byte(nil), key...)) }

	scanners := db.scanners()
	for typeIdx < len(scanners) {
		next, st := scanners[typeIdx](resume, count, match, emit)
		if st != nil {
			return nil, st
		}
		if next == nil {
			typeIdx++
			resume = nil
			continue
		}
		c := make([]byte, 1+len(next))
		c[0] = byte(typeIdx)
		copy(c[1:], next)
		return c, nil
	}
	return nil, nil
}

// Exists counts key's presence across types, each type's presence
// counting separately — a key present under two types contributes 2.
func (db *DB) Exists(keys [][]byte) (int, *status.Status) {
	total := 0
	for _, key := range keys {
		for _, fn := range []func([]byte) (bool, *status.Status){
			db.Strings.Exists, db.Hashes.Exists, db.Sets.Exists, db.Lists.Exists,
		} {
			ok, st := fn(key)
			if st != nil && !status.IsNotFound(st) {
				return 0, st
			}
			if ok {
				total++
			}
		}
	}
	return total, nil
}
