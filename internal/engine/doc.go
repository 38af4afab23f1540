// Package engine implements the ordered key-value engine that
// SPEC_FULL.md treats as an external collaborator: column families, an
// atomic multi-CF write batch, per-CF point-in-time snapshots, ordered
// iteration, and a pluggable compaction-filter hook invoked by a
// background compaction loop.
//
// Each column family is an in-memory ordered index (github.com/google/btree,
// whose Clone is O(1) and copy-on-write — exactly what a cheap snapshot
// needs) backed by an append-only log file for durability, in the style
// of the teacher's bitcask data files. Compaction rewrites a CF's log
// from its current live btree contents after running the CF's
// CompactionFilter over every entry, mirroring the teacher's merge.go
// file-rewrite but adding the filter predicate merge.go never had.
package engine
