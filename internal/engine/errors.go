package engine

import "errors"

var (
	// ErrKeyNotFound is returned by DB.Get and Snapshot.Get when no entry
	// exists for the given key in the given column family.
	ErrKeyNotFound = errors.New("engine: key not found")
	// ErrUnknownCF is returned when a caller names a column family the
	// DB wasn't opened with.
	ErrUnknownCF = errors.New("engine: unknown column family")
	// ErrClosed names the closed-database condition. No operation returns
	// it: after Close, writes fail with the closed log file's own error
	// and reads still see the in-memory index.
	ErrClosed = errors.New("engine: database is closed")
	// ErrDirInUse is returned by Open when another process holds the
	// directory's flock.
	ErrDirInUse = errors.New("engine: data directory is in use by another process")
	// ErrLogCorrupt is returned by replay when a record's checksum fails
	// or its body is truncated.
	ErrLogCorrupt = errors.New("engine: log record failed checksum or is truncated")
)
