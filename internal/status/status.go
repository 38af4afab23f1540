// Package status defines the tagged status variant used across every
// store and the façade (SPEC_FULL.md §5.4/§7), in place of a plain
// error, so that per-type results can be aggregated and compared by
// kind. It lives below both the store packages and the root façade
// package so neither creates an import cycle with the other.
package status

import (
	"errors"
	"fmt"
)

// Kind tags a Status with one of the error kinds SPEC_FULL.md §7 names.
type Kind int

const (
	OK Kind = iota
	NotFound
	Corruption
	InvalidArgument
	IOError
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "OK"
	case NotFound:
		return "NotFound"
	case Corruption:
		return "Corruption"
	case InvalidArgument:
		return "InvalidArgument"
	case IOError:
		return "IOError"
	default:
		return "Unknown"
	}
}

// Status is the tagged result every fallible command returns. It
// implements the standard error interface and errors.Is by Kind alone,
// so `errors.Is(st, status.ErrNotFound)` works regardless of message.
type Status struct {
	Kind Kind
	Msg  string
	err  error
}

func (s *Status) Error() string {
	if s.err != nil {
		return fmt.Sprintf("blackwidow: %s: %s: %v", s.Kind, s.Msg, s.err)
	}
	return fmt.Sprintf("blackwidow: %s: %s", s.Kind, s.Msg)
}

func (s *Status) Unwrap() error { return s.err }

func (s *Status) Is(target error) bool {
	t, ok := target.(*Status)
	if !ok {
		return false
	}
	return s.Kind == t.Kind
}

func New(kind Kind, msg string) *Status { return &Status{Kind: kind, Msg: msg} }

func NotFoundf(format string, args ...any) *Status {
	return &Status{Kind: NotFound, Msg: fmt.Sprintf(format, args...)}
}
func Corruptionf(format string, args ...any) *Status {
	return &Status{Kind: Corruption, Msg: fmt.Sprintf(format, args...)}
}
func InvalidArgumentf(format string, args ...any) *Status {
	return &Status{Kind: InvalidArgument, Msg: fmt.Sprintf(format, args...)}
}

// FromErr wraps a lower-layer error (engine I/O, corruption from the
// codec) as a Status. A *Status passed in is returned unchanged; nil
// stays nil.
func FromErr(err error) *Status {
	if err == nil {
		return nil
	}
	var st *Status
	if errors.As(err, &st) {
		return st
	}
	return &Status{Kind: IOError, Msg: "engine error", err: err}
}

var (
	ErrNotFound        = NotFoundf("not found")
	ErrCorruption      = Corruptionf("corruption")
	ErrInvalidArgument = InvalidArgumentf("invalid argument")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
