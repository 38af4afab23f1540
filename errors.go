package blackwidow

import "github.com/PikaLabs/blackwidow/internal/status"

// Status and its Kind are re-exported at the root so embedders never
// need to import internal/status directly; every store returns
// *status.Status, which is this same type.
type Status = status.Status
type Kind = status.Kind

const (
	KindOK              = status.OK
	KindNotFound        = status.NotFound
	KindCorruption      = status.Corruption
	KindInvalidArgument = status.InvalidArgument
	KindIOError         = status.IOError
)

var (
	ErrNotFound        = status.ErrNotFound
	ErrCorruption      = status.ErrCorruption
	ErrInvalidArgument = status.ErrInvalidArgument
)

// IsNotFound reports whether err is (or wraps) a NotFound Status.
func IsNotFound(err error) bool { return status.IsNotFound(err) }
