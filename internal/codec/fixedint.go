package codec

import (
	"encoding/binary"
	"errors"
)

// ErrCorruption is returned by any decode that finds a truncated buffer
// or an otherwise malformed encoding. Callers map it to their own
// corruption status kind.
var ErrCorruption = errors.New("codec: corruption")

func putU32(dst []byte, v uint32) { binary.BigEndian.PutUint32(dst, v) }
func getU32(src []byte) uint32    { return binary.BigEndian.Uint32(src) }

func putI32(dst []byte, v int32) { binary.BigEndian.PutUint32(dst, uint32(v)) }
func getI32(src []byte) int32    { return int32(binary.BigEndian.Uint32(src)) }

func putI64(dst []byte, v int64) { binary.BigEndian.PutUint64(dst, uint64(v)) }
func getI64(src []byte) int64    { return int64(binary.BigEndian.Uint64(src)) }

func putU64(dst []byte, v uint64) { binary.BigEndian.PutUint64(dst, v) }
func getU64(src []byte) uint64    { return binary.BigEndian.Uint64(src) }
