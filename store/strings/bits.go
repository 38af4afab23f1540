package strings

import (
	"math/bits"

	"github.com/PikaLabs/blackwidow/internal/status"
)

// normalizeRange resolves Redis-style negative start/end against
// length, clamping to [0, length-1] (or an empty range if length is 0).
func normalizeRange(start, end, length int) (int, int) {
	if length == 0 {
		return 0, -1
	}
	if start < 0 {
		start += length
	}
	if end < 0 {
		end += length
	}
	if start < 0 {
		start = 0
	}
	if end >= length {
		end = length - 1
	}
	return start, end
}

// BitCount counts set bits in payload[start:end+1] (inclusive), with
// Redis-style negative bounds counted from the end.
func (s *Store) BitCount(key []byte, start, end int) (int, *status.Status) {
	defer s.observe("BitCount")()
	payload, found, st := s.get(key)
	if st != nil {
		return 0, st
	}
	if !found {
		return 0, nil
	}
	start, end = normalizeRange(start, end, len(payload))
	count := 0
	for i := start; i <= end; i++ {
		count += bits.OnesCount8(payload[i])
	}
	return count, nil
}

// GetBit returns the bit at offset (0 if key is absent/stale or offset
// is past the end of the payload).
func (s *Store) GetBit(key []byte, offset int64) (int, *status.Status) {
	defer s.observe("GetBit")()
	if offset < 0 {
		return 0, status.ErrInvalidArgument
	}
	payload, found, st := s.get(key)
	if st != nil {
		return 0, st
	}
	if !found {
		return 0, nil
	}
	byteIdx := int(offset / 8)
	if byteIdx >= len(payload) {
		return 0, nil
	}
	bitIdx := uint(7 - offset%8)
	return int((payload[byteIdx] >> bitIdx) & 1), nil
}

// SetBit sets the bit at offset to value (0 or 1), growing the payload
// with zero bytes as needed, and returns the bit's previous value.
func (s *Store) SetBit(key []byte, offset int64, value int) (int, *status.Status) {
	defer s.observe("SetBit")()
	if offset < 0 {
		return 0, status.ErrInvalidArgument
	}
	if value != 0 && value != 1 {
		return 0, status.InvalidArgumentf("setbit: value must be 0 or 1")
	}

	g := s.locks.Acquire(key)
	defer g.Release()

	payload, found, st := s.get(key)
	if st != nil {
		return 0, st
	}
	if !found {
		payload = nil
	}
	byteIdx := int(offset / 8)
	if byteIdx >= len(payload) {
		grown := make([]byte, byteIdx+1)
		copy(grown, payload)
		payload = grown
	} else {
		payload = append([]byte{}, payload...)
	}
	bitIdx := uint(7 - offset%8)
	prev := int((payload[byteIdx] >> bitIdx) & 1)
	if value == 1 {
		payload[byteIdx] |= 1 << bitIdx
	} else {
		payload[byteIdx] &^= 1 << bitIdx
	}
	if st := s.write(key, payload, 0); st != nil {
		return 0, st
	}
	return prev, nil
}

// BitPos returns the index of the first bit equal to target within
// payload[start:end+1] (Redis-style negative bounds), or -1 if not
// found.
func (s *Store) BitPos(key []byte, target int, start, end int) (int64, *status.Status) {
	defer s.observe("BitPos")()
	payload, found, st := s.get(key)
	if st != nil {
		return -1, st
	}
	if !found {
		return -1, nil
	}
	start, end = normalizeRange(start, end, len(payload))
	want := byte(0)
	if target != 0 {
		want = 1
	}
	for i := start; i <= end; i++ {
		for b := 0; b < 8; b++ {
			bit := (payload[i] >> uint(7-b)) & 1
			if bit == want {
				return int64(i*8 + b), nil
			}
		}
	}
	return -1, nil
}

// BitOpKind selects the boolean operation BitOp performs.
type BitOpKind int

const (
	BitAnd BitOpKind = iota
	BitOr
	BitXor
	BitNot
)

// BitOp computes the bitwise op across srcKeys (exactly one for BitNot)
// and writes the result into destKey, returning the result length.
// Shorter operands are treated as zero-padded to the longest operand's
// length.
func (s *Store) BitOp(op BitOpKind, destKey []byte, srcKeys ...[]byte) (int, *status.Status) {
	defer s.observe("BitOp")()
	if op == BitNot && len(srcKeys) != 1 {
		return 0, status.InvalidArgumentf("bitop: NOT requires exactly one source key")
	}
	operands := make([][]byte, len(srcKeys))
	maxLen := 0
	for i, k := range srcKeys {
		payload, found, st := s.get(k)
		if st != nil {
			return 0, st
		}
		if found {
			operands[i] = payload
		}
		if len(operands[i]) > maxLen {
			maxLen = len(operands[i])
		}
	}

	result := make([]byte, maxLen)
	switch op {
	case BitNot:
		src := operands[0]
		for i := 0; i < maxLen; i++ {
			var b byte
			if i < len(src) {
				b = src[i]
			}
			result[i] = ^b
		}
	case BitAnd:
		for i := range result {
			result[i] = 0xFF
		}
		for _, src := range operands {
			for i := 0; i < maxLen; i++ {
				var b byte
				if i < len(src) {
					b = src[i]
				}
				result[i] &= b
			}
		}
	case BitOr:
		for _, src := range operands {
			for i := 0; i < len(src); i++ {
				result[i] |= src[i]
			}
		}
	case BitXor:
		for _, src := range operands {
			for i := 0; i < len(src); i++ {
				result[i] ^= src[i]
			}
		}
	default:
		return 0, status.InvalidArgumentf("bitop: unknown operator")
	}

	g := s.locks.Acquire(destKey)
	defer g.Release()
	if st := s.write(destKey, result, 0); st != nil {
		return 0, st
	}
	return len(result), nil
}
