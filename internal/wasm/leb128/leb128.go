// Package leb128 reads and writes the variable-length integer encoding used by
// the WebAssembly binary format.
package leb128

import (
	"errors"
)

var (
	// ErrOverflow is returned when an encoded value does not fit the requested width.
	ErrOverflow = errors.New("leb128: value overflows integer width")
	// ErrTruncated is returned when the input ends before the final byte of a value.
	ErrTruncated = errors.New("leb128: truncated value")
)

// AppendUint64 appends the unsigned encoding of v to b.
func AppendUint64(b []byte, v uint64) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		b = append(b, c)
		if c&0x80 == 0 {
			return b
		}
	}
}

// AppendUint32 appends the unsigned encoding of v to b.
func AppendUint32(b []byte, v uint32) []byte {
	return AppendUint64(b, uint64(v))
}

// AppendInt64 appends the signed encoding of v to b.
func AppendInt64(b []byte, v int64) []byte {
	for {
		c := byte(v & 0x7f)
		s := c & 0x40
		v >>= 7
		if (v != -1 || s == 0) && (v != 0 || s != 0) {
			c |= 0x80
		}
		b = append(b, c)
		if c&0x80 == 0 {
			return b
		}
	}
}

// DecodeUint64 decodes an unsigned value of at most n bits from the start of b.
// It returns the value and the number of bytes consumed.
func DecodeUint64(b []byte, n uint) (uint64, int, error) {
	var (
		result uint64
		shift  uint
	)
	for i, c := range b {
		if shift >= n {
			return 0, 0, ErrOverflow
		}
		low := uint64(c & 0x7f)
		if n < 64 && shift+7 > n && low>>(n-shift) != 0 {
			return 0, 0, ErrOverflow
		}
		if n == 64 && shift == 63 && low > 1 {
			return 0, 0, ErrOverflow
		}
		result |= low << shift
		if c&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrTruncated
}

// DecodeUint32 decodes an unsigned 32-bit value from the start of b.
func DecodeUint32(b []byte) (uint32, int, error) {
	v, n, err := DecodeUint64(b, 32)
	return uint32(v), n, err
}
