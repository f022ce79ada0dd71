package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Balance is an unsigned 128-bit token amount in the runtime's smallest unit.
// It is marshalled to and from JSON and YAML as a decimal string.
type Balance struct {
	v uint256.Int
}

// NewBalance creates a Balance from a 64-bit amount.
func NewBalance(amount uint64) Balance {
	var b Balance
	b.v.SetUint64(amount)
	return b
}

// ParseBalance parses a decimal amount. Values wider than 128 bits are rejected.
func ParseBalance(s string) (Balance, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Balance{}, fmt.Errorf("invalid balance %q: %w", s, err)
	}
	if v.BitLen() > 128 {
		return Balance{}, fmt.Errorf("invalid balance %q: exceeds 128 bits", s)
	}
	return Balance{v: *v}, nil
}

// MustParseBalance is like ParseBalance but panics on invalid input.
func MustParseBalance(s string) Balance {
	b, err := ParseBalance(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Halves returns the low and high 64-bit words of the amount, the layout the
// runtime uses when writing a balance into linear memory.
func (b Balance) Halves() (lo, hi uint64) {
	return b.v[0], b.v[1]
}

// IsZero reports whether the amount is zero.
func (b Balance) IsZero() bool {
	return b.v.IsZero()
}

func (b Balance) String() string {
	return b.v.Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (b Balance) MarshalText() ([]byte, error) {
	return []byte(b.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Balance) UnmarshalText(text []byte) error {
	parsed, err := ParseBalance(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
