package common

import (
	"errors"

	"github.com/holiman/uint256"
)

// BasisPoints is the denominator used for every fee rate.
const BasisPoints = 10_000

var (
	// ErrMathOverflow is returned when a result does not fit in 256 bits.
	ErrMathOverflow = errors.New("math: overflow")
	// ErrDivisionByZero is returned by MulDiv when d is zero.
	ErrDivisionByZero = errors.New("math: division by zero")

	basisPoints = uint256.NewInt(BasisPoints)
	// WadUnit is the fixed-point scale of one whole share (1e18).
	WadUnit = uint256.NewInt(1_000_000_000_000_000_000)
)

// MulDiv returns floor(x*y/d) computed with a 512-bit intermediate product.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d == nil || d.IsZero() {
		return nil, ErrDivisionByZero
	}
	if x == nil || y == nil {
		return new(uint256.Int), nil
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrMathOverflow
	}
	return z, nil
}

// ApplyBps returns floor(amount*bps/10000). bps above 10000 is clamped.
func ApplyBps(amount *uint256.Int, bps uint64) *uint256.Int {
	if amount == nil || amount.IsZero() || bps == 0 {
		return new(uint256.Int)
	}
	if bps >= BasisPoints {
		return new(uint256.Int).Set(amount)
	}
	// amount*bps/10000 <= amount, so the 512-bit intermediate never overflows.
	z, _ := new(uint256.Int).MulDivOverflow(amount, uint256.NewInt(bps), basisPoints)
	return z
}

// Min returns a copy of the smaller operand.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int).Set(b)
}

// Zero returns a fresh zero value.
func Zero() *uint256.Int { return new(uint256.Int) }
