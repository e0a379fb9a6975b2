// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stakes holds the checked arithmetic used for token amounts and rates.
// Overflow and underflow are never expected for valid ledgers; they surface as
// ErrOverflow/ErrUnderflow and callers treat them as fatal.
package stakes

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var (
	ErrOverflow  = errors.New("amount overflow")
	ErrUnderflow = errors.New("amount underflow")
)

// Zero returns a new zero amount.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// NewAmount returns n as an amount.
func NewAmount(n uint64) *uint256.Int {
	return uint256.NewInt(n)
}

// IsZero reports whether a is nil or zero.
func IsZero(a *uint256.Int) bool {
	return a == nil || a.IsZero()
}

// Add returns a + b.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, errors.Wrapf(ErrOverflow, "%s + %s", a, b)
	}
	return sum, nil
}

// Sub returns a - b.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, errors.Wrapf(ErrUnderflow, "%s - %s", a, b)
	}
	return diff, nil
}

// MulDiv returns floor(a * b / c) computed at 512 bit precision.
func MulDiv(a, b, c *uint256.Int) (*uint256.Int, error) {
	if c.IsZero() {
		return nil, errors.New("division by zero")
	}
	res, overflow := new(uint256.Int).MulDivOverflow(a, b, c)
	if overflow {
		return nil, errors.Wrapf(ErrOverflow, "%s * %s / %s", a, b, c)
	}
	return res, nil
}

// Min returns the smaller of a and b.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}

// ParseAmount parses a base 10 amount.
func ParseAmount(s string) (*uint256.Int, error) {
	a, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.Wrapf(err, "parse amount %q", s)
	}
	return a, nil
}
