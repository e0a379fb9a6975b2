// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stakes

import (
	"io"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Rate is a non-negative 18 decimal fixed-point number.
// It encodes to rlp as its scaled integer.
type Rate struct {
	dec sdkmath.LegacyDec
}

var (
	_ rlp.Encoder = Rate{}
	_ rlp.Decoder = (*Rate)(nil)

	precisionMultiplier = new(big.Int).Exp(big.NewInt(10), big.NewInt(sdkmath.LegacyPrecision), nil)
)

// NewRate wraps dec, which must be non-negative.
func NewRate(dec sdkmath.LegacyDec) Rate {
	if dec.IsNil() {
		dec = sdkmath.LegacyZeroDec()
	}
	if dec.IsNegative() {
		panic("negative rate")
	}
	return Rate{dec}
}

// ZeroRate returns 0.
func ZeroRate() Rate { return Rate{sdkmath.LegacyZeroDec()} }

// OneRate returns 1.
func OneRate() Rate { return Rate{sdkmath.LegacyOneDec()} }

// RatioRate returns num/den. den must be positive.
func RatioRate(num, den uint64) Rate {
	return Rate{sdkmath.LegacyNewDec(int64(num)).QuoInt64(int64(den))}
}

// ParseRate parses a decimal string like "0.05".
func ParseRate(s string) (Rate, error) {
	dec, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return Rate{}, errors.Wrapf(err, "parse rate %q", s)
	}
	if dec.IsNegative() {
		return Rate{}, errors.Errorf("negative rate %q", s)
	}
	return Rate{dec}, nil
}

// MustParseRate is ParseRate panicking on error.
func MustParseRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rate) Dec() sdkmath.LegacyDec {
	if r.dec.IsNil() {
		return sdkmath.LegacyZeroDec()
	}
	return r.dec
}

func (r Rate) String() string          { return r.Dec().String() }
func (r Rate) IsZero() bool            { return r.Dec().IsZero() }
func (r Rate) Equal(o Rate) bool       { return r.Dec().Equal(o.Dec()) }
func (r Rate) LT(o Rate) bool          { return r.Dec().LT(o.Dec()) }
func (r Rate) GT(o Rate) bool          { return r.Dec().GT(o.Dec()) }
func (r Rate) Within(lo, hi Rate) bool { return !r.LT(lo) && !r.GT(hi) }

// AbsDiff returns |r - o|.
func (r Rate) AbsDiff(o Rate) Rate {
	return Rate{r.Dec().Sub(o.Dec()).Abs()}
}

// Mul returns r * o, rounded to 18 decimals.
func (r Rate) Mul(o Rate) Rate {
	return Rate{r.Dec().Mul(o.Dec())}
}

// MulInt returns r * n.
func (r Rate) MulInt(n uint64) Rate {
	return Rate{r.Dec().Mul(sdkmath.LegacyNewDecFromBigInt(new(big.Int).SetUint64(n)))}
}

// Quo returns r / o, rounded to 18 decimals. o must be positive.
func (r Rate) Quo(o Rate) Rate {
	return Rate{r.Dec().Quo(o.Dec())}
}

// Cap returns min(r, 1).
func (r Rate) Cap() Rate {
	return Rate{sdkmath.LegacyMinDec(r.Dec(), sdkmath.LegacyOneDec())}
}

// MulAmount returns floor(amount * r).
func (r Rate) MulAmount(amount *uint256.Int) (*uint256.Int, error) {
	prod := new(big.Int).Mul(amount.ToBig(), r.Dec().BigInt())
	prod.Quo(prod, precisionMultiplier)
	res, overflow := uint256.FromBig(prod)
	if overflow {
		return nil, errors.Wrapf(ErrOverflow, "%s * %s", amount, r)
	}
	return res, nil
}

func (r Rate) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, r.Dec().BigInt())
}

func (r *Rate) DecodeRLP(s *rlp.Stream) error {
	var scaled big.Int
	if err := s.Decode(&scaled); err != nil {
		return err
	}
	r.dec = sdkmath.LegacyNewDecFromBigIntWithPrec(&scaled, sdkmath.LegacyPrecision)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Rate) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rate) UnmarshalText(text []byte) error {
	parsed, err := ParseRate(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
