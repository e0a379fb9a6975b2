// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bond

import (
	"slices"

	"github.com/holiman/uint256"

	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/thor"
)

// Tranche is stake that counts towards the validator from Start onwards.
type Tranche struct {
	Start  uint64
	Amount *uint256.Int
}

// Unbond is stake that left at End. It counts for epochs in [Start, End),
// stays slashable for misbehaviour in [Start, End] and is liquid from Withdrawable.
// A redelegated unbond names the validator the stake moved to; it is never
// liquid and its slashes are taken from the stake at To.
type Unbond struct {
	Start        uint64
	End          uint64
	Withdrawable uint64
	Amount       *uint256.Int
	Withdrawn    bool
	To           thor.Address
}

func (u *Unbond) redelegated() bool {
	return !u.To.IsZero()
}

// Position is the stake of one delegator on one validator.
type Position struct {
	Bonds   []*Tranche // ascending by Start, unique Start
	Unbonds []*Unbond  // creation order
	// Inbound is the last epoch stake redelegated here can be slashed for its
	// source. The position cannot be redelegated again until after it.
	Inbound uint64
}

// IsEmpty reports whether nothing is left to track.
func (p *Position) IsEmpty() bool {
	return len(p.Bonds) == 0 && len(p.Unbonds) == 0
}

// BondedAt returns the stake counting at epoch e.
func (p *Position) BondedAt(e uint64) *uint256.Int {
	sum := new(uint256.Int)
	for _, t := range p.Bonds {
		if t.Start <= e {
			sum.Add(sum, t.Amount)
		}
	}
	for _, u := range p.Unbonds {
		if u.Start <= e && e < u.End {
			sum.Add(sum, u.Amount)
		}
	}
	return sum
}

// Locked returns everything still held by the pool for this position.
func (p *Position) Locked() *uint256.Int {
	sum := new(uint256.Int)
	for _, t := range p.Bonds {
		sum.Add(sum, t.Amount)
	}
	for _, u := range p.Unbonds {
		if !u.Withdrawn && !u.redelegated() {
			sum.Add(sum, u.Amount)
		}
	}
	return sum
}

// Withdrawable returns the liquid, not yet withdrawn amount at epoch e.
func (p *Position) Withdrawable(e uint64) *uint256.Int {
	sum := new(uint256.Int)
	for _, u := range p.Unbonds {
		if !u.Withdrawn && !u.redelegated() && u.Withdrawable <= e {
			sum.Add(sum, u.Amount)
		}
	}
	return sum
}

func (p *Position) addTranche(start uint64, amount *uint256.Int) {
	i, found := slices.BinarySearchFunc(p.Bonds, start, func(t *Tranche, s uint64) int {
		switch {
		case t.Start < s:
			return -1
		case t.Start > s:
			return 1
		}
		return 0
	})
	if found {
		p.Bonds[i].Amount = new(uint256.Int).Add(p.Bonds[i].Amount, amount)
		return
	}
	p.Bonds = slices.Insert(p.Bonds, i, &Tranche{Start: start, Amount: new(uint256.Int).Set(amount)})
}

// unbond takes amount from tranches effective at current, newest first.
// The caller checks amount against BondedAt(current). A non-zero to marks
// the unbonds as redelegated.
func (p *Position) unbond(amount *uint256.Int, current, withdrawable uint64, to thor.Address) []*Unbond {
	var (
		remaining = new(uint256.Int).Set(amount)
		created   []*Unbond
	)
	for i := len(p.Bonds) - 1; i >= 0 && !remaining.IsZero(); i-- {
		t := p.Bonds[i]
		if t.Start > current {
			continue
		}
		taken := stakes.Min(remaining, t.Amount)
		t.Amount = new(uint256.Int).Sub(t.Amount, taken)
		remaining.Sub(remaining, taken)

		u := &Unbond{Start: t.Start, End: current, Withdrawable: withdrawable, Amount: taken, To: to}
		if j := slices.IndexFunc(p.Unbonds, func(o *Unbond) bool {
			return !o.Withdrawn && o.Start == u.Start && o.End == u.End && o.Withdrawable == u.Withdrawable && o.To == u.To
		}); j >= 0 {
			p.Unbonds[j].Amount = new(uint256.Int).Add(p.Unbonds[j].Amount, taken)
		} else {
			p.Unbonds = append(p.Unbonds, u)
		}
		created = append(created, u)
	}
	p.dropZero()
	return created
}

// withdraw marks unbonds liquid at e as withdrawn and returns their sum.
func (p *Position) withdraw(e uint64) *uint256.Int {
	sum := new(uint256.Int)
	for _, u := range p.Unbonds {
		if !u.Withdrawn && !u.redelegated() && u.Withdrawable <= e {
			sum.Add(sum, u.Amount)
			u.Withdrawn = true
		}
	}
	return sum
}

// take removes amount from the newest tranches, then from the newest liquid
// unbonds, and returns the spans removed. It stops short when the position
// holds less.
func (p *Position) take(amount *uint256.Int) []span {
	var (
		remaining = new(uint256.Int).Set(amount)
		out       []span
	)
	for i := len(p.Bonds) - 1; i >= 0 && !remaining.IsZero(); i-- {
		t := p.Bonds[i]
		taken := stakes.Min(remaining, t.Amount)
		t.Amount = new(uint256.Int).Sub(t.Amount, taken)
		remaining.Sub(remaining, taken)
		out = append(out, span{t.Start, openEnd, taken})
	}
	for i := len(p.Unbonds) - 1; i >= 0 && !remaining.IsZero(); i-- {
		u := p.Unbonds[i]
		if u.Withdrawn || u.redelegated() {
			continue
		}
		taken := stakes.Min(remaining, u.Amount)
		u.Amount = new(uint256.Int).Sub(u.Amount, taken)
		remaining.Sub(remaining, taken)
		out = append(out, span{u.Start, u.End, taken})
	}
	p.dropZero()
	return slices.DeleteFunc(out, func(s span) bool { return s.amount.IsZero() })
}

// span is an amount counting for the validator over epochs [from, to).
type span struct {
	from, to uint64 // to is exclusive, openEnd for bonds
	amount   *uint256.Int
}

const openEnd = ^uint64(0)

// moved is a slashed amount of a redelegated unbond, to be burned from the
// destination validator.
type moved struct {
	dest   thor.Address
	amount *uint256.Int
}

// slash shrinks every amount that backed the validator at epoch m.
func (p *Position) slash(m uint64, rate stakes.Rate) ([]span, []moved, error) {
	var (
		out   []span
		moves []moved
	)
	for _, t := range p.Bonds {
		if t.Start > m {
			continue
		}
		burn, err := rate.MulAmount(t.Amount)
		if err != nil {
			return nil, nil, err
		}
		if burn.IsZero() {
			continue
		}
		t.Amount = new(uint256.Int).Sub(t.Amount, burn)
		out = append(out, span{t.Start, openEnd, burn})
	}
	for _, u := range p.Unbonds {
		if u.Withdrawn || u.Start > m || m > u.End {
			continue
		}
		burn, err := rate.MulAmount(u.Amount)
		if err != nil {
			return nil, nil, err
		}
		if burn.IsZero() {
			continue
		}
		u.Amount = new(uint256.Int).Sub(u.Amount, burn)
		out = append(out, span{u.Start, u.End, burn})
		if u.redelegated() {
			moves = append(moves, moved{u.To, burn})
		}
	}
	p.dropZero()
	return out, moves, nil
}

// compact merges tranches that started at or before horizon and drops
// withdrawn unbonds that stopped counting by then, and redelegated unbonds
// no longer slashable at horizon. Queries at epochs >= horizon are unaffected.
func (p *Position) compact(horizon uint64) {
	var (
		merged *Tranche
		kept   = p.Bonds[:0]
	)
	for _, t := range p.Bonds {
		if t.Start > horizon {
			kept = append(kept, t)
			continue
		}
		if merged == nil {
			merged = &Tranche{Amount: new(uint256.Int)}
			kept = append(kept, merged)
		}
		merged.Start = t.Start
		merged.Amount.Add(merged.Amount, t.Amount)
	}
	p.Bonds = kept
	p.Unbonds = slices.DeleteFunc(p.Unbonds, func(u *Unbond) bool {
		if u.redelegated() {
			return u.End < horizon
		}
		return u.Withdrawn && u.End <= horizon
	})
}

func (p *Position) dropZero() {
	p.Bonds = slices.DeleteFunc(p.Bonds, func(t *Tranche) bool { return t.Amount.IsZero() })
	p.Unbonds = slices.DeleteFunc(p.Unbonds, func(u *Unbond) bool { return !u.Withdrawn && u.Amount.IsZero() })
}
