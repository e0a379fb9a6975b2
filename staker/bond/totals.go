// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bond

import (
	"slices"
	"sort"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/staker/stakes"
)

// Checkpoint sets the validator total from Epoch until the next checkpoint.
type Checkpoint struct {
	Epoch uint64
	Total *uint256.Int
}

// Totals is the running-total index of a validator, ascending by epoch.
type Totals []*Checkpoint

// At returns the total at epoch e in O(log n).
func (ts Totals) At(e uint64) *uint256.Int {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].Epoch > e })
	if i == 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(ts[i-1].Total)
}

// ensure makes sure a checkpoint starts at e and returns its index.
func (ts Totals) ensure(e uint64) (Totals, int) {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].Epoch >= e })
	if i < len(ts) && ts[i].Epoch == e {
		return ts, i
	}
	return slices.Insert(ts, i, &Checkpoint{Epoch: e, Total: ts.At(e)}), i
}

// add applies delta to every epoch in [from, to). to == openEnd is unbounded.
func (ts Totals) add(from, to uint64, delta *uint256.Int, sub bool) (Totals, error) {
	if sub && len(ts) > 0 && from < ts[0].Epoch {
		// history below the first checkpoint was compacted away
		from = ts[0].Epoch
	}
	if delta.IsZero() || from >= to {
		return ts, nil
	}
	if to != openEnd {
		ts, _ = ts.ensure(to)
	}
	ts, i := ts.ensure(from)
	for ; i < len(ts) && ts[i].Epoch < to; i++ {
		var (
			total *uint256.Int
			err   error
		)
		if sub {
			total, err = stakes.Sub(ts[i].Total, delta)
		} else {
			total, err = stakes.Add(ts[i].Total, delta)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "validator total at epoch %d", ts[i].Epoch)
		}
		ts[i].Total = total
	}
	return ts.squash(), nil
}

// compact drops checkpoints superseded at horizon.
func (ts Totals) compact(horizon uint64) Totals {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].Epoch > horizon })
	if i <= 1 {
		return ts
	}
	return slices.Clone(ts[i-1:])
}

// squash removes checkpoints repeating the previous total.
func (ts Totals) squash() Totals {
	out := ts[:0]
	for _, cp := range ts {
		if len(out) > 0 && out[len(out)-1].Total.Eq(cp.Total) {
			continue
		}
		if len(out) == 0 && cp.Total.IsZero() {
			continue
		}
		out = append(out, cp)
	}
	return out
}
