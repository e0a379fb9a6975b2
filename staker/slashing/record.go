// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slashing

import (
	"github.com/holiman/uint256"

	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/thor"
)

// Evidence reports misbehaviour of a validator at an epoch.
type Evidence struct {
	Validator  thor.Address
	Epoch      uint64 // epoch of the misbehaviour
	Infraction params.Infraction
	Height     uint64 // height the evidence was detected at
}

// Record is the outcome of processed evidence. Records are append-only.
type Record struct {
	Validator  thor.Address
	Epoch      uint64
	Infraction params.Infraction
	Height     uint64
	Processed  uint64 // epoch the evidence was processed in
	Correlated uint64 // records counted by the cubic rate, including this one
	Rate       stakes.Rate
	Burned     *uint256.Int
	Duplicate  bool
}

func (r *Record) sameOffence(ev *Evidence) bool {
	return r.Validator == ev.Validator && r.Epoch == ev.Epoch && r.Infraction == ev.Infraction
}

// CubicRate returns min(1, base * max(1, n)^3 / scaling).
func CubicRate(base stakes.Rate, n uint64, scaling stakes.Rate) stakes.Rate {
	n = max(n, 1)
	return base.MulInt(n).MulInt(n).MulInt(n).Quo(scaling).Cap()
}
