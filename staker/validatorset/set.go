// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validatorset

import (
	"bytes"
	"slices"

	"github.com/holiman/uint256"

	"github.com/vechain/thorpos/thor"
)

// Member is a validator selected into a set.
type Member struct {
	Address      thor.Address
	ConsensusKey []byte
	Stake        *uint256.Int
	Power        uint64
}

// Set is the validator set published for an epoch, ranked by stake.
type Set struct {
	Epoch   uint64
	Members []*Member
}

// Get returns the member at addr, nil if absent.
func (s *Set) Get(addr thor.Address) *Member {
	if s == nil {
		return nil
	}
	for _, m := range s.Members {
		if m.Address == addr {
			return m
		}
	}
	return nil
}

// Contains reports whether addr is a member.
func (s *Set) Contains(addr thor.Address) bool {
	return s.Get(addr) != nil
}

// TotalPower returns the sum of member voting power.
func (s *Set) TotalPower() uint64 {
	var total uint64
	if s != nil {
		for _, m := range s.Members {
			total += m.Power
		}
	}
	return total
}

// TotalStake returns the sum of member stake.
func (s *Set) TotalStake() *uint256.Int {
	total := new(uint256.Int)
	if s != nil {
		for _, m := range s.Members {
			total.Add(total, m.Stake)
		}
	}
	return total
}

// Update is a voting power change handed to the consensus engine. Power 0 removes the key.
type Update struct {
	Address      thor.Address
	ConsensusKey []byte
	Power        uint64
}

// Diff returns the updates turning prev into next, ordered by address.
// A rotated consensus key yields a removal of the old key followed by the new key.
// Members of next listed in recheck get an update even when unchanged.
func Diff(prev, next *Set, recheck ...thor.Address) []Update {
	var (
		before = index(prev)
		after  = index(next)
		addrs  = make([]thor.Address, 0, len(before)+len(after))
	)
	for addr := range before {
		addrs = append(addrs, addr)
	}
	for addr := range after {
		if _, ok := before[addr]; !ok {
			addrs = append(addrs, addr)
		}
	}
	thor.SortAddresses(addrs)

	var updates []Update
	for _, addr := range addrs {
		p, n := before[addr], after[addr]
		switch {
		case n == nil:
			updates = append(updates, Update{addr, slices.Clone(p.ConsensusKey), 0})
		case p == nil:
			updates = append(updates, Update{addr, slices.Clone(n.ConsensusKey), n.Power})
		case !bytes.Equal(p.ConsensusKey, n.ConsensusKey):
			updates = append(updates,
				Update{addr, slices.Clone(p.ConsensusKey), 0},
				Update{addr, slices.Clone(n.ConsensusKey), n.Power},
			)
		case p.Power != n.Power || slices.Contains(recheck, addr):
			updates = append(updates, Update{addr, slices.Clone(n.ConsensusKey), n.Power})
		}
	}
	return updates
}

func index(s *Set) map[thor.Address]*Member {
	m := make(map[thor.Address]*Member)
	if s != nil {
		for _, member := range s.Members {
			m[member.Address] = member
		}
	}
	return m
}
