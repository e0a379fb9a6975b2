// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package bond is the bond ledger and unbond queue. Positions keep their
// epoch-tagged history so past stake can be reconstructed and slashed; a
// per-validator running-total index answers stake queries in O(log epochs).
package bond

import (
	"slices"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/thor"
)

var logger = log.WithContext("pkg", "bond")

type Ledger struct {
	positions   *storage.Mapping[storage.Composite, *Position]
	totals      *storage.Mapping[thor.Address, Totals]
	delegators  *storage.Mapping[thor.Address, []thor.Address] // validator -> delegators
	delegations *storage.Mapping[thor.Address, []thor.Address] // delegator -> validators
	floor       *storage.Raw[uint64]
}

func New(sctx *storage.Context) *Ledger {
	return &Ledger{
		positions:   storage.NewMapping[storage.Composite, *Position](sctx, "positions"),
		totals:      storage.NewMapping[thor.Address, Totals](sctx, "totals"),
		delegators:  storage.NewMapping[thor.Address, []thor.Address](sctx, "delegators"),
		delegations: storage.NewMapping[thor.Address, []thor.Address](sctx, "delegations"),
		floor:       storage.NewRaw[uint64](sctx, "floor"),
	}
}

// Position returns the position of delegator on validator, empty if none.
func (l *Ledger) Position(delegator, validator thor.Address) (*Position, error) {
	pos, err := l.positions.Get(storage.Join(delegator, validator))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get position")
	}
	return pos, nil
}

// BondedAmount returns the stake of delegator counting for validator at epoch.
func (l *Ledger) BondedAmount(delegator, validator thor.Address, epoch uint64) (*uint256.Int, error) {
	pos, err := l.Position(delegator, validator)
	if err != nil {
		return nil, err
	}
	return pos.BondedAt(epoch), nil
}

// ValidatorStake returns the total stake of validator at epoch.
func (l *Ledger) ValidatorStake(validator thor.Address, epoch uint64) (*uint256.Int, error) {
	ts, err := l.Totals(validator)
	if err != nil {
		return nil, err
	}
	return ts.At(epoch), nil
}

func (l *Ledger) Totals(validator thor.Address) (Totals, error) {
	ts, err := l.totals.Get(validator)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get validator totals")
	}
	return ts, nil
}

// Delegators returns the delegators with a position on validator, ascending.
func (l *Ledger) Delegators(validator thor.Address) ([]thor.Address, error) {
	ds, err := l.delegators.Get(validator)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get delegators")
	}
	return ds, nil
}

// Delegations returns the validators delegator holds a position on, ascending.
func (l *Ledger) Delegations(delegator thor.Address) ([]thor.Address, error) {
	vs, err := l.delegations.Get(delegator)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get delegations")
	}
	return vs, nil
}

// Bond records amount as stake of delegator on validator from the effective epoch.
func (l *Ledger) Bond(delegator, validator thor.Address, amount *uint256.Int, effective uint64) error {
	if stakes.IsZero(amount) {
		return reverts.ZeroAmount("bond amount must be positive")
	}
	pos, err := l.Position(delegator, validator)
	if err != nil {
		return err
	}
	pos.addTranche(effective, amount)
	if err := l.addTotals(validator, []span{{effective, openEnd, amount}}, false); err != nil {
		return err
	}
	logger.Debug("bonded", "delegator", delegator, "validator", validator, "amount", amount, "effective", effective)
	return l.setPosition(delegator, validator, pos)
}

// Unbond moves amount of the stake counting at current into the unbond queue,
// liquid from the withdrawable epoch.
func (l *Ledger) Unbond(delegator, validator thor.Address, amount *uint256.Int, current, withdrawable uint64) ([]*Unbond, error) {
	return l.unbond(delegator, validator, amount, current, withdrawable, thor.Address{})
}

// Redelegate moves amount of the stake counting at current on from to a
// tranche on to effective at the given epoch. The stake leaves from as a
// redelegated unbond, so misbehaviour on from up to current is still slashed,
// taking the burn from the stake on to until withdrawable.
func (l *Ledger) Redelegate(delegator, from, to thor.Address, amount *uint256.Int, current, withdrawable, effective uint64) error {
	src, err := l.Position(delegator, from)
	if err != nil {
		return err
	}
	if src.Inbound != 0 && current <= src.Inbound {
		return reverts.Validation("stake redelegated to %s stays slashable for its source until epoch %d", from, src.Inbound)
	}
	if _, err := l.unbond(delegator, from, amount, current, withdrawable, to); err != nil {
		return err
	}
	if err := l.Bond(delegator, to, amount, effective); err != nil {
		return err
	}
	dst, err := l.Position(delegator, to)
	if err != nil {
		return err
	}
	dst.Inbound = max(dst.Inbound, withdrawable)
	return l.setPosition(delegator, to, dst)
}

func (l *Ledger) unbond(delegator, validator thor.Address, amount *uint256.Int, current, withdrawable uint64, to thor.Address) ([]*Unbond, error) {
	if stakes.IsZero(amount) {
		return nil, reverts.ZeroAmount("unbond amount must be positive")
	}
	pos, err := l.Position(delegator, validator)
	if err != nil {
		return nil, err
	}
	if bonded := pos.BondedAt(current); bonded.Lt(amount) {
		return nil, reverts.InsufficientBond("bonded %s, requested %s", bonded, amount)
	}
	created := pos.unbond(amount, current, withdrawable, to)
	if err := l.addTotals(validator, []span{{current, openEnd, amount}}, true); err != nil {
		return nil, err
	}
	logger.Debug("unbonded", "delegator", delegator, "validator", validator, "amount", amount, "withdrawable", withdrawable, "to", to)
	return created, l.setPosition(delegator, validator, pos)
}

// Withdraw releases every unbond liquid at current and returns the released sum.
// Calling it again for the same epoch returns zero. History at or below horizon is compacted.
func (l *Ledger) Withdraw(delegator, validator thor.Address, current, horizon uint64) (*uint256.Int, error) {
	pos, err := l.Position(delegator, validator)
	if err != nil {
		return nil, err
	}
	amount := pos.withdraw(current)
	pos.compact(horizon)
	if err := l.setPosition(delegator, validator, pos); err != nil {
		return nil, err
	}
	if err := l.raiseFloor(horizon); err != nil {
		return nil, err
	}
	return amount, nil
}

// Slash burns rate of every bond and unwithdrawn unbond on validator that
// backed it at epoch m, and returns the burned total. The share of a
// redelegated unbond is burned from the delegator's stake on its destination.
func (l *Ledger) Slash(validator thor.Address, m uint64, rate stakes.Rate) (*uint256.Int, error) {
	ds, err := l.Delegators(validator)
	if err != nil {
		return nil, err
	}
	burned := new(uint256.Int)
	for _, d := range ds {
		pos, err := l.Position(d, validator)
		if err != nil {
			return nil, err
		}
		parts, moves, err := pos.slash(m, rate)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 {
			continue
		}
		for _, part := range parts {
			burned.Add(burned, part.amount)
		}
		if err := l.addTotals(validator, parts, true); err != nil {
			return nil, err
		}
		if err := l.setPosition(d, validator, pos); err != nil {
			return nil, err
		}
		for _, mv := range moves {
			// the redelegated share is not held here
			burned.Sub(burned, mv.amount)
			taken, err := l.take(d, mv.dest, mv.amount)
			if err != nil {
				return nil, err
			}
			burned.Add(burned, taken)
		}
	}
	logger.Debug("slashed", "validator", validator, "epoch", m, "rate", rate, "burned", burned)
	return burned, nil
}

// take removes up to amount of delegator's stake on validator and returns
// what was removed.
func (l *Ledger) take(delegator, validator thor.Address, amount *uint256.Int) (*uint256.Int, error) {
	pos, err := l.Position(delegator, validator)
	if err != nil {
		return nil, err
	}
	parts := pos.take(amount)
	taken := new(uint256.Int)
	for _, part := range parts {
		taken.Add(taken, part.amount)
	}
	if len(parts) == 0 {
		return taken, nil
	}
	if err := l.addTotals(validator, parts, true); err != nil {
		return nil, err
	}
	return taken, l.setPosition(delegator, validator, pos)
}

// Compact merges history at or below horizon for every position on validator
// and its running-total index.
func (l *Ledger) Compact(validator thor.Address, horizon uint64) error {
	ds, err := l.Delegators(validator)
	if err != nil {
		return err
	}
	for _, d := range ds {
		pos, err := l.Position(d, validator)
		if err != nil {
			return err
		}
		pos.compact(horizon)
		if err := l.setPosition(d, validator, pos); err != nil {
			return err
		}
	}
	ts, err := l.Totals(validator)
	if err != nil {
		return err
	}
	if err := l.setTotals(validator, ts.compact(horizon)); err != nil {
		return err
	}
	return l.raiseFloor(horizon)
}

// Floor returns the highest horizon any position was compacted at. History
// before it is merged and can no longer be reconstructed exactly.
func (l *Ledger) Floor() (uint64, error) {
	f, err := l.floor.Get()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get history floor")
	}
	return f, nil
}

func (l *Ledger) raiseFloor(horizon uint64) error {
	f, err := l.Floor()
	if err != nil {
		return err
	}
	if horizon <= f {
		return nil
	}
	return l.floor.Set(horizon)
}

func (l *Ledger) addTotals(validator thor.Address, parts []span, sub bool) error {
	ts, err := l.Totals(validator)
	if err != nil {
		return err
	}
	for _, part := range parts {
		if ts, err = ts.add(part.from, part.to, part.amount, sub); err != nil {
			return err
		}
	}
	return l.setTotals(validator, ts)
}

func (l *Ledger) setTotals(validator thor.Address, ts Totals) error {
	if len(ts) == 0 {
		l.totals.Delete(validator)
		return nil
	}
	if err := l.totals.Set(validator, ts); err != nil {
		return errors.Wrap(err, "failed to set validator totals")
	}
	return nil
}

// setPosition stores pos and keeps both indexes in step with its existence.
func (l *Ledger) setPosition(delegator, validator thor.Address, pos *Position) error {
	key := storage.Join(delegator, validator)
	if pos.IsEmpty() {
		l.positions.Delete(key)
		if err := l.updateIndex(l.delegators, validator, delegator, false); err != nil {
			return err
		}
		return l.updateIndex(l.delegations, delegator, validator, false)
	}
	if err := l.positions.Set(key, pos); err != nil {
		return errors.Wrap(err, "failed to set position")
	}
	if err := l.updateIndex(l.delegators, validator, delegator, true); err != nil {
		return err
	}
	return l.updateIndex(l.delegations, delegator, validator, true)
}

func (l *Ledger) updateIndex(index *storage.Mapping[thor.Address, []thor.Address], owner, member thor.Address, present bool) error {
	list, err := index.Get(owner)
	if err != nil {
		return errors.Wrap(err, "failed to get index")
	}
	i, found := slices.BinarySearchFunc(list, member, thor.Address.Compare)
	switch {
	case present && !found:
		list = slices.Insert(list, i, member)
	case !present && found:
		list = slices.Delete(list, i, i+1)
	default:
		return nil
	}
	if len(list) == 0 {
		index.Delete(owner)
		return nil
	}
	return index.Set(owner, list)
}
