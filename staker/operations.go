// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"encoding/hex"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/vechain/thorpos/event"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/slashing"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/thor"
)

// RegisterValidator registers sender as an inactive validator.
func (s *Staker) RegisterValidator(sender thor.Address, key []byte, commission, maxChange stakes.Rate, current uint64) error {
	p, err := s.params.Get()
	if err != nil {
		return err
	}
	if err := s.dir.Register(sender, key, commission, maxChange, current, p); err != nil {
		return err
	}
	s.events.Emit(&event.Event{
		Type:      event.TypeValidatorRegistered,
		Validator: sender,
		Epoch:     current,
		Attrs: []event.Attr{
			{Key: "key", Value: hex.EncodeToString(key)},
			{Key: "commission", Value: commission.String()},
		},
	})
	return nil
}

// Bond moves amount from the delegator's balance into a bond effective at the pipeline epoch.
func (s *Staker) Bond(delegator, validator thor.Address, amount *uint256.Int, current uint64) error {
	if stakes.IsZero(amount) {
		return reverts.ZeroAmount("bond amount must be positive")
	}
	v, err := s.dir.GetExisting(validator)
	if err != nil {
		return err
	}
	if v.IsJailed() {
		return reverts.InvalidValidator("validator %s is jailed until epoch %d", validator, v.JailedUntil())
	}
	clock, err := s.Clock()
	if err != nil {
		return err
	}
	if err := s.bank.Debit(delegator, amount); err != nil {
		return err
	}
	if err := s.bank.Credit(PoolAddress, amount); err != nil {
		return err
	}
	effective := clock.PipelineEpoch(current)
	if err := s.ledger.Bond(delegator, validator, amount, effective); err != nil {
		return err
	}
	s.events.Emit(&event.Event{
		Type:      event.TypeBonded,
		Validator: validator,
		Account:   delegator,
		Epoch:     effective,
		Amount:    amount,
	})
	return nil
}

// Unbond moves amount of the delegator's current stake into the unbond queue.
func (s *Staker) Unbond(delegator, validator thor.Address, amount *uint256.Int, current uint64) error {
	if _, err := s.dir.GetExisting(validator); err != nil {
		return err
	}
	clock, err := s.Clock()
	if err != nil {
		return err
	}
	withdrawable := clock.UnbondingEpoch(current)
	if _, err := s.ledger.Unbond(delegator, validator, amount, current, withdrawable); err != nil {
		return err
	}
	s.events.Emit(&event.Event{
		Type:      event.TypeUnbonded,
		Validator: validator,
		Account:   delegator,
		Epoch:     withdrawable,
		Amount:    amount,
	})
	return nil
}

// Redelegate moves amount of the delegator's current stake on from to to,
// effective at the pipeline epoch. It stays slashable for misbehaviour on
// from until the unbonding period of the move has passed.
func (s *Staker) Redelegate(delegator, from, to thor.Address, amount *uint256.Int, current uint64) error {
	if from == to {
		return reverts.Validation("cannot redelegate to the same validator")
	}
	if _, err := s.dir.GetExisting(from); err != nil {
		return err
	}
	v, err := s.dir.GetExisting(to)
	if err != nil {
		return err
	}
	if v.IsJailed() {
		return reverts.InvalidValidator("validator %s is jailed until epoch %d", to, v.JailedUntil())
	}
	clock, err := s.Clock()
	if err != nil {
		return err
	}
	effective := clock.PipelineEpoch(current)
	if err := s.ledger.Redelegate(delegator, from, to, amount, current, clock.UnbondingEpoch(current), effective); err != nil {
		return err
	}
	s.events.Emit(&event.Event{
		Type:      event.TypeRedelegated,
		Validator: from,
		Account:   delegator,
		Epoch:     effective,
		Amount:    amount,
		Attrs:     []event.Attr{{Key: "to", Value: to.String()}},
	})
	return nil
}

// Withdraw pays out every matured unbond of delegator on validator. It returns
// zero, not an error, when nothing is due.
func (s *Staker) Withdraw(delegator, validator thor.Address, current uint64) (*uint256.Int, error) {
	if _, err := s.dir.GetExisting(validator); err != nil {
		return nil, err
	}
	p, err := s.params.Get()
	if err != nil {
		return nil, err
	}
	amount, err := s.ledger.Withdraw(delegator, validator, current, horizon(p, current))
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return amount, nil
	}
	if err := s.bank.Debit(PoolAddress, amount); err != nil {
		return nil, err
	}
	if err := s.bank.Credit(delegator, amount); err != nil {
		return nil, err
	}
	s.events.Emit(&event.Event{
		Type:      event.TypeWithdrawn,
		Validator: validator,
		Account:   delegator,
		Epoch:     current,
		Amount:    amount,
	})
	return amount, nil
}

// ChangeCommission schedules a new commission rate for the pipeline epoch.
func (s *Staker) ChangeCommission(sender thor.Address, rate stakes.Rate, current uint64) error {
	p, err := s.params.Get()
	if err != nil {
		return err
	}
	effective := current + p.PipelineOffset
	if err := s.dir.ChangeCommission(sender, rate, current, effective, p); err != nil {
		return err
	}
	s.events.Emit(&event.Event{
		Type:      event.TypeCommissionChanged,
		Validator: sender,
		Epoch:     effective,
		Attrs:     []event.Attr{{Key: "commission", Value: rate.String()}},
	})
	return nil
}

// ChangeConsensusKey rotates the consensus key at the next boundary.
func (s *Staker) ChangeConsensusKey(sender thor.Address, key []byte, current uint64) error {
	if err := s.dir.ChangeConsensusKey(sender, key); err != nil {
		return err
	}
	s.events.Emit(&event.Event{
		Type:      event.TypeConsensusKeyChanged,
		Validator: sender,
		Epoch:     current + 1,
		Attrs:     []event.Attr{{Key: "key", Value: hex.EncodeToString(key)}},
	})
	return nil
}

// Deactivate excludes sender from set derivation from the next boundary.
func (s *Staker) Deactivate(sender thor.Address, current uint64) error {
	if err := s.dir.SetDeactivated(sender, true); err != nil {
		return err
	}
	s.events.Emit(&event.Event{Type: event.TypeValidatorDeactivated, Validator: sender, Epoch: current})
	return nil
}

// Reactivate makes sender a candidate again from the next boundary.
func (s *Staker) Reactivate(sender thor.Address, current uint64) error {
	if err := s.dir.SetDeactivated(sender, false); err != nil {
		return err
	}
	s.events.Emit(&event.Event{Type: event.TypeValidatorReactivated, Validator: sender, Epoch: current})
	return nil
}

// SetParameter queues a governance update for the next boundary. Only the governor may call it.
func (s *Staker) SetParameter(sender thor.Address, name, value string, current uint64) error {
	p, err := s.params.Get()
	if err != nil {
		return err
	}
	if sender != p.Governor {
		return reverts.Validation("%s is not the governor", sender)
	}
	if err := s.params.Queue(name, value); err != nil {
		return err
	}
	s.events.Emit(&event.Event{
		Type:    event.TypeParameterQueued,
		Account: sender,
		Epoch:   current + 1,
		Attrs:   []event.Attr{{Key: "name", Value: name}, {Key: "value", Value: value}},
	})
	return nil
}

// ProcessEvidence slashes and jails the offending validator.
func (s *Staker) ProcessEvidence(ev *slashing.Evidence, current uint64) (*slashing.Record, error) {
	p, err := s.params.Get()
	if err != nil {
		return nil, err
	}
	rec, err := s.slashing.Process(ev, current, p)
	if err != nil {
		return nil, err
	}
	s.events.Emit(&event.Event{
		Type:      event.TypeSlashed,
		Validator: ev.Validator,
		Epoch:     ev.Epoch,
		Amount:    rec.Burned,
		Attrs: []event.Attr{
			{Key: "infraction", Value: ev.Infraction.String()},
			{Key: "rate", Value: rec.Rate.String()},
			{Key: "correlated", Value: strconv.FormatUint(rec.Correlated, 10)},
			{Key: "duplicate", Value: strconv.FormatBool(rec.Duplicate)},
		},
	})
	if rec.Duplicate {
		return rec, nil
	}
	v, err := s.dir.GetExisting(ev.Validator)
	if err != nil {
		return nil, err
	}
	s.events.Emit(&event.Event{
		Type:      event.TypeJailed,
		Validator: ev.Validator,
		Epoch:     v.JailedUntil(),
	})
	metricSlashes().AddWithLabel(1, map[string]string{"infraction": ev.Infraction.String()})
	metricBurned().Add(metricAmount(rec.Burned))
	return rec, nil
}

// horizon is the epoch at or below which history can no longer be slashed or queried.
func horizon(p *params.Params, current uint64) uint64 {
	if current <= p.UnbondingLength+1 {
		return 0
	}
	return current - p.UnbondingLength - 1
}
