// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"strconv"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/event"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/reward"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/validatorset"
	"github.com/vechain/thorpos/thor"
)

// GenesisValidator is a validator present from epoch 0.
type GenesisValidator struct {
	Address             thor.Address
	ConsensusKey        []byte
	Commission          stakes.Rate
	MaxCommissionChange stakes.Rate
	SelfBond            *uint256.Int
}

// GenesisBond is stake effective from epoch 0.
type GenesisBond struct {
	Delegator thor.Address
	Validator thor.Address
	Amount    *uint256.Int
}

// InitGenesis stores the parameters, registers the validators, mints the
// genesis stake into the pool and publishes the set of epoch 0.
func (s *Staker) InitGenesis(p *params.Params, validators []GenesisValidator, bonds []GenesisBond) (*validatorset.Set, []validatorset.Update, error) {
	if err := s.params.Init(p); err != nil {
		return nil, nil, err
	}
	for _, gv := range validators {
		if err := s.RegisterValidator(gv.Address, gv.ConsensusKey, gv.Commission, gv.MaxCommissionChange, 0); err != nil {
			return nil, nil, errors.Wrapf(err, "genesis validator %s", gv.Address)
		}
		if !stakes.IsZero(gv.SelfBond) {
			bonds = append([]GenesisBond{{gv.Address, gv.Address, gv.SelfBond}}, bonds...)
		}
	}
	for _, gb := range bonds {
		if _, err := s.dir.GetExisting(gb.Validator); err != nil {
			return nil, nil, errors.Wrapf(err, "genesis bond of %s", gb.Delegator)
		}
		if err := s.bank.Credit(PoolAddress, gb.Amount); err != nil {
			return nil, nil, err
		}
		if err := s.ledger.Bond(gb.Delegator, gb.Validator, gb.Amount, 0); err != nil {
			return nil, nil, errors.Wrapf(err, "genesis bond of %s", gb.Delegator)
		}
		s.events.Emit(&event.Event{
			Type:      event.TypeBonded,
			Validator: gb.Validator,
			Account:   gb.Delegator,
			Amount:    gb.Amount,
		})
	}
	return s.publish(0, p)
}

// RecordVotes attributes the commit votes of a block to epoch, or to the
// oldest undistributed epoch when epoch was already paid.
func (s *Staker) RecordVotes(epoch uint64, votes []reward.Vote) error {
	return s.tracker.Record(epoch, votes)
}

// Housekeep runs the transition into newEpoch: queued parameters first, then
// rewards for the finished epoch, jail releases and pending validator changes,
// history compaction, and finally the new validator set, in which validators
// jailed since the last boundary are re-evaluated. It returns the voting power
// updates for the consensus engine.
func (s *Staker) Housekeep(newEpoch uint64) ([]validatorset.Update, error) {
	if newEpoch == 0 {
		return nil, errors.New("epoch 0 is published at genesis")
	}
	finished := newEpoch - 1

	applied, err := s.params.ApplyPending()
	if err != nil {
		return nil, err
	}
	for _, u := range applied {
		s.events.Emit(&event.Event{
			Type:  event.TypeParameterApplied,
			Epoch: newEpoch,
			Attrs: []event.Attr{{Key: "name", Value: u.Name}, {Key: "value", Value: u.Value}},
		})
	}
	p, err := s.params.Get()
	if err != nil {
		return nil, err
	}

	set, err := s.deriver.Get(finished)
	if err != nil {
		return nil, err
	}
	if set == nil {
		if err := s.tracker.Prune(finished); err != nil {
			return nil, err
		}
	} else {
		rewards, err := s.dist.Distribute(finished, set, p)
		if err != nil {
			return nil, errors.Wrapf(err, "distribute rewards of epoch %d", finished)
		}
		for _, r := range rewards {
			s.events.Emit(&event.Event{
				Type:      event.TypeRewarded,
				Validator: r.Validator,
				Epoch:     finished,
				Amount:    r.Total,
				Attrs: []event.Attr{
					{Key: "score", Value: r.Score.String()},
					{Key: "commission", Value: r.Commission.String()},
				},
			})
			metricRewarded().Add(metricAmount(r.Total))
		}
	}

	released, err := s.dir.Transition(newEpoch)
	if err != nil {
		return nil, err
	}
	for _, addr := range released {
		s.events.Emit(&event.Event{Type: event.TypeReleased, Validator: addr, Epoch: newEpoch})
	}

	recheck, err := s.slashing.DrainQueue()
	if err != nil {
		return nil, err
	}

	if h := horizon(p, newEpoch); h > 0 {
		addrs, err := s.dir.All()
		if err != nil {
			return nil, err
		}
		for _, addr := range addrs {
			if err := s.ledger.Compact(addr, h); err != nil {
				return nil, err
			}
		}
	}

	_, updates, err := s.publish(newEpoch, p, recheck...)
	if err != nil {
		return nil, err
	}
	metricEpochTransitions().Add(1)
	return updates, nil
}

func (s *Staker) publish(epoch uint64, p *params.Params, recheck ...thor.Address) (*validatorset.Set, []validatorset.Update, error) {
	set, updates, err := s.deriver.Publish(epoch, s.dir, s.ledger, p, recheck...)
	if err != nil {
		return nil, nil, err
	}
	s.events.Emit(&event.Event{
		Type:   event.TypeSetPublished,
		Epoch:  epoch,
		Amount: set.TotalStake(),
		Attrs: []event.Attr{
			{Key: "size", Value: strconv.Itoa(len(set.Members))},
			{Key: "power", Value: strconv.FormatUint(set.TotalPower(), 10)},
			{Key: "updates", Value: strconv.Itoa(len(updates))},
		},
	})
	metricSetSize().Set(int64(len(set.Members)))
	logger.Debug("set published", "epoch", epoch, "validators", len(set.Members))
	return set, updates, nil
}
