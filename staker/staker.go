// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package staker is the epoched staking engine: bonds and unbonds with a
// pipeline delay, per-epoch validator sets, compounded rewards and cubic
// slashing. It is driven by the block runtime and keeps every value it owns
// in the pool account of the token ledger.
package staker

import (
	"github.com/holiman/uint256"

	"github.com/vechain/thorpos/cache"
	"github.com/vechain/thorpos/event"
	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/staker/bond"
	"github.com/vechain/thorpos/staker/epoch"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/reward"
	"github.com/vechain/thorpos/staker/slashing"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/staker/validation"
	"github.com/vechain/thorpos/staker/validatorset"
	"github.com/vechain/thorpos/thor"
)

var logger = log.WithContext("pkg", "staker")

// PoolAddress holds every bonded, unbonding and rewarded token.
var PoolAddress = thor.BytesToAddress([]byte("staker"))

// Bank is the token ledger. Credit mints, Debit burns; moving funds is a debit followed by a credit.
type Bank interface {
	Balance(addr thor.Address) (*uint256.Int, error)
	Credit(addr thor.Address, amount *uint256.Int) error
	Debit(addr thor.Address, amount *uint256.Int) error
}

// Staker implements the staking operations over one storage context.
type Staker struct {
	params   *params.Service
	dir      *validation.Service
	ledger   *bond.Ledger
	deriver  *validatorset.Deriver
	tracker  *reward.Tracker
	dist     *reward.Distributor
	slashing *slashing.Engine
	bank     Bank
	events   *event.Recorder
}

// New creates a staker. setCache and events are optional.
func New(sctx *storage.Context, bank Bank, setCache *cache.LRU[uint64, *validatorset.Set], events *event.Recorder) *Staker {
	if events == nil {
		events = &event.Recorder{}
	}
	var (
		dir     = validation.New(sctx.Sub("validation"))
		ledger  = bond.New(sctx.Sub("bond"))
		tracker = reward.NewTracker(sctx.Sub("reward"))
	)
	return &Staker{
		params:   params.New(sctx.Sub("params")),
		dir:      dir,
		ledger:   ledger,
		deriver:  validatorset.New(sctx.Sub("validatorset"), setCache),
		tracker:  tracker,
		dist:     reward.NewDistributor(ledger, dir, tracker, bank, PoolAddress),
		slashing: slashing.New(sctx.Sub("slashing"), ledger, dir, bank, PoolAddress),
		bank:     bank,
		events:   events,
	}
}

// Params returns the active parameters.
func (s *Staker) Params() (*params.Params, error) {
	return s.params.Get()
}

// PendingParams returns the governance updates queued for the next boundary.
func (s *Staker) PendingParams() ([]params.Update, error) {
	return s.params.Pending()
}

// Clock returns the epoch clock of the active parameters.
func (s *Staker) Clock() (epoch.Clock, error) {
	p, err := s.params.Get()
	if err != nil {
		return epoch.Clock{}, err
	}
	return epoch.NewClock(p), nil
}

// Events returns the recorder receiving ledger events.
func (s *Staker) Events() *event.Recorder {
	return s.events
}

// Validator returns the validator at addr, or an InvalidValidator revert.
func (s *Staker) Validator(addr thor.Address) (*validation.Validator, error) {
	return s.dir.GetExisting(addr)
}

// Validators returns every registered validator address, ascending.
func (s *Staker) Validators() ([]thor.Address, error) {
	return s.dir.All()
}

// BondedAmount returns the stake of delegator counting for validator at epoch.
func (s *Staker) BondedAmount(delegator, validator thor.Address, epoch uint64) (*uint256.Int, error) {
	return s.ledger.BondedAmount(delegator, validator, epoch)
}

// ValidatorStake returns the total stake of validator at epoch.
func (s *Staker) ValidatorStake(validator thor.Address, epoch uint64) (*uint256.Int, error) {
	return s.ledger.ValidatorStake(validator, epoch)
}

// Position returns the bonds and unbonds of delegator on validator.
func (s *Staker) Position(delegator, validator thor.Address) (*bond.Position, error) {
	return s.ledger.Position(delegator, validator)
}

// Delegators returns the accounts with a position on validator.
func (s *Staker) Delegators(validator thor.Address) ([]thor.Address, error) {
	return s.ledger.Delegators(validator)
}

// Delegations returns the validators delegator has a position on.
func (s *Staker) Delegations(delegator thor.Address) ([]thor.Address, error) {
	return s.ledger.Delegations(delegator)
}

// ValidatorSet returns the set published for epoch, nil if none.
func (s *Staker) ValidatorSet(epoch uint64) (*validatorset.Set, error) {
	return s.deriver.Get(epoch)
}

// LatestValidatorSet returns the most recently published set.
func (s *Staker) LatestValidatorSet() (*validatorset.Set, error) {
	return s.deriver.Latest()
}

// SlashRecords returns the slash records of misbehaviour at epoch.
func (s *Staker) SlashRecords(epoch uint64) ([]*slashing.Record, error) {
	return s.slashing.Records(epoch)
}

// Participation returns the recorded participation of validator in epoch.
func (s *Staker) Participation(epoch uint64, validator thor.Address) (*reward.Participation, error) {
	return s.tracker.Get(epoch, validator)
}

// TotalLocked returns the sum of every position, which equals the pool balance.
func (s *Staker) TotalLocked() (*uint256.Int, error) {
	addrs, err := s.dir.All()
	if err != nil {
		return nil, err
	}
	total := new(uint256.Int)
	for _, v := range addrs {
		ds, err := s.ledger.Delegators(v)
		if err != nil {
			return nil, err
		}
		for _, d := range ds {
			pos, err := s.ledger.Position(d, v)
			if err != nil {
				return nil, err
			}
			total.Add(total, pos.Locked())
		}
	}
	return total, nil
}
