// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reward tracks participation and compounds epoch rewards into bonds.
package reward

import (
	"github.com/holiman/uint256"

	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/staker/bond"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/validation"
	"github.com/vechain/thorpos/staker/validatorset"
	"github.com/vechain/thorpos/thor"
)

var logger = log.WithContext("pkg", "reward")

// Minter creates new tokens on an account.
type Minter interface {
	Credit(addr thor.Address, amount *uint256.Int) error
}

// Reward is what one validator and its delegators earned for an epoch.
type Reward struct {
	Validator  thor.Address
	Score      stakes.Rate
	Total      *uint256.Int
	Commission *uint256.Int // including rounding dust
}

type Distributor struct {
	ledger  *bond.Ledger
	dir     *validation.Service
	tracker *Tracker
	minter  Minter
	pool    thor.Address
}

func NewDistributor(ledger *bond.Ledger, dir *validation.Service, tracker *Tracker, minter Minter, pool thor.Address) *Distributor {
	return &Distributor{
		ledger:  ledger,
		dir:     dir,
		tracker: tracker,
		minter:  minter,
		pool:    pool,
	}
}

// Distribute pays the issuance of epoch e to the members of its published set
// that are not jailed, compounding every share as a bond effective at e+1.
// Participation recorded up to e is pruned afterwards and e is closed.
func (d *Distributor) Distribute(e uint64, set *validatorset.Set, p *params.Params) ([]*Reward, error) {
	type eligible struct {
		member *validatorset.Member
		v      *validation.Validator
		stake  *uint256.Int
	}
	var (
		members []eligible
		total   = new(uint256.Int)
	)
	for _, m := range set.Members {
		v, err := d.dir.GetExisting(m.Address)
		if err != nil {
			return nil, err
		}
		if v.IsJailed() {
			continue
		}
		stake, err := d.ledger.ValidatorStake(m.Address, e)
		if err != nil {
			return nil, err
		}
		if stake.IsZero() {
			continue
		}
		members = append(members, eligible{m, v, stake})
		total.Add(total, stake)
	}

	var rewards []*Reward
	if !total.IsZero() {
		for _, m := range members {
			r, err := d.pay(e, m.member.Address, m.v, m.stake, total, p)
			if err != nil {
				return nil, err
			}
			if r != nil {
				rewards = append(rewards, r)
			}
		}
	}
	if err := d.tracker.Prune(e); err != nil {
		return nil, err
	}
	logger.Debug("rewards distributed", "epoch", e, "validators", len(rewards))
	return rewards, nil
}

func (d *Distributor) pay(e uint64, addr thor.Address, v *validation.Validator, stake, total *uint256.Int, p *params.Params) (*Reward, error) {
	part, err := d.tracker.Get(e, addr)
	if err != nil {
		return nil, err
	}
	score := part.Score()
	if score.LT(p.MinParticipation) {
		logger.Debug("reward withheld", "validator", addr, "epoch", e, "score", score)
		return nil, nil
	}

	reward, err := stakes.MulDiv(p.EpochIssuance, stake, total)
	if err != nil {
		return nil, err
	}
	if reward, err = score.MulAmount(reward); err != nil {
		return nil, err
	}
	if reward.IsZero() {
		return nil, nil
	}
	commission, err := v.CommissionAt(e).MulAmount(reward)
	if err != nil {
		return nil, err
	}
	portion := new(uint256.Int).Sub(reward, commission)

	ds, err := d.ledger.Delegators(addr)
	if err != nil {
		return nil, err
	}
	paid := new(uint256.Int)
	for _, delegator := range ds {
		bonded, err := d.ledger.BondedAmount(delegator, addr, e)
		if err != nil {
			return nil, err
		}
		share, err := stakes.MulDiv(portion, bonded, stake)
		if err != nil {
			return nil, err
		}
		if share.IsZero() {
			continue
		}
		if err := d.ledger.Bond(delegator, addr, share, e+1); err != nil {
			return nil, err
		}
		paid.Add(paid, share)
	}

	// commission plus rounding dust compounds into the self bond
	self := new(uint256.Int).Add(commission, new(uint256.Int).Sub(portion, paid))
	if !self.IsZero() {
		if err := d.ledger.Bond(addr, addr, self, e+1); err != nil {
			return nil, err
		}
	}
	if err := d.minter.Credit(d.pool, reward); err != nil {
		return nil, err
	}
	return &Reward{Validator: addr, Score: score, Total: reward, Commission: self}, nil
}
