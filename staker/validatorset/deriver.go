// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package validatorset derives and publishes the per-epoch validator set.
package validatorset

import (
	"slices"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/cache"
	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/staker/validation"
	"github.com/vechain/thorpos/thor"
)

var logger = log.WithContext("pkg", "validatorset")

// Directory is the validator registry the deriver selects from.
type Directory interface {
	All() ([]thor.Address, error)
	Get(addr thor.Address) (*validation.Validator, error)
	SetActive(addr thor.Address, active bool) (bool, error)
}

// Stakes answers total validator stake per epoch.
type Stakes interface {
	ValidatorStake(validator thor.Address, epoch uint64) (*uint256.Int, error)
}

type Deriver struct {
	sets   *storage.Mapping[storage.Uint64, *Set]
	latest *storage.Raw[uint64]
	cache  *cache.LRU[uint64, *Set]
}

// New creates a deriver. Published sets are immutable, so c may be shared
// across blocks; it is optional.
func New(sctx *storage.Context, c *cache.LRU[uint64, *Set]) *Deriver {
	return &Deriver{
		sets:   storage.NewMapping[storage.Uint64, *Set](sctx, "sets"),
		latest: storage.NewRaw[uint64](sctx, "latest"),
		cache:  c,
	}
}

// Get returns the set published for epoch, nil if none. The result must not be modified.
func (d *Deriver) Get(epoch uint64) (*Set, error) {
	load := func(epoch uint64) (*Set, error) {
		exists, err := d.sets.Exists(storage.Uint64(epoch))
		if err != nil || !exists {
			return nil, err
		}
		set, err := d.sets.Get(storage.Uint64(epoch))
		if err != nil {
			return nil, errors.Wrap(err, "failed to get validator set")
		}
		return set, nil
	}
	if d.cache == nil {
		return load(epoch)
	}
	if set, ok := d.cache.Get(epoch); ok {
		return set, nil
	}
	set, err := load(epoch)
	if err != nil || set == nil {
		return set, err
	}
	d.cache.Add(epoch, set)
	return set, nil
}

// Latest returns the most recently published set, nil before genesis.
func (d *Deriver) Latest() (*Set, error) {
	exists, err := d.sets.Exists(storage.Uint64(0))
	if err != nil || !exists {
		return nil, err
	}
	epoch, err := d.latest.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest epoch")
	}
	return d.Get(epoch)
}

// Derive ranks the candidates by their stake at epoch and returns the set
// for that epoch without publishing it.
func (d *Deriver) Derive(epoch uint64, dir Directory, st Stakes, p *params.Params) (*Set, error) {
	addrs, err := dir.All()
	if err != nil {
		return nil, err
	}
	set := &Set{Epoch: epoch}
	for _, addr := range addrs {
		v, err := dir.Get(addr)
		if err != nil {
			return nil, err
		}
		if !v.IsCandidate() {
			continue
		}
		stake, err := st.ValidatorStake(addr, epoch)
		if err != nil {
			return nil, err
		}
		if stake.IsZero() {
			continue
		}
		set.Members = append(set.Members, &Member{
			Address:      addr,
			ConsensusKey: v.ConsensusKey(),
			Stake:        stake,
		})
	}

	slices.SortFunc(set.Members, func(a, b *Member) int {
		if c := b.Stake.Cmp(a.Stake); c != 0 {
			return c
		}
		return a.Address.Compare(b.Address)
	})
	if uint64(len(set.Members)) > p.MaxValidators {
		set.Members = set.Members[:p.MaxValidators]
	}

	for _, m := range set.Members {
		power, overflow := new(uint256.Int).Div(m.Stake, p.PowerReduction).Uint64WithOverflow()
		if overflow {
			return nil, errors.Errorf("voting power of %s overflows", m.Address)
		}
		m.Power = power
	}
	set.Members = slices.DeleteFunc(set.Members, func(m *Member) bool { return m.Power == 0 })
	return set, nil
}

// Publish derives the set for epoch, stores it, moves every validator to its
// new status and returns the set with its diff against the previous one.
// Validators in recheck are reported to the consensus engine even if their
// power did not change. A published set is never rewritten.
func (d *Deriver) Publish(epoch uint64, dir Directory, st Stakes, p *params.Params, recheck ...thor.Address) (*Set, []Update, error) {
	exists, err := d.sets.Exists(storage.Uint64(epoch))
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, errors.Errorf("validator set of epoch %d already published", epoch)
	}
	prev, err := d.Latest()
	if err != nil {
		return nil, nil, err
	}
	set, err := d.Derive(epoch, dir, st, p)
	if err != nil {
		return nil, nil, err
	}

	addrs, err := dir.All()
	if err != nil {
		return nil, nil, err
	}
	for _, addr := range addrs {
		if _, err := dir.SetActive(addr, set.Contains(addr)); err != nil {
			return nil, nil, err
		}
	}

	if err := d.sets.Set(storage.Uint64(epoch), set); err != nil {
		return nil, nil, errors.Wrap(err, "failed to set validator set")
	}
	if err := d.latest.Set(epoch); err != nil {
		return nil, nil, errors.Wrap(err, "failed to set latest epoch")
	}

	updates := Diff(prev, set, recheck...)
	logger.Info("validator set published", "epoch", epoch, "size", len(set.Members), "power", set.TotalPower(), "updates", len(updates))
	return set, updates, nil
}
