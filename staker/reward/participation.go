// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/thor"
)

// Vote reports whether a validator signed a committed block.
type Vote struct {
	Validator thor.Address
	Signed    bool
}

// Participation counts the blocks a validator was expected to sign in an epoch.
type Participation struct {
	Expected uint64
	Signed   uint64
}

// Score returns Signed/Expected, 1 when nothing was expected.
func (p *Participation) Score() stakes.Rate {
	if p == nil || p.Expected == 0 {
		return stakes.OneRate()
	}
	return stakes.RatioRate(p.Signed, p.Expected)
}

// Tracker counts votes per epoch until the epoch is pruned. Epochs below
// the open floor are closed: their votes count for the oldest open epoch.
type Tracker struct {
	records *storage.Mapping[storage.Composite, *Participation]
	voters  *storage.Mapping[storage.Uint64, []thor.Address]
	open    *storage.Raw[uint64]
}

func NewTracker(sctx *storage.Context) *Tracker {
	return &Tracker{
		records: storage.NewMapping[storage.Composite, *Participation](sctx, "participation"),
		voters:  storage.NewMapping[storage.Uint64, []thor.Address](sctx, "voters"),
		open:    storage.NewRaw[uint64](sctx, "open"),
	}
}

// Open returns the oldest epoch still accepting votes.
func (t *Tracker) Open() (uint64, error) {
	open, err := t.open.Get()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get open epoch")
	}
	return open, nil
}

// Record adds the votes of one block attributed to epoch. The votes on the
// closing block of an epoch arrive after it was paid and pruned; they are
// credited to the oldest open epoch instead.
func (t *Tracker) Record(epoch uint64, votes []Vote) error {
	if len(votes) == 0 {
		return nil
	}
	open, err := t.Open()
	if err != nil {
		return err
	}
	if epoch < open {
		epoch = open
	}
	voters, err := t.voters.Get(storage.Uint64(epoch))
	if err != nil {
		return errors.Wrap(err, "failed to get voters")
	}
	for _, vote := range votes {
		p, err := t.Get(epoch, vote.Validator)
		if err != nil {
			return err
		}
		p.Expected++
		if vote.Signed {
			p.Signed++
		}
		if err := t.records.Set(storage.Join(storage.Uint64(epoch), vote.Validator), p); err != nil {
			return errors.Wrap(err, "failed to set participation")
		}
		if i, found := slices.BinarySearchFunc(voters, vote.Validator, thor.Address.Compare); !found {
			voters = slices.Insert(voters, i, vote.Validator)
		}
	}
	return t.voters.Set(storage.Uint64(epoch), voters)
}

// Get returns the participation of validator in epoch.
func (t *Tracker) Get(epoch uint64, validator thor.Address) (*Participation, error) {
	p, err := t.records.Get(storage.Join(storage.Uint64(epoch), validator))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get participation")
	}
	return p, nil
}

// Prune drops everything recorded up to epoch and closes those epochs.
func (t *Tracker) Prune(epoch uint64) error {
	open, err := t.Open()
	if err != nil {
		return err
	}
	for e := open; e <= epoch; e++ {
		voters, err := t.voters.Get(storage.Uint64(e))
		if err != nil {
			return errors.Wrap(err, "failed to get voters")
		}
		for _, v := range voters {
			t.records.Delete(storage.Join(storage.Uint64(e), v))
		}
		t.voters.Delete(storage.Uint64(e))
	}
	if epoch < open {
		return nil
	}
	return t.open.Set(epoch + 1)
}
