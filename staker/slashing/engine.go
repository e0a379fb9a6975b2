// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package slashing processes misbehaviour evidence. The slash rate grows with
// the cube of correlated offences in a window around the misbehaving epoch and
// applies retroactively to every bond and unbond that backed the validator then.
package slashing

import (
	"slices"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/staker/bond"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/staker/validation"
	"github.com/vechain/thorpos/thor"
)

var logger = log.WithContext("pkg", "slashing")

// Burner destroys tokens held by an account.
type Burner interface {
	Debit(addr thor.Address, amount *uint256.Int) error
}

type Engine struct {
	records *storage.Mapping[storage.Uint64, []*Record]
	queue   *storage.Raw[[]thor.Address]

	ledger *bond.Ledger
	dir    *validation.Service
	burner Burner
	pool   thor.Address
}

func New(sctx *storage.Context, ledger *bond.Ledger, dir *validation.Service, burner Burner, pool thor.Address) *Engine {
	return &Engine{
		records: storage.NewMapping[storage.Uint64, []*Record](sctx, "records"),
		queue:   storage.NewRaw[[]thor.Address](sctx, "queue"),
		ledger:  ledger,
		dir:     dir,
		burner:  burner,
		pool:    pool,
	}
}

// Records returns the records of misbehaviour at epoch, in processing order.
func (e *Engine) Records(epoch uint64) ([]*Record, error) {
	rs, err := e.records.Get(storage.Uint64(epoch))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get slash records")
	}
	return rs, nil
}

// Correlated counts the non-duplicate records of any validator whose
// misbehaving epoch lies within window epochs of m.
func (e *Engine) Correlated(m, window uint64) (uint64, error) {
	from := m - min(m, window)
	var n uint64
	for epoch := from; epoch <= m+window; epoch++ {
		rs, err := e.Records(epoch)
		if err != nil {
			return 0, err
		}
		for _, r := range rs {
			if !r.Duplicate {
				n++
			}
		}
	}
	return n, nil
}

// Process validates ev and applies it at the current epoch.
func (e *Engine) Process(ev *Evidence, current uint64, p *params.Params) (*Record, error) {
	if _, err := e.dir.GetExisting(ev.Validator); err != nil {
		return nil, err
	}
	base, ok := p.SlashRate(ev.Infraction)
	if !ok {
		return nil, reverts.Validation("unknown infraction %d", ev.Infraction)
	}
	if ev.Epoch > current {
		return nil, reverts.Validation("evidence epoch %d is in the future of %d", ev.Epoch, current)
	}
	if ev.Epoch+p.UnbondingLength < current {
		return nil, reverts.EvidenceTooOld("evidence epoch %d older than retained history at %d", ev.Epoch, current)
	}
	// a longer unbonding period does not bring compacted history back
	floor, err := e.ledger.Floor()
	if err != nil {
		return nil, err
	}
	if ev.Epoch < floor {
		return nil, reverts.EvidenceTooOld("evidence epoch %d below compacted history at %d", ev.Epoch, floor)
	}

	rs, err := e.Records(ev.Epoch)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		Validator:  ev.Validator,
		Epoch:      ev.Epoch,
		Infraction: ev.Infraction,
		Height:     ev.Height,
		Processed:  current,
		Rate:       stakes.ZeroRate(),
		Burned:     new(uint256.Int),
	}
	if slices.ContainsFunc(rs, func(r *Record) bool { return r.sameOffence(ev) }) {
		rec.Duplicate = true
		logger.Debug("duplicate evidence", "validator", ev.Validator, "epoch", ev.Epoch, "infraction", ev.Infraction)
		return rec, e.append(rec)
	}

	n, err := e.Correlated(ev.Epoch, p.CubicSlashWindow)
	if err != nil {
		return nil, err
	}
	rec.Correlated = n + 1
	rec.Rate = CubicRate(base, rec.Correlated, p.SlashScaling)

	if rec.Burned, err = e.ledger.Slash(ev.Validator, ev.Epoch, rec.Rate); err != nil {
		return nil, err
	}
	if err := e.burner.Debit(e.pool, rec.Burned); err != nil {
		return nil, errors.Wrap(err, "burn slashed stake")
	}
	if err := e.dir.Jail(ev.Validator, current+p.JailDuration); err != nil {
		return nil, err
	}
	if err := e.enqueue(ev.Validator); err != nil {
		return nil, err
	}
	logger.Debug("evidence processed",
		"validator", ev.Validator,
		"epoch", ev.Epoch,
		"infraction", ev.Infraction,
		"correlated", rec.Correlated,
		"rate", rec.Rate,
		"burned", rec.Burned,
	)
	return rec, e.append(rec)
}

// Queued returns the validators jailed since the last boundary.
func (e *Engine) Queued() ([]thor.Address, error) {
	q, err := e.queue.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get re-evaluation queue")
	}
	return q, nil
}

// DrainQueue returns and clears the re-evaluation queue.
func (e *Engine) DrainQueue() ([]thor.Address, error) {
	q, err := e.Queued()
	if err != nil {
		return nil, err
	}
	return q, e.queue.Set(nil)
}

func (e *Engine) enqueue(addr thor.Address) error {
	q, err := e.Queued()
	if err != nil {
		return err
	}
	i, found := slices.BinarySearchFunc(q, addr, thor.Address.Compare)
	if found {
		return nil
	}
	return e.queue.Set(slices.Insert(q, i, addr))
}

func (e *Engine) append(rec *Record) error {
	rs, err := e.Records(rec.Epoch)
	if err != nil {
		return err
	}
	if err := e.records.Set(storage.Uint64(rec.Epoch), append(rs, rec)); err != nil {
		return errors.Wrap(err, "failed to set slash records")
	}
	return nil
}
