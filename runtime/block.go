// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vechain/thorpos/co"
	"github.com/vechain/thorpos/event"
	"github.com/vechain/thorpos/eventdb"
	"github.com/vechain/thorpos/staker/epoch"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/reward"
	"github.com/vechain/thorpos/staker/slashing"
	"github.com/vechain/thorpos/staker/validatorset"
	"github.com/vechain/thorpos/state"
	"github.com/vechain/thorpos/thor"
	"github.com/vechain/thorpos/tx"
)

// Result is the outcome of a delivered transaction.
type Result struct {
	Code   uint32 // 0 on success, otherwise the revert kind code
	Log    string
	TxID   thor.Bytes32
	Origin thor.Address
}

// OK reports whether the transaction applied.
func (r *Result) OK() bool {
	return r.Code == 0
}

func rejected(err error) *Result {
	return &Result{Code: reverts.KindOf(err).Code(), Log: err.Error()}
}

// blockContext is the state of the block between BeginBlock and Commit.
type blockContext struct {
	height  uint64
	epoch   uint64
	clock   epoch.Clock
	env     *env
	entries []*eventdb.Entry
	txCount int
	ended   bool
}

// flush moves the events recorded so far into the block's entries.
func (b *blockContext) flush(txIndex int) {
	b.entries = append(b.entries, toEntries(b.env.recorder.Reset(), txIndex)...)
}

// BeginBlock opens block height. Votes are the commit votes for the previous
// block; evidence is processed before any transaction of the block.
func (r *Runtime) BeginBlock(height uint64, votes []reward.Vote, evidence []*slashing.Evidence) error {
	if r.block != nil {
		return errors.Errorf("block %d still open", r.block.height)
	}
	if want := r.Height() + 1; height != want {
		return errors.Errorf("unexpected block height %d, want %d", height, want)
	}
	e := newEnv(state.New(r.states, r.cache), r.setCache)
	clock, err := e.staker.Clock()
	if err != nil {
		return err
	}
	b := &blockContext{
		height: height,
		epoch:  clock.EpochOf(height),
		clock:  clock,
		env:    e,
	}

	if len(votes) > 0 {
		if err := e.staker.RecordVotes(clock.EpochOf(height-1), votes); err != nil {
			return errors.Wrap(err, "record votes")
		}
	}
	for _, ev := range evidence {
		if err := r.processEvidence(b, ev); err != nil {
			return err
		}
	}
	b.flush(eventdb.BlockHook)
	r.block = b
	return nil
}

func (r *Runtime) processEvidence(b *blockContext, ev *slashing.Evidence) error {
	var (
		st   = b.env.state
		cp   = st.NewCheckpoint()
		mark = b.env.recorder.Mark()
	)
	rec, err := b.env.staker.ProcessEvidence(ev, b.epoch)
	if err == nil {
		metricEvidenceCount().AddWithLabel(1, map[string]string{"result": "applied"})
		logger.Debug("evidence processed", "validator", ev.Validator, "epoch", ev.Epoch, "rate", rec.Rate, "burned", rec.Burned)
		return nil
	}
	if !reverts.IsRevertErr(err) {
		return errors.Wrapf(err, "process evidence against %s", ev.Validator)
	}
	st.RevertTo(cp)
	b.env.recorder.Truncate(mark)
	b.env.recorder.Emit(&event.Event{
		Type:      event.TypeEvidenceRejected,
		Validator: ev.Validator,
		Epoch:     ev.Epoch,
		Attrs: []event.Attr{
			{Key: "infraction", Value: ev.Infraction.String()},
			{Key: "reason", Value: err.Error()},
		},
	})
	metricEvidenceCount().AddWithLabel(1, map[string]string{"result": reverts.KindOf(err).String()})
	logger.Warn("evidence rejected", "validator", ev.Validator, "epoch", ev.Epoch, "infraction", ev.Infraction, "err", err)
	return nil
}

// Prepare recovers the senders of raw transactions in parallel ahead of
// delivery. Malformed transactions are skipped; DeliverTx reports them.
func (r *Runtime) Prepare(ctx context.Context, raws [][]byte) error {
	return co.Parallel(ctx, len(raws), func(_ context.Context, i int) error {
		trx, err := tx.Decode(raws[i])
		if err != nil {
			return nil
		}
		_, _ = r.origin(trx)
		return nil
	})
}

// origin recovers the sender, memoized by transaction id.
func (r *Runtime) origin(trx *tx.Transaction) (thor.Address, error) {
	id := trx.ID()
	if addr, ok := r.verified.Get(id); ok {
		return addr, nil
	}
	addr, err := trx.Origin()
	if err != nil {
		return thor.Address{}, err
	}
	r.verified.Add(id, addr)
	return addr, nil
}

// DeliverTx executes a transaction. A rejected transaction leaves no trace
// besides its nonce; the error is only set when the node must halt.
func (r *Runtime) DeliverTx(raw []byte) (*Result, error) {
	b := r.block
	if b == nil || b.ended {
		return nil, errors.New("deliver tx outside of block")
	}
	txIndex := b.txCount
	b.txCount++

	res, kind, err := r.deliver(b, raw, txIndex)
	if err != nil {
		return nil, err
	}
	result := "ok"
	if !res.OK() {
		result = reverts.Kind(res.Code).String()
		logger.Debug("tx rejected", "height", b.height, "index", txIndex, "kind", kind, "reason", res.Log)
	}
	metricTxCount().AddWithLabel(1, map[string]string{"kind": kind.String(), "result": result})
	return res, nil
}

func (r *Runtime) deliver(b *blockContext, raw []byte, txIndex int) (*Result, tx.Kind, error) {
	trx, err := tx.Decode(raw)
	if err != nil {
		return rejected(reverts.Validation("%v", err)), 0, nil
	}
	kind := trx.Kind()
	if trx.ChainTag() != r.chainTag {
		return rejected(reverts.Validation("chain tag mismatch: got %d, want %d", trx.ChainTag(), r.chainTag)), kind, nil
	}
	origin, err := r.origin(trx)
	if err != nil {
		return rejected(reverts.Validation("invalid signature: %v", err)), kind, nil
	}
	payload, err := trx.Payload()
	if err != nil {
		return rejected(reverts.Validation("%v", err)), kind, nil
	}

	accts := b.env.accounts
	nonce, err := accts.Nonce(origin)
	if err != nil {
		return nil, kind, err
	}
	if trx.Nonce() != nonce {
		return rejected(reverts.Validation("bad nonce: got %d, want %d", trx.Nonce(), nonce)), kind, nil
	}
	if err := accts.IncNonce(origin); err != nil {
		return nil, kind, err
	}

	res := &Result{TxID: trx.ID(), Origin: origin}
	var (
		st   = b.env.state
		cp   = st.NewCheckpoint()
		mark = b.env.recorder.Mark()
	)
	if err := r.execute(b, origin, payload); err != nil {
		if !reverts.IsRevertErr(err) {
			return nil, kind, errors.Wrapf(err, "execute tx %s", res.TxID)
		}
		st.RevertTo(cp)
		b.env.recorder.Truncate(mark)
		res.Code = reverts.KindOf(err).Code()
		res.Log = err.Error()
	}
	b.flush(txIndex)
	return res, kind, nil
}

func (r *Runtime) execute(b *blockContext, origin thor.Address, payload tx.Payload) error {
	s := b.env.staker
	switch p := payload.(type) {
	case *tx.RegisterValidator:
		return s.RegisterValidator(origin, p.ConsensusKey, p.Commission, p.MaxCommissionChange, b.epoch)
	case *tx.Bond:
		return s.Bond(origin, p.Validator, p.Amount, b.epoch)
	case *tx.Unbond:
		return s.Unbond(origin, p.Validator, p.Amount, b.epoch)
	case *tx.Withdraw:
		_, err := s.Withdraw(origin, p.Validator, b.epoch)
		return err
	case *tx.ChangeCommission:
		return s.ChangeCommission(origin, p.Rate, b.epoch)
	case *tx.ChangeConsensusKey:
		return s.ChangeConsensusKey(origin, p.Key, b.epoch)
	case *tx.DeactivateValidator:
		return s.Deactivate(origin, b.epoch)
	case *tx.ReactivateValidator:
		return s.Reactivate(origin, b.epoch)
	case *tx.SetParameter:
		return s.SetParameter(origin, p.Name, p.Value, b.epoch)
	case *tx.Redelegate:
		return s.Redelegate(origin, p.From, p.To, p.Amount, b.epoch)
	}
	return reverts.Validation("unsupported payload %T", payload)
}

// EndBlock closes the block. On the last height of an epoch it runs the
// transition into the next epoch and returns the voting power updates.
func (r *Runtime) EndBlock(height uint64) ([]validatorset.Update, error) {
	b := r.block
	if b == nil || b.ended {
		return nil, errors.New("end block outside of block")
	}
	if height != b.height {
		return nil, errors.Errorf("end block %d, open block is %d", height, b.height)
	}
	b.ended = true
	if !b.clock.IsLastHeight(height) {
		return nil, nil
	}

	newEpoch := b.epoch + 1
	updates, err := b.env.staker.Housekeep(newEpoch)
	if err != nil {
		return nil, errors.Wrapf(err, "transition into epoch %d", newEpoch)
	}
	b.flush(eventdb.BlockHook)
	logger.Info("epoch transition", "height", height, "epoch", newEpoch, "updates", len(updates))
	return updates, nil
}
