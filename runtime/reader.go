// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/holiman/uint256"

	"github.com/vechain/thorpos/kv"
	"github.com/vechain/thorpos/staker/bond"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/slashing"
	"github.com/vechain/thorpos/staker/validation"
	"github.com/vechain/thorpos/staker/validatorset"
	"github.com/vechain/thorpos/state"
	"github.com/vechain/thorpos/thor"
)

// Reader serves queries against a consistent snapshot of one commit.
// It must be released after use.
type Reader struct {
	snap   kv.Snapshot
	env    *env
	height uint64
	root   thor.Bytes32
}

// Reader opens a reader over the last commit.
func (r *Runtime) Reader() *Reader {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := r.store.Snapshot()
	return &Reader{
		snap:   snap,
		env:    newEnv(state.New(stateBucket.NewGetter(snap), nil), nil),
		height: r.best.Height,
		root:   r.best.Root,
	}
}

// Release releases the underlying snapshot.
func (rd *Reader) Release() {
	rd.snap.Release()
}

// Height returns the height of the commit read.
func (rd *Reader) Height() uint64 {
	return rd.height
}

// Root returns the state root of the commit read.
func (rd *Reader) Root() thor.Bytes32 {
	return rd.root
}

// Epoch returns the epoch of the commit read.
func (rd *Reader) Epoch() (uint64, error) {
	clock, err := rd.env.staker.Clock()
	if err != nil {
		return 0, err
	}
	return clock.EpochOf(rd.height), nil
}

func (rd *Reader) Params() (*params.Params, error) {
	return rd.env.staker.Params()
}

func (rd *Reader) PendingParams() ([]params.Update, error) {
	return rd.env.staker.PendingParams()
}

func (rd *Reader) Balance(addr thor.Address) (*uint256.Int, error) {
	return rd.env.accounts.Balance(addr)
}

func (rd *Reader) Nonce(addr thor.Address) (uint64, error) {
	return rd.env.accounts.Nonce(addr)
}

func (rd *Reader) TotalSupply() (*uint256.Int, error) {
	return rd.env.accounts.TotalSupply()
}

func (rd *Reader) Validator(addr thor.Address) (*validation.Validator, error) {
	return rd.env.staker.Validator(addr)
}

func (rd *Reader) Validators() ([]thor.Address, error) {
	return rd.env.staker.Validators()
}

func (rd *Reader) BondedAmount(delegator, validator thor.Address, epoch uint64) (*uint256.Int, error) {
	return rd.env.staker.BondedAmount(delegator, validator, epoch)
}

func (rd *Reader) ValidatorStake(validator thor.Address, epoch uint64) (*uint256.Int, error) {
	return rd.env.staker.ValidatorStake(validator, epoch)
}

func (rd *Reader) Position(delegator, validator thor.Address) (*bond.Position, error) {
	return rd.env.staker.Position(delegator, validator)
}

func (rd *Reader) Delegations(delegator thor.Address) ([]thor.Address, error) {
	return rd.env.staker.Delegations(delegator)
}

// ValidatorSet returns the set published for epoch, nil if none.
func (rd *Reader) ValidatorSet(epoch uint64) (*validatorset.Set, error) {
	return rd.env.staker.ValidatorSet(epoch)
}

func (rd *Reader) LatestValidatorSet() (*validatorset.Set, error) {
	return rd.env.staker.LatestValidatorSet()
}

func (rd *Reader) SlashRecords(epoch uint64) ([]*slashing.Record, error) {
	return rd.env.staker.SlashRecords(epoch)
}

// TotalLocked returns the stake held by the pool.
func (rd *Reader) TotalLocked() (*uint256.Int, error) {
	return rd.env.staker.TotalLocked()
}
