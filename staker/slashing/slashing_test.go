// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package slashing

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thorpos/accounts"
	"github.com/vechain/thorpos/lvldb"
	"github.com/vechain/thorpos/staker/bond"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/staker/validation"
	"github.com/vechain/thorpos/state"
	"github.com/vechain/thorpos/thor"
)

var pool = thor.BytesToAddress([]byte("pool"))

type fixture struct {
	accounts *accounts.Accounts
	ledger   *bond.Ledger
	dir      *validation.Service
	engine   *Engine
	params   *params.Params
}

func newFixture() *fixture {
	sctx := storage.NewContext(state.New(lvldb.NewMem(), nil), "")
	f := &fixture{
		accounts: accounts.New(sctx.Sub("accounts")),
		ledger:   bond.New(sctx.Sub("bond")),
		dir:      validation.New(sctx.Sub("validation")),
		params:   params.Default(),
	}
	f.params.UnbondingLength = 3
	f.engine = New(sctx.Sub("slashing"), f.ledger, f.dir, f.accounts, pool)
	return f
}

func (f *fixture) validator(t *testing.T, name string, stake uint64, start uint64) thor.Address {
	addr := thor.BytesToAddress([]byte(name))
	require.NoError(t, f.dir.Register(addr, []byte(name), stakes.ZeroRate(), stakes.ZeroRate(), 0, f.params))
	require.NoError(t, f.ledger.Bond(addr, addr, uint256.NewInt(stake), start))
	require.NoError(t, f.accounts.Credit(pool, uint256.NewInt(stake)))
	return addr
}

func TestProcess(t *testing.T) {
	f := newFixture()
	v := f.validator(t, "v", 60, 11)

	rec, err := f.engine.Process(&Evidence{v, 11, params.DuplicateVote, 1300}, 13, f.params)
	require.NoError(t, err)
	assert.True(t, rec.Rate.Equal(stakes.MustParseRate("0.05")))
	assert.Equal(t, uint64(1), rec.Correlated)
	assert.Equal(t, uint64(3), rec.Burned.Uint64())

	bonded, err := f.ledger.BondedAmount(v, v, 11)
	require.NoError(t, err)
	assert.Equal(t, uint64(57), bonded.Uint64())

	supply, err := f.accounts.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, uint64(57), supply.Uint64(), "burned stake leaves the supply")

	val, err := f.dir.Get(v)
	require.NoError(t, err)
	assert.True(t, val.IsJailed())
	assert.Equal(t, uint64(13+f.params.JailDuration), val.JailedUntil())

	queued, err := f.engine.Queued()
	require.NoError(t, err)
	assert.Equal(t, []thor.Address{v}, queued)
	drained, err := f.engine.DrainQueue()
	require.NoError(t, err)
	assert.Equal(t, queued, drained)
	queued, err = f.engine.Queued()
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestProcessRejects(t *testing.T) {
	f := newFixture()
	v := f.validator(t, "v", 60, 0)

	tests := []struct {
		name string
		ev   Evidence
		want error
	}{
		{"unknown validator", Evidence{thor.BytesToAddress([]byte("x")), 5, params.DuplicateVote, 0}, reverts.ErrInvalidValidator},
		{"future epoch", Evidence{v, 11, params.DuplicateVote, 0}, reverts.ErrValidation},
		{"unknown infraction", Evidence{v, 9, params.Infraction(42), 0}, reverts.ErrValidation},
		{"too old", Evidence{v, 6, params.DuplicateVote, 0}, reverts.ErrEvidenceTooOld},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Process(&tt.ev, 10, f.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := f.engine.Process(&Evidence{v, 7, params.DuplicateVote, 0}, 10, f.params)
	assert.NoError(t, err, "oldest retained epoch")
}

func TestProcessBelowFloor(t *testing.T) {
	f := newFixture()
	v := f.validator(t, "v", 60, 0)
	require.NoError(t, f.ledger.Compact(v, 5))

	// a longer unbonding period does not reopen compacted epochs
	f.params.UnbondingLength = 10
	_, err := f.engine.Process(&Evidence{v, 4, params.DuplicateVote, 0}, 8, f.params)
	assert.ErrorIs(t, err, reverts.ErrEvidenceTooOld)

	rec, err := f.engine.Process(&Evidence{v, 5, params.DuplicateVote, 0}, 8, f.params)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rec.Burned.Uint64())
}

func TestDuplicateEvidence(t *testing.T) {
	f := newFixture()
	v := f.validator(t, "v", 1000, 0)

	first, err := f.engine.Process(&Evidence{v, 2, params.DuplicateVote, 200}, 3, f.params)
	require.NoError(t, err)
	second, err := f.engine.Process(&Evidence{v, 2, params.DuplicateVote, 210}, 3, f.params)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.True(t, second.Burned.IsZero())

	rs, err := f.engine.Records(2)
	require.NoError(t, err)
	assert.Len(t, rs, 2, "duplicates are recorded")

	n, err := f.engine.Correlated(2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n, "duplicates do not correlate")
}

func TestCubicMonotonicity(t *testing.T) {
	base := stakes.MustParseRate("0.01")
	prev := stakes.ZeroRate()
	for n := uint64(0); n <= 10; n++ {
		r := CubicRate(base, n, stakes.OneRate())
		assert.False(t, r.LT(prev), "n=%d", n)
		prev = r
	}
	assert.True(t, CubicRate(base, 1, stakes.OneRate()).LT(CubicRate(base, 3, stakes.OneRate())))
	assert.True(t, CubicRate(base, 3, stakes.OneRate()).Equal(stakes.MustParseRate("0.27")))
	assert.True(t, CubicRate(stakes.MustParseRate("0.5"), 2, stakes.OneRate()).Equal(stakes.OneRate()), "capped at 1")
	assert.True(t, CubicRate(base, 2, stakes.MustParseRate("2")).Equal(stakes.MustParseRate("0.04")))
}

func TestCorrelatedEvidence(t *testing.T) {
	f := newFixture()
	a := f.validator(t, "a", 1000, 0)
	b := f.validator(t, "b", 1000, 0)
	c := f.validator(t, "c", 1000, 0)
	d := f.validator(t, "d", 1000, 0)

	ra, err := f.engine.Process(&Evidence{a, 5, params.DuplicateVote, 0}, 6, f.params)
	require.NoError(t, err)
	rb, err := f.engine.Process(&Evidence{b, 6, params.DuplicateVote, 0}, 6, f.params)
	require.NoError(t, err)
	rc, err := f.engine.Process(&Evidence{c, 4, params.DuplicateVote, 0}, 6, f.params)
	require.NoError(t, err)

	assert.Equal(t, uint64(50), ra.Burned.Uint64())
	assert.Equal(t, uint64(2), rb.Correlated)
	assert.Equal(t, uint64(400), rb.Burned.Uint64(), "0.05 * 8")
	assert.Equal(t, uint64(2), rc.Correlated, "epoch 6 is outside the window of 4")
	assert.Equal(t, uint64(400), rc.Burned.Uint64())

	rd, err := f.engine.Process(&Evidence{d, 5, params.DuplicateVote, 0}, 6, f.params)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), rd.Correlated)
	assert.Equal(t, uint64(1000), rd.Burned.Uint64(), "0.05 * 64 caps at 1")
}
