// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thorpos/accounts"
	"github.com/vechain/thorpos/lvldb"
	"github.com/vechain/thorpos/staker/bond"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/staker/validation"
	"github.com/vechain/thorpos/staker/validatorset"
	"github.com/vechain/thorpos/state"
	"github.com/vechain/thorpos/thor"
)

var pool = thor.BytesToAddress([]byte("pool"))

type fixture struct {
	accounts *accounts.Accounts
	ledger   *bond.Ledger
	dir      *validation.Service
	tracker  *Tracker
	dist     *Distributor
	params   *params.Params
}

func newFixture() *fixture {
	sctx := storage.NewContext(state.New(lvldb.NewMem(), nil), "")
	f := &fixture{
		accounts: accounts.New(sctx.Sub("accounts")),
		ledger:   bond.New(sctx.Sub("bond")),
		dir:      validation.New(sctx.Sub("validation")),
		tracker:  NewTracker(sctx.Sub("reward")),
		params:   params.Default(),
	}
	f.dist = NewDistributor(f.ledger, f.dir, f.tracker, f.accounts, pool)
	return f
}

func (f *fixture) validator(t *testing.T, name, commission string, self uint64) thor.Address {
	addr := thor.BytesToAddress([]byte(name))
	require.NoError(t, f.dir.Register(addr, []byte(name), stakes.MustParseRate(commission), stakes.ZeroRate(), 0, f.params))
	require.NoError(t, f.ledger.Bond(addr, addr, uint256.NewInt(self), 0))
	return addr
}

func (f *fixture) set(addrs ...thor.Address) *validatorset.Set {
	s := &validatorset.Set{}
	for _, a := range addrs {
		s.Members = append(s.Members, &validatorset.Member{Address: a, Power: 1, Stake: new(uint256.Int)})
	}
	return s
}

func (f *fixture) bonded(t *testing.T, d, v thor.Address, e uint64) uint64 {
	a, err := f.ledger.BondedAmount(d, v, e)
	require.NoError(t, err)
	return a.Uint64()
}

func TestParticipation(t *testing.T) {
	f := newFixture()
	a := thor.BytesToAddress([]byte("a"))
	b := thor.BytesToAddress([]byte("b"))

	require.NoError(t, f.tracker.Record(3, []Vote{{a, true}, {b, false}}))
	require.NoError(t, f.tracker.Record(3, []Vote{{a, false}, {b, false}}))

	pa, err := f.tracker.Get(3, a)
	require.NoError(t, err)
	assert.Equal(t, &Participation{Expected: 2, Signed: 1}, pa)
	assert.True(t, pa.Score().Equal(stakes.MustParseRate("0.5")))

	pc, err := f.tracker.Get(3, thor.BytesToAddress([]byte("c")))
	require.NoError(t, err)
	assert.True(t, pc.Score().Equal(stakes.OneRate()), "no expectation scores 1")

	require.NoError(t, f.tracker.Prune(3))
	pa, err = f.tracker.Get(3, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), pa.Expected)
}

func TestParticipationLateVotes(t *testing.T) {
	f := newFixture()
	a := thor.BytesToAddress([]byte("a"))

	require.NoError(t, f.tracker.Record(1, []Vote{{a, true}}))
	require.NoError(t, f.tracker.Record(2, []Vote{{a, true}}))
	require.NoError(t, f.tracker.Prune(2))
	open, err := f.tracker.Open()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), open)

	for _, e := range []uint64{1, 2} {
		p, err := f.tracker.Get(e, a)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), p.Expected, "epoch %d pruned", e)
	}

	// votes on the closing block of 2 land in the open epoch
	require.NoError(t, f.tracker.Record(2, []Vote{{a, false}}))
	p, err := f.tracker.Get(2, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.Expected)
	p, err = f.tracker.Get(3, a)
	require.NoError(t, err)
	assert.Equal(t, &Participation{Expected: 1, Signed: 0}, p)

	// pruning a closed epoch again is a no-op
	require.NoError(t, f.tracker.Prune(1))
	open, err = f.tracker.Open()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), open)
}

func TestDistribute(t *testing.T) {
	f := newFixture()
	f.params.EpochIssuance = uint256.NewInt(1000)
	a := f.validator(t, "a", "0.1", 300)
	b := f.validator(t, "b", "0", 100)
	d := thor.BytesToAddress([]byte("d"))
	require.NoError(t, f.ledger.Bond(d, a, uint256.NewInt(100), 0))

	rewards, err := f.dist.Distribute(0, f.set(a, b), f.params)
	require.NoError(t, err)
	require.Len(t, rewards, 2)

	// a: 1000*400/500 = 800, commission 80, delegators share 720 by 300:100
	assert.Equal(t, uint64(800), rewards[0].Total.Uint64())
	assert.Equal(t, uint64(80), rewards[0].Commission.Uint64())
	assert.Equal(t, uint64(300+80+540), f.bonded(t, a, a, 1))
	assert.Equal(t, uint64(100+180), f.bonded(t, d, a, 1))
	assert.Equal(t, uint64(300), f.bonded(t, a, a, 0), "compounded from the next epoch")

	assert.Equal(t, uint64(200), rewards[1].Total.Uint64())
	assert.Equal(t, uint64(300), f.bonded(t, b, b, 1))

	minted, err := f.accounts.Balance(pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), minted.Uint64())
	supply, err := f.accounts.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), supply.Uint64())
}

func TestDistributeRoundingDust(t *testing.T) {
	f := newFixture()
	f.params.EpochIssuance = uint256.NewInt(10)
	a := f.validator(t, "a", "0", 1)
	d1 := thor.BytesToAddress([]byte("d1"))
	d2 := thor.BytesToAddress([]byte("d2"))
	require.NoError(t, f.ledger.Bond(d1, a, uint256.NewInt(1), 0))
	require.NoError(t, f.ledger.Bond(d2, a, uint256.NewInt(1), 0))

	rewards, err := f.dist.Distribute(0, f.set(a), f.params)
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, uint64(10), rewards[0].Total.Uint64())

	// 10/3 each, one unit of dust to the validator
	assert.Equal(t, uint64(1+3), f.bonded(t, d1, a, 1))
	assert.Equal(t, uint64(1+3), f.bonded(t, d2, a, 1))
	assert.Equal(t, uint64(1+3+1), f.bonded(t, a, a, 1))
}

func TestDistributeParticipation(t *testing.T) {
	f := newFixture()
	f.params.EpochIssuance = uint256.NewInt(1000)
	a := f.validator(t, "a", "0", 100)
	b := f.validator(t, "b", "0", 100)
	c := f.validator(t, "c", "0", 200)
	require.NoError(t, f.dir.Jail(c, 5))

	for i := 0; i < 4; i++ {
		require.NoError(t, f.tracker.Record(0, []Vote{{a, true}, {b, false}}))
	}
	require.NoError(t, f.tracker.Record(0, []Vote{{a, false}, {b, true}}))

	rewards, err := f.dist.Distribute(0, f.set(a, b, c), f.params)
	require.NoError(t, err)
	require.Len(t, rewards, 1, "b is below the participation threshold, c is jailed")
	assert.Equal(t, a, rewards[0].Validator)
	// 1000*100/200 scaled by 4/5
	assert.Equal(t, uint64(400), rewards[0].Total.Uint64())

	p, err := f.tracker.Get(0, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p.Expected, "pruned after distribution")
}
