// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validation

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thorpos/lvldb"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/state"
	"github.com/vechain/thorpos/thor"
)

func newService() *Service {
	return New(storage.NewContext(state.New(lvldb.NewMem(), nil), "validation/"))
}

func addr(s string) thor.Address {
	return thor.BytesToAddress([]byte(s))
}

func register(t *testing.T, svc *Service, a thor.Address, key string) {
	require.NoError(t, svc.Register(a, []byte(key), stakes.MustParseRate("0.1"), stakes.MustParseRate("0.05"), 0, params.Default()))
}

func TestRegister(t *testing.T) {
	svc := newService()
	register(t, svc, addr("b"), "key-b")
	register(t, svc, addr("a"), "key-a")

	v, err := svc.GetExisting(addr("a"))
	require.NoError(t, err)
	assert.Equal(t, StatusInactive, v.Status())
	assert.Equal(t, []byte("key-a"), v.ConsensusKey())
	assert.True(t, v.IsCandidate())
	assert.True(t, v.CommissionAt(0).Equal(stakes.MustParseRate("0.1")))

	all, err := svc.All()
	require.NoError(t, err)
	assert.Equal(t, []thor.Address{addr("a"), addr("b")}, all)

	owner, err := svc.Owner([]byte("key-b"))
	require.NoError(t, err)
	assert.Equal(t, addr("b"), owner)
}

func TestRegisterRejects(t *testing.T) {
	svc := newService()
	register(t, svc, addr("a"), "key-a")

	p := params.Default()
	p.MaxCommission = stakes.MustParseRate("0.5")

	tests := []struct {
		name       string
		addr       thor.Address
		key        string
		commission string
	}{
		{"already registered", addr("a"), "other", "0.1"},
		{"duplicate key", addr("b"), "key-a", "0.1"},
		{"empty key", addr("b"), "", "0.1"},
		{"commission above max", addr("b"), "key-b", "0.6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Register(tt.addr, []byte(tt.key), stakes.MustParseRate(tt.commission), stakes.ZeroRate(), 0, p)
			assert.ErrorIs(t, err, reverts.ErrValidation)
		})
	}

	_, err := svc.GetExisting(addr("z"))
	assert.ErrorIs(t, err, reverts.ErrInvalidValidator)
}

func TestChangeCommission(t *testing.T) {
	svc := newService()
	register(t, svc, addr("a"), "key-a")
	p := params.Default()

	err := svc.ChangeCommission(addr("a"), stakes.MustParseRate("0.2"), 3, 5, p)
	assert.ErrorIs(t, err, reverts.ErrValidation, "change of 0.1 exceeds 0.05")

	require.NoError(t, svc.ChangeCommission(addr("a"), stakes.MustParseRate("0.15"), 3, 5, p))
	v, err := svc.Get(addr("a"))
	require.NoError(t, err)
	assert.True(t, v.CommissionAt(4).Equal(stakes.MustParseRate("0.1")))
	assert.True(t, v.CommissionAt(5).Equal(stakes.MustParseRate("0.15")))

	// replaces the pending change
	require.NoError(t, svc.ChangeCommission(addr("a"), stakes.MustParseRate("0.12"), 4, 6, p))
	v, _ = svc.Get(addr("a"))
	assert.Equal(t, uint64(6), v.PendingCommission().Epoch)

	_, err = svc.Transition(6)
	require.NoError(t, err)
	v, _ = svc.Get(addr("a"))
	assert.Nil(t, v.PendingCommission())
	assert.True(t, v.CommissionAt(6).Equal(stakes.MustParseRate("0.12")))
}

func TestChangeConsensusKey(t *testing.T) {
	svc := newService()
	register(t, svc, addr("a"), "key-a")
	register(t, svc, addr("b"), "key-b")

	assert.ErrorIs(t, svc.ChangeConsensusKey(addr("a"), []byte("key-b")), reverts.ErrValidation)
	require.NoError(t, svc.ChangeConsensusKey(addr("a"), []byte("key-a2")))

	v, _ := svc.Get(addr("a"))
	assert.Equal(t, []byte("key-a"), v.ConsensusKey())
	assert.Equal(t, []byte("key-a2"), v.PendingKey())

	_, err := svc.Transition(1)
	require.NoError(t, err)
	v, _ = svc.Get(addr("a"))
	assert.Equal(t, []byte("key-a2"), v.ConsensusKey())
	assert.Empty(t, v.PendingKey())

	// retired keys stay reserved
	assert.ErrorIs(t, svc.ChangeConsensusKey(addr("b"), []byte("key-a")), reverts.ErrValidation)
}

func TestJailLifecycle(t *testing.T) {
	svc := newService()
	register(t, svc, addr("a"), "key-a")

	changed, err := svc.SetActive(addr("a"), true)
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, svc.Jail(addr("a"), 7))
	require.NoError(t, svc.Jail(addr("a"), 5), "shorter term keeps the longer one")
	v, _ := svc.Get(addr("a"))
	assert.Equal(t, StatusJailed, v.Status())
	assert.Equal(t, uint64(7), v.JailedUntil())
	assert.False(t, v.IsCandidate())

	changed, err = svc.SetActive(addr("a"), true)
	require.NoError(t, err)
	assert.False(t, changed, "jailed validators cannot be activated")

	released, err := svc.Transition(6)
	require.NoError(t, err)
	assert.Empty(t, released)

	released, err = svc.Transition(7)
	require.NoError(t, err)
	assert.Equal(t, []thor.Address{addr("a")}, released)
	v, _ = svc.Get(addr("a"))
	assert.Equal(t, StatusInactive, v.Status())
	assert.True(t, v.IsCandidate())
}

func TestDeactivate(t *testing.T) {
	svc := newService()
	register(t, svc, addr("a"), "key-a")

	assert.ErrorIs(t, svc.SetDeactivated(addr("a"), false), reverts.ErrValidation)
	require.NoError(t, svc.SetDeactivated(addr("a"), true))
	v, _ := svc.Get(addr("a"))
	assert.False(t, v.IsCandidate())
	assert.ErrorIs(t, svc.SetDeactivated(addr("a"), true), reverts.ErrValidation)
	require.NoError(t, svc.SetDeactivated(addr("a"), false))
}

func TestValidatorRLP(t *testing.T) {
	v := newValidator([]byte("key"), stakes.MustParseRate("0.1"), stakes.MustParseRate("0.01"), 3)
	v.body.PendingCommission = &CommissionChange{stakes.MustParseRate("0.11"), 5}
	v.jail(9)

	enc, err := rlp.EncodeToBytes(v)
	require.NoError(t, err)
	var dec Validator
	require.NoError(t, rlp.DecodeBytes(enc, &dec))

	assert.Equal(t, v.ConsensusKey(), dec.ConsensusKey())
	assert.Equal(t, StatusJailed, dec.Status())
	assert.Equal(t, uint64(9), dec.JailedUntil())
	assert.Equal(t, uint64(3), dec.RegisteredEpoch())
	assert.Equal(t, uint64(5), dec.PendingCommission().Epoch)
	assert.True(t, dec.CommissionAt(5).Equal(stakes.MustParseRate("0.11")))
}
