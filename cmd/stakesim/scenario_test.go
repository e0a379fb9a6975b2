// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thorpos/genesis"
	"github.com/vechain/thorpos/lvldb"
	"github.com/vechain/thorpos/runtime"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/tx"
)

const sampleScenario = `
fund:
  alice: "50000"
blocks:
  - txs:
      - {from: alice, kind: bond, validator: dev0, amount: "1000"}
      - {from: carol, kind: register-validator, commission: "0.1", maxChange: "0.01"}
      - {from: alice, kind: unbond, validator: dev1, amount: "1"}
  - idle: 2
    absent: [dev3]
  - evidence:
      - {validator: dev2, epoch: 0, infraction: duplicate-vote}
    txs:
      - {from: alice, kind: bond, validator: carol, amount: "500"}
`

func TestParseScenario(t *testing.T) {
	sc, err := parseScenario([]byte(sampleScenario))
	require.NoError(t, err)
	assert.Len(t, sc.Blocks, 3)
	assert.Equal(t, uint64(5), sc.Len())
	assert.Equal(t, uint64(50000), sc.Fund["alice"].Int().Uint64())
	assert.Equal(t, "0.100000000000000000", sc.Blocks[0].Txs[1].Commission.String())
	assert.Equal(t, "duplicate-vote", sc.Blocks[2].Evidence[0].Infraction.String())

	tests := []struct {
		name string
		data string
	}{
		{"no sender", "blocks: [{txs: [{kind: bond}]}]"},
		{"unknown kind", "blocks: [{txs: [{from: alice, kind: transfer}]}]"},
		{"bad amount", "blocks: [{txs: [{from: alice, kind: bond, amount: lots}]}]"},
		{"bad infraction", "blocks: [{evidence: [{validator: dev0, infraction: theft}]}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseScenario([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestRedelegatePayload(t *testing.T) {
	sc, err := parseScenario([]byte(`blocks: [{txs: [{from: alice, kind: redelegate, validator: dev0, to: dev1, amount: "5"}]}]`))
	require.NoError(t, err)

	keys := newKeyring()
	payload, err := newPlayer(nil, keys).payload(sc.Blocks[0].Txs[0])
	require.NoError(t, err)
	re, ok := payload.(*tx.Redelegate)
	require.True(t, ok)
	assert.Equal(t, genesis.DevAccounts()[0].Address, re.From)
	assert.Equal(t, genesis.DevAccounts()[1].Address, re.To)
	assert.Equal(t, uint64(5), re.Amount.Uint64())
}

func TestKeyring(t *testing.T) {
	keys := newKeyring()
	dev0, err := keys.address("dev0")
	require.NoError(t, err)
	assert.Equal(t, genesis.DevAccounts()[0].Address, dev0)

	alice, err := keys.address("alice")
	require.NoError(t, err)
	again, err := newKeyring().address("alice")
	require.NoError(t, err)
	assert.Equal(t, alice, again, "derived from the name only")

	bob, err := keys.address("bob")
	require.NoError(t, err)
	assert.NotEqual(t, alice, bob)

	_, err = keys.key("")
	assert.Error(t, err)

	key, err := keys.consensusKey("0x0102")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, key)
	key, err = keys.consensusKey("dev1")
	require.NoError(t, err)
	assert.Equal(t, genesis.DevAccounts()[1].ConsensusKey(), key)
}

func TestPlay(t *testing.T) {
	sc, err := parseScenario([]byte(sampleScenario))
	require.NoError(t, err)

	keys := newKeyring()
	gen := genesis.NewDevnet()
	epochLength := uint64(5)
	gen.Params.EpochLength = &epochLength
	require.NoError(t, sc.Apply(gen, keys))

	rt, err := runtime.New(lvldb.NewMem(), gen, runtime.Options{})
	require.NoError(t, err)

	var blocks []*BlockResult
	p := newPlayer(rt, keys)
	p.onBlock = func(res *BlockResult) { blocks = append(blocks, res) }
	require.NoError(t, p.play(context.Background(), sc))

	require.Len(t, blocks, 5)
	first := blocks[0].Results
	require.Len(t, first, 3)
	assert.True(t, first[0].OK(), first[0].Log)
	assert.True(t, first[1].OK(), first[1].Log)
	assert.Equal(t, reverts.KindInsufficientBond.Code(), first[2].Code)
	assert.NotEmpty(t, blocks[3].Updates, "epoch transition at height 4")
	assert.True(t, blocks[4].Results[0].OK(), blocks[4].Results[0].Log)
	assert.Equal(t, rt.Root(), blocks[4].Root)

	alice, _ := keys.address("alice")
	carol, _ := keys.address("carol")
	dev2, _ := keys.address("dev2")

	rd := rt.Reader()
	defer rd.Release()
	assert.Equal(t, uint64(5), rd.Height())

	bal, err := rd.Balance(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(50000-1000-500), bal.Uint64())
	nonce, err := rd.Nonce(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), nonce)

	v, err := rd.Validator(carol)
	require.NoError(t, err)
	assert.False(t, v.IsEmpty())
	v, err = rd.Validator(dev2)
	require.NoError(t, err)
	assert.True(t, v.IsJailed())

	snap, err := takeSnapshot(rd)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Epoch)
	assert.Len(t, snap.Validators, genesis.DevValidators+1)
	assert.Len(t, snap.SlashRecords, 0, "records are kept under the offence epoch")
}
