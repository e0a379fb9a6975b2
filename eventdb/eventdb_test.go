// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package eventdb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thorpos/event"
	"github.com/vechain/thorpos/eventdb"
	"github.com/vechain/thorpos/thor"
)

var (
	valA  = thor.BytesToAddress([]byte("validator-a"))
	valB  = thor.BytesToAddress([]byte("validator-b"))
	alice = thor.BytesToAddress([]byte("alice"))
)

func newBlock(height uint64) []*eventdb.Entry {
	return []*eventdb.Entry{
		{TxIndex: 0, Event: &event.Event{Type: event.TypeBonded, Validator: valA, Account: alice, Epoch: height / 10, Amount: uint256.NewInt(height)}},
		{TxIndex: 1, Event: &event.Event{Type: event.TypeUnbonded, Validator: valB, Account: alice, Epoch: height / 10, Amount: uint256.NewInt(1)}},
		{TxIndex: eventdb.BlockHook, Event: &event.Event{
			Type:  event.TypeSetPublished,
			Epoch: height / 10,
			Attrs: []event.Attr{{Key: "size", Value: "2"}},
		}},
	}
}

func TestWriteAndFilter(t *testing.T) {
	db, err := eventdb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	for h := uint64(1); h <= 20; h++ {
		require.NoError(t, db.Write(h, newBlock(h)))
	}
	require.NoError(t, db.Write(21, nil))

	ctx := context.Background()
	all, err := db.Filter(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 60)
	for i, e := range all {
		assert.Equal(t, uint64(i+1), e.Seq)
	}

	first := all[0]
	assert.Equal(t, uint64(1), first.Height)
	assert.Equal(t, event.TypeBonded, first.Event.Type)
	assert.Equal(t, valA, first.Event.Validator)
	assert.Equal(t, alice, first.Event.Account)
	assert.Equal(t, uint64(1), first.Event.Amount.Uint64())

	hook := all[2]
	assert.Equal(t, eventdb.BlockHook, hook.TxIndex)
	assert.Nil(t, hook.Event.Amount)
	size, ok := hook.Event.Attr("size")
	assert.True(t, ok)
	assert.Equal(t, "2", size)

	tests := []struct {
		name   string
		filter *eventdb.Filter
		count  int
	}{
		{"by type", &eventdb.Filter{Types: []event.Type{event.TypeBonded}}, 20},
		{"by types", &eventdb.Filter{Types: []event.Type{event.TypeBonded, event.TypeSetPublished}}, 40},
		{"by validator", &eventdb.Filter{Validator: &valB}, 20},
		{"by account", &eventdb.Filter{Account: &alice}, 40},
		{"by height", &eventdb.Filter{From: 5, To: 6}, 6},
		{"open range", &eventdb.Filter{From: 19}, 6},
		{"limit", &eventdb.Filter{Validator: &valA, Limit: 3}, 3},
		{"no match", &eventdb.Filter{Types: []event.Type{event.TypeSlashed}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.Filter(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.count)
		})
	}

	desc, err := db.Filter(ctx, &eventdb.Filter{Types: []event.Type{event.TypeBonded}, Order: eventdb.DESC, Limit: 1})
	require.NoError(t, err)
	require.Len(t, desc, 1)
	assert.Equal(t, uint64(20), desc[0].Height)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	db, err := eventdb.New(path)
	require.NoError(t, err)
	require.NoError(t, db.Write(1, newBlock(1)))
	require.NoError(t, db.Close())

	db, err = eventdb.New(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, path, db.Path())

	require.NoError(t, db.Write(2, newBlock(2)))
	all, err := db.Filter(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, all, 6)
	assert.Equal(t, uint64(6), all[5].Seq)
	assert.Equal(t, uint64(2), all[5].Height)
}
