// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"

	"github.com/vechain/thorpos/lvldb"
	"github.com/vechain/thorpos/state"
	"github.com/vechain/thorpos/thor"
)

type record struct {
	Name  string
	Count uint64
}

func newContext() *Context {
	return NewContext(state.New(lvldb.NewMem(), nil), "t/")
}

func TestMapping_PointerValues(t *testing.T) {
	ctx := newContext()
	m := NewMapping[thor.Address, *record](ctx, "records")
	addr := thor.BytesToAddress([]byte("a"))

	got, err := m.Get(addr)
	assert.NoError(t, err)
	assert.NotNil(t, got, "absent pointer values decode as zero struct")
	assert.Equal(t, record{}, *got)

	exists, err := m.Exists(addr)
	assert.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, m.Set(addr, &record{Name: "x", Count: 3}))
	got, err = m.Get(addr)
	assert.NoError(t, err)
	assert.Equal(t, &record{Name: "x", Count: 3}, got)

	assert.NoError(t, m.Set(addr, nil))
	exists, err = m.Exists(addr)
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestMapping_SliceValues(t *testing.T) {
	ctx := newContext()
	m := NewMapping[Uint64, []thor.Address](ctx, "list")

	got, err := m.Get(1)
	assert.NoError(t, err)
	assert.Empty(t, got)

	list := []thor.Address{thor.BytesToAddress([]byte("a")), thor.BytesToAddress([]byte("b"))}
	assert.NoError(t, m.Set(1, list))
	got, err = m.Get(1)
	assert.NoError(t, err)
	assert.Equal(t, list, got)

	m.Delete(1)
	got, err = m.Get(1)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestMapping_TagsDoNotCollide(t *testing.T) {
	ctx := newContext()
	a := NewMapping[Composite, uint64](ctx, "a")
	ab := NewMapping[Composite, uint64](ctx, "ab")

	assert.NoError(t, a.Set(Composite("b"), 1))
	assert.NoError(t, ab.Set(Composite(""), 2))

	v, err := a.Get(Composite("b"))
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), v)
	v, err = ab.Get(Composite(""))
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), v)
}

func TestMapping_DecodeError(t *testing.T) {
	ctx := newContext()
	m := NewMapping[Uint64, *record](ctx, "records")
	ctx.State().Set(ctx.key("records", Uint64(7).Bytes()), rlp.RawValue{0xFF})

	_, err := m.Get(7)
	assert.ErrorContains(t, err, "decode record")
}

func TestRaw(t *testing.T) {
	ctx := newContext().Sub("nested")
	r := NewRaw[uint64](ctx, "counter")

	v, err := r.Get()
	assert.NoError(t, err)
	assert.Zero(t, v)

	assert.NoError(t, r.Set(42))
	v, err = r.Get()
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), v)
}

func TestJoin(t *testing.T) {
	addr := thor.BytesToAddress([]byte("v"))
	k := Join(addr, Uint64(5))
	assert.Len(t, k.Bytes(), thor.AddressLength+8)
	assert.Equal(t, byte(5), k.Bytes()[len(k)-1])
}
