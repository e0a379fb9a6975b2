// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package event

import (
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thorpos/thor"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Emit(&Event{Type: TypeBonded})
	mark := r.Mark()
	r.Emit(&Event{Type: TypeUnbonded})
	r.Emit(&Event{Type: TypeBonded})
	assert.Len(t, r.Events().Filter(TypeBonded), 2)

	r.Truncate(mark)
	assert.Len(t, r.Events(), 1)
	r.Truncate(5)
	assert.Len(t, r.Events(), 1)

	es := r.Reset()
	assert.Len(t, es, 1)
	assert.Empty(t, r.Events())
}

func TestType(t *testing.T) {
	for typ := TypeValidatorRegistered; typ <= TypeRedelegated; typ++ {
		text, err := typ.MarshalText()
		require.NoError(t, err)
		var parsed Type
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, typ, parsed)
	}
	_, err := ParseType("unknown")
	assert.Error(t, err)
	assert.Equal(t, "unknown", Type(200).String())
}

func TestEventRLP(t *testing.T) {
	e := &Event{
		Type:      TypeSlashed,
		Validator: thor.BytesToAddress([]byte("v")),
		Epoch:     7,
		Amount:    uint256.NewInt(3),
		Attrs:     []Attr{{"rate", "0.05"}},
	}
	enc, err := rlp.EncodeToBytes(e)
	require.NoError(t, err)
	var dec Event
	require.NoError(t, rlp.DecodeBytes(enc, &dec))
	assert.Equal(t, e, &dec)

	v, ok := dec.Attr("rate")
	assert.True(t, ok)
	assert.Equal(t, "0.05", v)
	_, ok = dec.Attr("missing")
	assert.False(t, ok)
}
