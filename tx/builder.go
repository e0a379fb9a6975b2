// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// Builder to make it easy to build transaction.
type Builder struct {
	body    body
	payload Payload
}

// ChainTag set chain tag.
func (b *Builder) ChainTag(tag byte) *Builder {
	b.body.ChainTag = tag
	return b
}

// Nonce set nonce.
func (b *Builder) Nonce(nonce uint64) *Builder {
	b.body.Nonce = nonce
	return b
}

// Payload set the operation.
func (b *Builder) Payload(p Payload) *Builder {
	b.payload = p
	return b
}

// Build build tx object.
func (b *Builder) Build() (*Transaction, error) {
	tx := Transaction{body: b.body}
	if b.payload != nil {
		data, err := rlp.EncodeToBytes(b.payload)
		if err != nil {
			return nil, err
		}
		tx.body.Kind = b.payload.Kind()
		tx.body.Payload = data
	}
	return &tx, nil
}

// MustBuild is Build panicking on error.
func (b *Builder) MustBuild() *Transaction {
	tx, err := b.Build()
	if err != nil {
		panic(err)
	}
	return tx
}
