// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package tx defines signed staking transactions.
package tx

import (
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/thor"
)

// SignatureLength is the length of a secp256k1 recoverable signature.
const SignatureLength = crypto.SignatureLength

var errUnsigned = errors.New("transaction not signed")

// Transaction is an immutable staking transaction.
type Transaction struct {
	body body

	cache struct {
		signingHash atomic.Pointer[thor.Bytes32]
		id          atomic.Pointer[thor.Bytes32]
		origin      atomic.Pointer[thor.Address]
		payload     atomic.Pointer[Payload]
	}
}

// body describes details of a tx.
type body struct {
	ChainTag  byte
	Nonce     uint64
	Kind      Kind
	Payload   []byte
	Signature []byte
}

// Decode parses the wire form of a transaction.
func Decode(data []byte) (*Transaction, error) {
	var t Transaction
	if err := rlp.DecodeBytes(data, &t); err != nil {
		return nil, errors.Wrap(err, "decode transaction")
	}
	return &t, nil
}

// Encode returns the wire form.
func (t *Transaction) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(t)
}

// ChainTag returns the tag of the chain the tx is bound to.
func (t *Transaction) ChainTag() byte {
	return t.body.ChainTag
}

// Nonce returns the sender nonce.
func (t *Transaction) Nonce() uint64 {
	return t.body.Nonce
}

// Kind returns the operation kind.
func (t *Transaction) Kind() Kind {
	return t.body.Kind
}

// Payload decodes the operation payload.
func (t *Transaction) Payload() (Payload, error) {
	if cached := t.cache.payload.Load(); cached != nil {
		return *cached, nil
	}
	p, err := decodePayload(t.body.Kind, t.body.Payload)
	if err != nil {
		return nil, err
	}
	t.cache.payload.Store(&p)
	return p, nil
}

// Signature returns signature.
func (t *Transaction) Signature() []byte {
	return append([]byte(nil), t.body.Signature...)
}

// SigningHash returns hash of tx excludes signature.
func (t *Transaction) SigningHash() thor.Bytes32 {
	if cached := t.cache.signingHash.Load(); cached != nil {
		return *cached
	}
	hash := thor.Blake2bFn(func(w io.Writer) {
		rlp.Encode(w, []any{
			t.body.ChainTag,
			t.body.Nonce,
			t.body.Kind,
			t.body.Payload,
		})
	})
	t.cache.signingHash.Store(&hash)
	return hash
}

// ID returns the hash of the whole signed transaction.
func (t *Transaction) ID() thor.Bytes32 {
	if cached := t.cache.id.Load(); cached != nil {
		return *cached
	}
	id := thor.Blake2bFn(func(w io.Writer) {
		rlp.Encode(w, &t.body)
	})
	t.cache.id.Store(&id)
	return id
}

// Origin recovers the sender from the signature.
func (t *Transaction) Origin() (thor.Address, error) {
	if cached := t.cache.origin.Load(); cached != nil {
		return *cached, nil
	}
	if len(t.body.Signature) == 0 {
		return thor.Address{}, errUnsigned
	}
	if len(t.body.Signature) != SignatureLength {
		return thor.Address{}, errors.Errorf("invalid signature length %d", len(t.body.Signature))
	}
	hash := t.SigningHash()
	pub, err := crypto.SigToPub(hash[:], t.body.Signature)
	if err != nil {
		return thor.Address{}, errors.Wrap(err, "recover origin")
	}
	origin := thor.Address(crypto.PubkeyToAddress(*pub))
	t.cache.origin.Store(&origin)
	return origin, nil
}

// WithSignature create a new tx with signature set.
func (t *Transaction) WithSignature(sig []byte) *Transaction {
	newTx := Transaction{
		body: t.body,
	}
	// copy sig
	newTx.body.Signature = append([]byte(nil), sig...)
	return &newTx
}

// EncodeRLP implements rlp.Encoder
func (t *Transaction) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &t.body)
}

// DecodeRLP implements rlp.Decoder
func (t *Transaction) DecodeRLP(s *rlp.Stream) error {
	var body body
	if err := s.Decode(&body); err != nil {
		return err
	}
	t.body = body
	return nil
}
