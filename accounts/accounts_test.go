// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accounts

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"

	"github.com/vechain/thorpos/lvldb"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/state"
	"github.com/vechain/thorpos/thor"
)

func newAccounts() (*Accounts, *state.State) {
	st := state.New(lvldb.NewMem(), nil)
	return New(storage.NewContext(st, "a/")), st
}

func TestCreditDebit(t *testing.T) {
	acc, _ := newAccounts()
	alice := thor.BytesToAddress([]byte("alice"))
	bob := thor.BytesToAddress([]byte("bob"))

	assert.NoError(t, acc.Credit(alice, uint256.NewInt(100)))
	assert.NoError(t, acc.Transfer(alice, bob, uint256.NewInt(30)))

	bal, err := acc.Balance(alice)
	assert.NoError(t, err)
	assert.Equal(t, uint256.NewInt(70), bal)
	bal, err = acc.Balance(bob)
	assert.NoError(t, err)
	assert.Equal(t, uint256.NewInt(30), bal)

	supply, err := acc.TotalSupply()
	assert.NoError(t, err)
	assert.Equal(t, uint256.NewInt(100), supply)

	assert.NoError(t, acc.Debit(bob, uint256.NewInt(10)))
	supply, err = acc.TotalSupply()
	assert.NoError(t, err)
	assert.Equal(t, uint256.NewInt(90), supply)

	err = acc.Debit(bob, uint256.NewInt(21))
	assert.ErrorIs(t, err, reverts.ErrValidation)

	assert.NoError(t, acc.Credit(bob, nil), "zero credit is a noop")
}

func TestTransferRevertsWithCheckpoint(t *testing.T) {
	acc, st := newAccounts()
	alice := thor.BytesToAddress([]byte("alice"))
	assert.NoError(t, acc.Credit(alice, uint256.NewInt(5)))

	rev := st.NewCheckpoint()
	assert.NoError(t, acc.Debit(alice, uint256.NewInt(5)))
	st.RevertTo(rev)

	bal, err := acc.Balance(alice)
	assert.NoError(t, err)
	assert.Equal(t, uint256.NewInt(5), bal)
}

func TestNonce(t *testing.T) {
	acc, _ := newAccounts()
	alice := thor.BytesToAddress([]byte("alice"))

	n, err := acc.Nonce(alice)
	assert.NoError(t, err)
	assert.Zero(t, n)

	assert.NoError(t, acc.IncNonce(alice))
	assert.NoError(t, acc.IncNonce(alice))
	n, err = acc.Nonce(alice)
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), n)
}
