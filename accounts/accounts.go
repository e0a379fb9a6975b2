// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package accounts keeps liquid balances, nonces and the total supply.
// Every credit mints into the supply and every debit burns from it, so a
// transfer is a debit followed by a credit and the supply always equals the
// sum of all balances.
package accounts

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/log"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/thor"
)

var logger = log.WithContext("pkg", "accounts")

type Accounts struct {
	balances *storage.Mapping[thor.Address, *uint256.Int]
	nonces   *storage.Mapping[thor.Address, uint64]
	supply   *storage.Raw[*uint256.Int]
}

func New(sctx *storage.Context) *Accounts {
	return &Accounts{
		balances: storage.NewMapping[thor.Address, *uint256.Int](sctx, "balance"),
		nonces:   storage.NewMapping[thor.Address, uint64](sctx, "nonce"),
		supply:   storage.NewRaw[*uint256.Int](sctx, "supply"),
	}
}

// Balance returns the liquid balance of addr.
func (a *Accounts) Balance(addr thor.Address) (*uint256.Int, error) {
	bal, err := a.balances.Get(addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}
	return bal, nil
}

// TotalSupply returns the sum of all balances.
func (a *Accounts) TotalSupply() (*uint256.Int, error) {
	supply, err := a.supply.Get()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get supply")
	}
	return supply, nil
}

// Credit adds amount to addr.
func (a *Accounts) Credit(addr thor.Address, amount *uint256.Int) error {
	if stakes.IsZero(amount) {
		return nil
	}
	bal, err := a.Balance(addr)
	if err != nil {
		return err
	}
	supply, err := a.TotalSupply()
	if err != nil {
		return err
	}
	if bal, err = stakes.Add(bal, amount); err != nil {
		return err
	}
	if supply, err = stakes.Add(supply, amount); err != nil {
		return err
	}
	if err := a.balances.Set(addr, bal); err != nil {
		return err
	}
	logger.Trace("credit", "account", addr, "amount", amount)
	return a.supply.Set(supply)
}

// Debit removes amount from addr. Debiting more than the balance is a validation revert.
func (a *Accounts) Debit(addr thor.Address, amount *uint256.Int) error {
	if stakes.IsZero(amount) {
		return nil
	}
	bal, err := a.Balance(addr)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return reverts.Validation("insufficient balance: %s has %s, needs %s", addr, bal, amount)
	}
	supply, err := a.TotalSupply()
	if err != nil {
		return err
	}
	if supply, err = stakes.Sub(supply, amount); err != nil {
		return err
	}
	if err := a.balances.Set(addr, new(uint256.Int).Sub(bal, amount)); err != nil {
		return err
	}
	logger.Trace("debit", "account", addr, "amount", amount)
	return a.supply.Set(supply)
}

// Transfer moves amount from one account to another.
func (a *Accounts) Transfer(from, to thor.Address, amount *uint256.Int) error {
	if err := a.Debit(from, amount); err != nil {
		return err
	}
	return a.Credit(to, amount)
}

// Nonce returns the next expected transaction nonce of addr.
func (a *Accounts) Nonce(addr thor.Address) (uint64, error) {
	n, err := a.nonces.Get(addr)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get nonce")
	}
	return n, nil
}

// IncNonce advances the nonce of addr.
func (a *Accounts) IncNonce(addr thor.Address) error {
	n, err := a.Nonce(addr)
	if err != nil {
		return err
	}
	return a.nonces.Set(addr, n+1)
}
