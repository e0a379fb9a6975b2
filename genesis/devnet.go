// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"crypto/ecdsa"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/thor"
)

// DevValidators is the number of dev accounts registered as validators on devnet.
const DevValidators = 4

// DevAccount account for development.
type DevAccount struct {
	Address    thor.Address
	PrivateKey *ecdsa.PrivateKey
}

// ConsensusKey returns the compressed public key, used as the devnet consensus key.
func (a DevAccount) ConsensusKey() []byte {
	return crypto.CompressPubkey(&a.PrivateKey.PublicKey)
}

var devAccounts atomic.Pointer[[]DevAccount]

// DevAccounts returns pre-alloced accounts for devnet.
func DevAccounts() []DevAccount {
	if accs := devAccounts.Load(); accs != nil {
		return *accs
	}

	var accs []DevAccount
	privKeys := []string{
		"dce1443bd2ef0c2631adc1c67e5c93f13dc23a41c18b536effbbdcbcdb96fb65",
		"321d6443bc6177273b5abf54210fe806d451d6b7973bccc2384ef78bbcd0bf51",
		"2d7c882bad2a01105e36dda3646693bc1aaaa45b0ed63fb0ce23c060294f3af2",
		"593537225b037191d322c3b1df585fb1e5100811b71a6f7fc7e29cca1333483e",
		"ca7b25fc980c759df5f3ce17a3d881d6e19a38e651fc4315fc08917edab41058",
		"88d2d80b12b92feaa0da6d62309463d20408157723f2d7e799b6a74ead9a673b",
	}
	for _, str := range privKeys {
		pk, err := crypto.HexToECDSA(str)
		if err != nil {
			panic(err)
		}
		addr := crypto.PubkeyToAddress(pk.PublicKey)
		accs = append(accs, DevAccount{thor.Address(addr), pk})
	}
	devAccounts.Store(&accs)
	return accs
}

// NewDevnet creates the genesis of a local development chain. The first dev
// account governs; the first DevValidators accounts validate with equal self bonds.
func NewDevnet() *Genesis {
	epochLength := uint64(10)
	gen := &Genesis{
		ChainTag: 0xf6,
		Governor: DevAccounts()[0].Address,
		Params: Params{
			EpochLength:   &epochLength,
			EpochIssuance: NewAmount(10_000),
		},
	}
	for i, a := range DevAccounts() {
		gen.Accounts = append(gen.Accounts, Account{
			Address: a.Address,
			Balance: NewAmount(1_000_000),
		})
		if i < DevValidators {
			gen.Validators = append(gen.Validators, Validator{
				Address:             a.Address,
				ConsensusKey:        a.ConsensusKey(),
				Commission:          stakes.MustParseRate("0.1"),
				MaxCommissionChange: stakes.MustParseRate("0.01"),
				SelfBond:            NewAmount(100_000),
			})
		}
	}
	return gen
}
