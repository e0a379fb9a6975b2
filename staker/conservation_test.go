// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thorpos/event"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/reward"
	"github.com/vechain/thorpos/staker/slashing"
	"github.com/vechain/thorpos/thor"
)

type fuzzOp struct {
	Kind      uint8
	Actor     uint8
	Validator uint8
	Amount    uint16
	Back      uint8
	Signed    bool
}

// Random operation sequences never create or destroy value other than
// through minted rewards and burned slashes.
func TestConservation(t *testing.T) {
	actors := []thor.Address{alice, bob, valA, valB}
	validators := []thor.Address{valA, valB}

	for seed := int64(1); seed <= 20; seed++ {
		env := newEnv(t, testParams())
		s := env.staker
		var ops []fuzzOp
		fuzz.NewWithSeed(seed).NilChance(0).NumElements(40, 120).Fuzz(&ops)

		var (
			current uint64
			tracked = append([]thor.Address{PoolAddress}, actors...)
		)
		for i, op := range ops {
			actor := actors[int(op.Actor)%len(actors)]
			validator := validators[int(op.Validator)%len(validators)]
			amount := uint256.NewInt(uint64(op.Amount%300) + 1)

			cp := env.state.NewCheckpoint()
			mark := s.Events().Mark()
			var err error
			switch op.Kind % 7 {
			case 0:
				err = s.Bond(actor, validator, amount, current)
			case 1:
				err = s.Unbond(actor, validator, amount, current)
			case 2:
				_, err = s.Withdraw(actor, validator, current)
			case 3:
				m := current - min(current, uint64(op.Back%5))
				_, err = s.ProcessEvidence(&slashing.Evidence{Validator: validator, Epoch: m, Infraction: params.DuplicateVote}, current)
			case 4:
				err = s.RecordVotes(current, []reward.Vote{{Validator: validator, Signed: op.Signed}})
			case 5:
				current++
				_, err = s.Housekeep(current)
			case 6:
				to := validators[(int(op.Validator)+1)%len(validators)]
				err = s.Redelegate(actor, validator, to, amount, current)
			}
			if err != nil {
				require.True(t, reverts.IsRevertErr(err), "seed %d op %d: %+v", seed, i, err)
				env.state.RevertTo(cp)
				s.Events().Truncate(mark)
			}

			env.checkPool(t)

			var sum uint64
			for _, addr := range tracked {
				sum += env.balance(t, addr)
			}
			supply, err := env.accounts.TotalSupply()
			require.NoError(t, err)
			assert.Equal(t, supply.Uint64(), sum, "seed %d op %d: supply equals balances", seed, i)

			var minted, burned uint64
			for _, e := range s.Events().Events().Filter(event.TypeRewarded) {
				minted += e.Amount.Uint64()
			}
			for _, e := range s.Events().Events().Filter(event.TypeSlashed) {
				burned += e.Amount.Uint64()
			}
			require.Equal(t, 3500+minted-burned, supply.Uint64(), "seed %d op %d", seed, i)
		}
	}
}
