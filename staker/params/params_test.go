// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package params

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/thorpos/lvldb"
	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/storage"
	"github.com/vechain/thorpos/state"
)

func newSvc(t *testing.T) *Service {
	svc := New(storage.NewContext(state.New(lvldb.NewMem(), nil), "p/"))
	require.NoError(t, svc.Init(Default()))
	return svc
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())

	rate, ok := Default().SlashRate(DuplicateVote)
	assert.True(t, ok)
	assert.Equal(t, "0.050000000000000000", rate.String())

	_, ok = (&Params{}).SlashRate(DuplicateVote)
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"zero pipeline", func(p *Params) { p.PipelineOffset = 0 }},
		{"unbonding below pipeline", func(p *Params) { p.UnbondingLength = 1 }},
		{"zero max validators", func(p *Params) { p.MaxValidators = 0 }},
		{"window above unbonding", func(p *Params) { p.CubicSlashWindow = 22 }},
		{"zero jail", func(p *Params) { p.JailDuration = 0 }},
		{"zero scaling", func(p *Params) { p.SlashScaling = stakes.ZeroRate() }},
		{"commission above one", func(p *Params) { p.MaxCommission = stakes.MustParseRate("1.1") }},
		{"inverted commission", func(p *Params) {
			p.MinCommission = stakes.MustParseRate("0.5")
			p.MaxCommission = stakes.MustParseRate("0.2")
		}},
		{"participation above one", func(p *Params) { p.MinParticipation = stakes.MustParseRate("2") }},
		{"zero power reduction", func(p *Params) { p.PowerReduction = uint256.NewInt(0) }},
		{"slash rate above one", func(p *Params) { p.SlashRates[0].Rate = stakes.MustParseRate("1.01") }},
		{"unsorted slash rates", func(p *Params) { p.SlashRates[0], p.SlashRates[1] = p.SlashRates[1], p.SlashRates[0] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)
			err := p.Validate()
			assert.ErrorIs(t, err, reverts.ErrParameterOutOfRange)
		})
	}
}

func TestWith(t *testing.T) {
	p := Default()

	next, err := p.With("max-validators", "7")
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), next.MaxValidators)
	assert.Equal(t, uint64(100), p.MaxValidators, "original untouched")

	next, err = p.With("slash-rate.downtime", "0.01")
	assert.NoError(t, err)
	rate, _ := next.SlashRate(Downtime)
	assert.True(t, rate.Equal(stakes.MustParseRate("0.01")))

	_, err = p.With("epoch-length", "10")
	assert.ErrorIs(t, err, reverts.ErrParameterOutOfRange)

	_, err = p.With("max-validators", "0")
	assert.ErrorIs(t, err, reverts.ErrParameterOutOfRange)

	_, err = p.With("max-validators", "many")
	assert.ErrorIs(t, err, reverts.ErrValidation)

	_, err = p.With("no-such-thing", "1")
	assert.ErrorIs(t, err, reverts.ErrValidation)

	next, err = p.With("epoch-issuance", "42")
	assert.NoError(t, err)
	assert.Equal(t, uint256.NewInt(42), next.EpochIssuance)
}

func TestQueueAndApply(t *testing.T) {
	svc := newSvc(t)

	assert.NoError(t, svc.Queue("jail-duration", "5"))
	assert.NoError(t, svc.Queue("jail-duration", "6"))
	assert.ErrorIs(t, svc.Queue("pipeline-offset", "0"), reverts.ErrParameterOutOfRange)

	p, err := svc.Get()
	assert.NoError(t, err)
	assert.Equal(t, uint64(2), p.JailDuration, "not applied mid epoch")

	applied, err := svc.ApplyPending()
	assert.NoError(t, err)
	assert.Equal(t, []Update{{"jail-duration", "5"}, {"jail-duration", "6"}}, applied)

	p, err = svc.Get()
	assert.NoError(t, err)
	assert.Equal(t, uint64(6), p.JailDuration)

	pending, err := svc.Pending()
	assert.NoError(t, err)
	assert.Empty(t, pending)

	applied, err = svc.ApplyPending()
	assert.NoError(t, err)
	assert.Empty(t, applied)
}

func TestGetBeforeInit(t *testing.T) {
	svc := New(storage.NewContext(state.New(lvldb.NewMem(), nil), "p/"))
	_, err := svc.Get()
	assert.ErrorIs(t, err, errNotInitialized)
}

func TestInfractionText(t *testing.T) {
	var inf Infraction
	assert.NoError(t, inf.UnmarshalText([]byte("light-client-attack")))
	assert.Equal(t, LightClientAttack, inf)
	assert.Error(t, inf.UnmarshalText([]byte("bogus")))
	assert.Equal(t, "unknown", Infraction(0).String())
}
