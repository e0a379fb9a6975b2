// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package params

import (
	"slices"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/staker/reverts"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/thor"
)

// SlashRate is the base slash rate of an infraction.
type SlashRate struct {
	Infraction Infraction
	Rate       stakes.Rate
}

// Params are the staking parameters. They change only at epoch boundaries.
type Params struct {
	EpochLength      uint64 // blocks per epoch, fixed for the chain's lifetime
	PipelineOffset   uint64
	UnbondingLength  uint64
	MaxValidators    uint64
	CubicSlashWindow uint64
	JailDuration     uint64
	SlashScaling     stakes.Rate
	SlashRates       []SlashRate // sorted by infraction
	MinCommission    stakes.Rate
	MaxCommission    stakes.Rate
	EpochIssuance    *uint256.Int
	MinParticipation stakes.Rate
	PowerReduction   *uint256.Int // stake units per unit of voting power
	Governor         thor.Address
}

// Default returns the default parameters.
func Default() *Params {
	return &Params{
		EpochLength:      100,
		PipelineOffset:   2,
		UnbondingLength:  21,
		MaxValidators:    100,
		CubicSlashWindow: 1,
		JailDuration:     2,
		SlashScaling:     stakes.OneRate(),
		SlashRates: []SlashRate{
			{DuplicateVote, stakes.MustParseRate("0.05")},
			{LightClientAttack, stakes.MustParseRate("0.05")},
			{Downtime, stakes.MustParseRate("0.0001")},
		},
		MinCommission:    stakes.ZeroRate(),
		MaxCommission:    stakes.OneRate(),
		EpochIssuance:    uint256.NewInt(1_000_000),
		MinParticipation: stakes.MustParseRate("0.5"),
		PowerReduction:   uint256.NewInt(1),
	}
}

// Copy returns a deep copy.
func (p *Params) Copy() *Params {
	cpy := *p
	cpy.SlashRates = slices.Clone(p.SlashRates)
	cpy.EpochIssuance = new(uint256.Int).Set(p.EpochIssuance)
	cpy.PowerReduction = new(uint256.Int).Set(p.PowerReduction)
	return &cpy
}

// SlashRate returns the base slash rate of inf.
func (p *Params) SlashRate(inf Infraction) (stakes.Rate, bool) {
	for _, sr := range p.SlashRates {
		if sr.Infraction == inf {
			return sr.Rate, true
		}
	}
	return stakes.Rate{}, false
}

// Validate checks every bound, returning a ParameterOutOfRange revert on the first violation.
func (p *Params) Validate() error {
	zero, one := stakes.ZeroRate(), stakes.OneRate()
	switch {
	case p.EpochLength == 0:
		return reverts.ParameterOutOfRange("epoch length must be positive")
	case p.PipelineOffset == 0:
		return reverts.ParameterOutOfRange("pipeline offset must be positive")
	case p.UnbondingLength < p.PipelineOffset:
		return reverts.ParameterOutOfRange("unbonding length %d below pipeline offset %d", p.UnbondingLength, p.PipelineOffset)
	case p.MaxValidators == 0:
		return reverts.ParameterOutOfRange("max validators must be positive")
	case p.CubicSlashWindow > p.UnbondingLength:
		return reverts.ParameterOutOfRange("cubic slash window %d exceeds unbonding length %d", p.CubicSlashWindow, p.UnbondingLength)
	case p.JailDuration == 0:
		return reverts.ParameterOutOfRange("jail duration must be positive")
	case p.SlashScaling.IsZero():
		return reverts.ParameterOutOfRange("slash scaling must be positive")
	case !p.MinCommission.Within(zero, one) || !p.MaxCommission.Within(zero, one):
		return reverts.ParameterOutOfRange("commission bounds must be within [0, 1]")
	case p.MinCommission.GT(p.MaxCommission):
		return reverts.ParameterOutOfRange("min commission %s above max commission %s", p.MinCommission, p.MaxCommission)
	case !p.MinParticipation.Within(zero, one):
		return reverts.ParameterOutOfRange("min participation must be within [0, 1]")
	case p.EpochIssuance == nil:
		return reverts.ParameterOutOfRange("epoch issuance missing")
	case p.PowerReduction == nil || p.PowerReduction.IsZero():
		return reverts.ParameterOutOfRange("power reduction must be positive")
	}
	for i, sr := range p.SlashRates {
		if _, ok := infractionNames[sr.Infraction]; !ok {
			return reverts.ParameterOutOfRange("unknown infraction %d", sr.Infraction)
		}
		if !sr.Rate.Within(zero, one) {
			return reverts.ParameterOutOfRange("slash rate of %s must be within [0, 1]", sr.Infraction)
		}
		if i > 0 && p.SlashRates[i-1].Infraction >= sr.Infraction {
			return reverts.ParameterOutOfRange("slash rates must be sorted and unique")
		}
	}
	return nil
}

// With returns a copy with the named parameter set from its string form.
// Unknown names and malformed values are ValidationError, resulting bound
// violations are ParameterOutOfRange.
func (p *Params) With(name, value string) (*Params, error) {
	cpy := p.Copy()

	parseUint := func(dst *uint64) error {
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return reverts.Validation("parameter %s: %v", name, err)
		}
		*dst = v
		return nil
	}
	parseRate := func(dst *stakes.Rate) error {
		v, err := stakes.ParseRate(value)
		if err != nil {
			return reverts.Validation("parameter %s: %v", name, err)
		}
		*dst = v
		return nil
	}
	parseAmount := func(dst **uint256.Int) error {
		v, err := stakes.ParseAmount(value)
		if err != nil {
			return reverts.Validation("parameter %s: %v", name, err)
		}
		*dst = v
		return nil
	}

	var err error
	switch name {
	case "epoch-length":
		return nil, reverts.ParameterOutOfRange("epoch length is fixed at genesis")
	case "pipeline-offset":
		err = parseUint(&cpy.PipelineOffset)
	case "unbonding-length":
		err = parseUint(&cpy.UnbondingLength)
	case "max-validators":
		err = parseUint(&cpy.MaxValidators)
	case "cubic-slash-window":
		err = parseUint(&cpy.CubicSlashWindow)
	case "jail-duration":
		err = parseUint(&cpy.JailDuration)
	case "slash-scaling":
		err = parseRate(&cpy.SlashScaling)
	case "min-commission":
		err = parseRate(&cpy.MinCommission)
	case "max-commission":
		err = parseRate(&cpy.MaxCommission)
	case "min-participation":
		err = parseRate(&cpy.MinParticipation)
	case "epoch-issuance":
		err = parseAmount(&cpy.EpochIssuance)
	case "power-reduction":
		err = parseAmount(&cpy.PowerReduction)
	case "governor":
		addr, perr := thor.ParseAddress(value)
		if perr != nil {
			return nil, reverts.Validation("parameter %s: %v", name, perr)
		}
		cpy.Governor = *addr
	default:
		inf, perr := ParseInfraction(stripSlashRatePrefix(name))
		if perr != nil {
			return nil, reverts.Validation("unknown parameter %q", name)
		}
		var rate stakes.Rate
		if err := parseRate(&rate); err != nil {
			return nil, err
		}
		cpy.setSlashRate(inf, rate)
	}
	if err != nil {
		return nil, err
	}
	if err := cpy.Validate(); err != nil {
		return nil, err
	}
	return cpy, nil
}

func (p *Params) setSlashRate(inf Infraction, rate stakes.Rate) {
	i, found := slices.BinarySearchFunc(p.SlashRates, inf, func(sr SlashRate, inf Infraction) int {
		return int(sr.Infraction) - int(inf)
	})
	if found {
		p.SlashRates[i].Rate = rate
		return
	}
	p.SlashRates = slices.Insert(p.SlashRates, i, SlashRate{inf, rate})
}

func stripSlashRatePrefix(name string) string {
	const prefix = "slash-rate."
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return ""
}

// errNotInitialized is returned when reading parameters before genesis stored them.
var errNotInitialized = errors.New("staking parameters not initialized")
