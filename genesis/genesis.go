// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis describes the initial chain state in YAML.
package genesis

import (
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/thorpos/accounts"
	"github.com/vechain/thorpos/staker"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/staker/validatorset"
	"github.com/vechain/thorpos/thor"
)

// Genesis is the user supplied genesis.
type Genesis struct {
	ChainTag   byte         `yaml:"chainTag"`
	Governor   thor.Address `yaml:"governor"`
	Params     Params       `yaml:"params,omitempty"`
	Accounts   []Account    `yaml:"accounts,omitempty"`
	Validators []Validator  `yaml:"validators"`
	Bonds      []Bond       `yaml:"bonds,omitempty"`
}

// Account is a liquid balance minted at genesis.
type Account struct {
	Address thor.Address `yaml:"address"`
	Balance *Amount      `yaml:"balance"`
}

// Validator is a validator registered at genesis.
type Validator struct {
	Address             thor.Address  `yaml:"address"`
	ConsensusKey        hexutil.Bytes `yaml:"consensusKey"`
	Commission          stakes.Rate   `yaml:"commission"`
	MaxCommissionChange stakes.Rate   `yaml:"maxCommissionChange"`
	SelfBond            *Amount       `yaml:"selfBond,omitempty"`
}

// Bond is a delegation effective from epoch 0.
type Bond struct {
	Delegator thor.Address `yaml:"delegator"`
	Validator thor.Address `yaml:"validator"`
	Amount    *Amount      `yaml:"amount"`
}

// Params overrides the default staking parameters. Absent fields keep their default.
type Params struct {
	EpochLength      *uint64                           `yaml:"epochLength,omitempty"`
	PipelineOffset   *uint64                           `yaml:"pipelineOffset,omitempty"`
	UnbondingLength  *uint64                           `yaml:"unbondingLength,omitempty"`
	MaxValidators    *uint64                           `yaml:"maxValidators,omitempty"`
	CubicSlashWindow *uint64                           `yaml:"cubicSlashWindow,omitempty"`
	JailDuration     *uint64                           `yaml:"jailDuration,omitempty"`
	SlashScaling     *stakes.Rate                      `yaml:"slashScaling,omitempty"`
	SlashRates       map[params.Infraction]stakes.Rate `yaml:"slashRates,omitempty"`
	MinCommission    *stakes.Rate                      `yaml:"minCommission,omitempty"`
	MaxCommission    *stakes.Rate                      `yaml:"maxCommission,omitempty"`
	EpochIssuance    *Amount                           `yaml:"epochIssuance,omitempty"`
	MinParticipation *stakes.Rate                      `yaml:"minParticipation,omitempty"`
	PowerReduction   *Amount                           `yaml:"powerReduction,omitempty"`
}

// Amount is a token amount written as a decimal or 0x prefixed hex string.
type Amount uint256.Int

// NewAmount converts n into an Amount.
func NewAmount(n uint64) *Amount {
	return (*Amount)(uint256.NewInt(n))
}

// Int returns a copy of the amount, nil when a is nil.
func (a *Amount) Int() *uint256.Int {
	if a == nil {
		return nil
	}
	return new(uint256.Int).Set((*uint256.Int)(a))
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	v := uint256.Int(a)
	return []byte(v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = uint256.FromHex("0x" + s[2:])
	} else {
		v, err = uint256.FromDecimal(s)
	}
	if err != nil {
		return errors.Wrapf(err, "invalid amount %q", s)
	}
	*a = Amount(*v)
	return nil
}

// Load reads and validates the genesis file at path.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read genesis")
	}
	return Parse(data)
}

// Parse decodes and validates a YAML genesis.
func Parse(data []byte) (*Genesis, error) {
	var gen Genesis
	if err := yaml.Unmarshal(data, &gen); err != nil {
		return nil, errors.Wrap(err, "decode genesis")
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return &gen, nil
}

// Encode returns the YAML form.
func (g *Genesis) Encode() ([]byte, error) {
	return yaml.Marshal(g)
}

// ID identifies the genesis by the hash of its canonical YAML form.
func (g *Genesis) ID() (thor.Bytes32, error) {
	data, err := g.Encode()
	if err != nil {
		return thor.Bytes32{}, errors.Wrap(err, "encode genesis")
	}
	return thor.Blake2b(data), nil
}

// Validate checks the genesis is self consistent.
func (g *Genesis) Validate() error {
	if _, err := g.StakerParams(); err != nil {
		return errors.Wrap(err, "params")
	}
	seen := make(map[thor.Address]bool)
	for _, acc := range g.Accounts {
		if seen[acc.Address] {
			return errors.Errorf("duplicated account %s", acc.Address)
		}
		if acc.Balance == nil {
			return errors.Errorf("account %s: balance missing", acc.Address)
		}
		seen[acc.Address] = true
	}

	if len(g.Validators) == 0 {
		return errors.New("no genesis validator")
	}
	validators := make(map[thor.Address]bool)
	keys := make(map[string]bool)
	for _, v := range g.Validators {
		if validators[v.Address] {
			return errors.Errorf("duplicated validator %s", v.Address)
		}
		if len(v.ConsensusKey) == 0 {
			return errors.Errorf("validator %s: consensus key missing", v.Address)
		}
		if keys[string(v.ConsensusKey)] {
			return errors.Errorf("validator %s: consensus key already used", v.Address)
		}
		validators[v.Address] = true
		keys[string(v.ConsensusKey)] = true
	}

	for _, b := range g.Bonds {
		if !validators[b.Validator] {
			return errors.Errorf("bond of %s: unknown validator %s", b.Delegator, b.Validator)
		}
		if b.Amount == nil || b.Amount.Int().IsZero() {
			return errors.Errorf("bond of %s: amount must be positive", b.Delegator)
		}
	}
	return nil
}

// StakerParams applies the overrides onto the default parameters.
func (g *Genesis) StakerParams() (*params.Params, error) {
	p := params.Default()
	o := g.Params

	setUint := func(dst *uint64, v *uint64) {
		if v != nil {
			*dst = *v
		}
	}
	setRate := func(dst *stakes.Rate, v *stakes.Rate) {
		if v != nil {
			*dst = *v
		}
	}
	setUint(&p.EpochLength, o.EpochLength)
	setUint(&p.PipelineOffset, o.PipelineOffset)
	setUint(&p.UnbondingLength, o.UnbondingLength)
	setUint(&p.MaxValidators, o.MaxValidators)
	setUint(&p.CubicSlashWindow, o.CubicSlashWindow)
	setUint(&p.JailDuration, o.JailDuration)
	setRate(&p.SlashScaling, o.SlashScaling)
	setRate(&p.MinCommission, o.MinCommission)
	setRate(&p.MaxCommission, o.MaxCommission)
	setRate(&p.MinParticipation, o.MinParticipation)
	if o.EpochIssuance != nil {
		p.EpochIssuance = o.EpochIssuance.Int()
	}
	if o.PowerReduction != nil {
		p.PowerReduction = o.PowerReduction.Int()
	}
	for inf, rate := range o.SlashRates {
		name := "slash-rate." + inf.String()
		updated, err := p.With(name, rate.String())
		if err != nil {
			return nil, err
		}
		p = updated
	}
	p.Governor = g.Governor

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// StakerValidators returns the validators in the form the staker takes.
func (g *Genesis) StakerValidators() []staker.GenesisValidator {
	vals := make([]staker.GenesisValidator, 0, len(g.Validators))
	for _, v := range g.Validators {
		vals = append(vals, staker.GenesisValidator{
			Address:             v.Address,
			ConsensusKey:        append([]byte(nil), v.ConsensusKey...),
			Commission:          v.Commission,
			MaxCommissionChange: v.MaxCommissionChange,
			SelfBond:            v.SelfBond.Int(),
		})
	}
	return vals
}

// StakerBonds returns the genesis delegations in the form the staker takes.
func (g *Genesis) StakerBonds() []staker.GenesisBond {
	bonds := make([]staker.GenesisBond, 0, len(g.Bonds))
	for _, b := range g.Bonds {
		bonds = append(bonds, staker.GenesisBond{
			Delegator: b.Delegator,
			Validator: b.Validator,
			Amount:    b.Amount.Int(),
		})
	}
	return bonds
}

// Apply mints the genesis balances and initializes the staker. It returns
// the validator set of epoch 0 and the matching voting power updates.
func (g *Genesis) Apply(accts *accounts.Accounts, stk *staker.Staker) (*validatorset.Set, []validatorset.Update, error) {
	p, err := g.StakerParams()
	if err != nil {
		return nil, nil, err
	}
	for _, acc := range g.Accounts {
		if err := accts.Credit(acc.Address, acc.Balance.Int()); err != nil {
			return nil, nil, errors.Wrapf(err, "mint %s", acc.Address)
		}
	}
	return stk.InitGenesis(p, g.StakerValidators(), g.StakerBonds())
}
