// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/staker/stakes"
	"github.com/vechain/thorpos/thor"
)

// Kind identifies the staking operation carried by a transaction.
type Kind uint8

const (
	KindRegisterValidator Kind = iota + 1
	KindBond
	KindUnbond
	KindWithdraw
	KindChangeCommission
	KindChangeConsensusKey
	KindDeactivateValidator
	KindReactivateValidator
	KindSetParameter
	KindRedelegate
)

var kindNames = map[Kind]string{
	KindRegisterValidator:   "register-validator",
	KindBond:                "bond",
	KindUnbond:              "unbond",
	KindWithdraw:            "withdraw",
	KindChangeCommission:    "change-commission",
	KindChangeConsensusKey:  "change-consensus-key",
	KindDeactivateValidator: "deactivate-validator",
	KindReactivateValidator: "reactivate-validator",
	KindSetParameter:        "set-parameter",
	KindRedelegate:          "redelegate",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, errors.Errorf("unknown tx kind %q", s)
}

// Payload is the operation specific part of a transaction.
type Payload interface {
	Kind() Kind
}

type RegisterValidator struct {
	ConsensusKey        []byte
	Commission          stakes.Rate
	MaxCommissionChange stakes.Rate
}

type Bond struct {
	Validator thor.Address
	Amount    *uint256.Int
}

type Unbond struct {
	Validator thor.Address
	Amount    *uint256.Int
}

type Withdraw struct {
	Validator thor.Address
}

type ChangeCommission struct {
	Rate stakes.Rate
}

type ChangeConsensusKey struct {
	Key []byte
}

type DeactivateValidator struct{}

type ReactivateValidator struct{}

type SetParameter struct {
	Name  string
	Value string
}

// Redelegate moves bonded stake from one validator to another without
// passing through the unbonding period.
type Redelegate struct {
	From   thor.Address
	To     thor.Address
	Amount *uint256.Int
}

func (*RegisterValidator) Kind() Kind   { return KindRegisterValidator }
func (*Bond) Kind() Kind                { return KindBond }
func (*Unbond) Kind() Kind              { return KindUnbond }
func (*Withdraw) Kind() Kind            { return KindWithdraw }
func (*ChangeCommission) Kind() Kind    { return KindChangeCommission }
func (*ChangeConsensusKey) Kind() Kind  { return KindChangeConsensusKey }
func (*DeactivateValidator) Kind() Kind { return KindDeactivateValidator }
func (*ReactivateValidator) Kind() Kind { return KindReactivateValidator }
func (*SetParameter) Kind() Kind        { return KindSetParameter }
func (*Redelegate) Kind() Kind          { return KindRedelegate }

func newPayload(kind Kind) (Payload, error) {
	switch kind {
	case KindRegisterValidator:
		return &RegisterValidator{}, nil
	case KindBond:
		return &Bond{}, nil
	case KindUnbond:
		return &Unbond{}, nil
	case KindWithdraw:
		return &Withdraw{}, nil
	case KindChangeCommission:
		return &ChangeCommission{}, nil
	case KindChangeConsensusKey:
		return &ChangeConsensusKey{}, nil
	case KindDeactivateValidator:
		return &DeactivateValidator{}, nil
	case KindReactivateValidator:
		return &ReactivateValidator{}, nil
	case KindSetParameter:
		return &SetParameter{}, nil
	case KindRedelegate:
		return &Redelegate{}, nil
	}
	return nil, errors.Errorf("unknown transaction kind %d", kind)
}

func decodePayload(kind Kind, data []byte) (Payload, error) {
	p, err := newPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := rlp.DecodeBytes(data, p); err != nil {
		return nil, errors.Wrapf(err, "decode %s payload", kind)
	}
	return p, nil
}
