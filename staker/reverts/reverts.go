// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reverts defines the errors that abort a single operation.
// Any other error reaching the block runtime is fatal.
package reverts

import (
	"errors"
	"fmt"
)

// Kind classifies a revert.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindInsufficientBond
	KindInvalidValidator
	KindZeroAmount
	KindEvidenceTooOld
	KindParameterOutOfRange
)

var kindNames = [...]string{
	KindUnknown:             "unknown",
	KindValidation:          "validation-error",
	KindInsufficientBond:    "insufficient-bond",
	KindInvalidValidator:    "invalid-validator",
	KindZeroAmount:          "zero-amount",
	KindEvidenceTooOld:      "evidence-too-old",
	KindParameterOutOfRange: "parameter-out-of-range",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Code is the numeric result code of the kind, 0 being reserved for success.
func (k Kind) Code() uint32 {
	return uint32(k)
}

type ErrRevert struct {
	kind    Kind
	message string
}

func New(kind Kind, format string, args ...any) *ErrRevert {
	return &ErrRevert{
		kind:    kind,
		message: fmt.Sprintf(format, args...),
	}
}

func (e *ErrRevert) Error() string {
	return e.kind.String() + ": " + e.message
}

func (e *ErrRevert) Kind() Kind {
	return e.kind
}

func (e *ErrRevert) Reason() string {
	return e.message
}

// Is reports kind equality, so errors.Is(err, reverts.ErrZeroAmount) matches any zero amount revert.
func (e *ErrRevert) Is(target error) bool {
	var t *ErrRevert
	if errors.As(target, &t) {
		return t.kind == e.kind && t.message == ""
	}
	return false
}

// sentinels for errors.Is
var (
	ErrValidation          = &ErrRevert{kind: KindValidation}
	ErrInsufficientBond    = &ErrRevert{kind: KindInsufficientBond}
	ErrInvalidValidator    = &ErrRevert{kind: KindInvalidValidator}
	ErrZeroAmount          = &ErrRevert{kind: KindZeroAmount}
	ErrEvidenceTooOld      = &ErrRevert{kind: KindEvidenceTooOld}
	ErrParameterOutOfRange = &ErrRevert{kind: KindParameterOutOfRange}
)

func Validation(format string, args ...any) *ErrRevert {
	return New(KindValidation, format, args...)
}

func InsufficientBond(format string, args ...any) *ErrRevert {
	return New(KindInsufficientBond, format, args...)
}

func InvalidValidator(format string, args ...any) *ErrRevert {
	return New(KindInvalidValidator, format, args...)
}

func ZeroAmount(format string, args ...any) *ErrRevert {
	return New(KindZeroAmount, format, args...)
}

func EvidenceTooOld(format string, args ...any) *ErrRevert {
	return New(KindEvidenceTooOld, format, args...)
}

func ParameterOutOfRange(format string, args ...any) *ErrRevert {
	return New(KindParameterOutOfRange, format, args...)
}

// IsRevertErr reports whether err, or anything it wraps, is a revert.
func IsRevertErr(err error) bool {
	var ve *ErrRevert
	return errors.As(err, &ve)
}

// KindOf returns the kind of the revert wrapped in err, KindUnknown if there is none.
func KindOf(err error) Kind {
	var ve *ErrRevert
	if errors.As(err, &ve) {
		return ve.kind
	}
	return KindUnknown
}
