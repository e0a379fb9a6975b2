// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validation

import (
	"bytes"
	"io"
	"slices"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vechain/thorpos/staker/stakes"
)

type Status = uint8

const (
	StatusUnknown  = Status(iota) // 0 -> default value
	StatusInactive                // registered, outside the validator set
	StatusActive                  // member of the current validator set
	StatusJailed                  // slashed, excluded until JailedUntil
)

// StatusName returns the printable name of s.
func StatusName(s Status) string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusActive:
		return "active"
	case StatusJailed:
		return "jailed"
	}
	return "unknown"
}

// CommissionChange is a commission rate waiting for its effective epoch.
type CommissionChange struct {
	Rate  stakes.Rate
	Epoch uint64
}

type Validator struct {
	body *body
}

type body struct {
	ConsensusKey        []byte
	PendingKey          []byte // replaces ConsensusKey at the next set derivation
	Commission          stakes.Rate
	PendingCommission   *CommissionChange `rlp:"nil"`
	MaxCommissionChange stakes.Rate
	Status              Status
	JailedUntil         uint64 // first epoch the validator may leave jail
	Deactivated         bool   // operator requested to leave the set
	RegisteredEpoch     uint64
}

var (
	_ rlp.Encoder = (*Validator)(nil)
	_ rlp.Decoder = (*Validator)(nil)
)

func newValidator(key []byte, commission, maxChange stakes.Rate, epoch uint64) *Validator {
	return &Validator{&body{
		ConsensusKey:        slices.Clone(key),
		Commission:          commission,
		MaxCommissionChange: maxChange,
		Status:              StatusInactive,
		RegisteredEpoch:     epoch,
	}}
}

func (v *Validator) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, v.body)
}

func (v *Validator) DecodeRLP(s *rlp.Stream) error {
	var b body
	if err := s.Decode(&b); err != nil {
		return err
	}
	v.body = &b
	return nil
}

// IsEmpty reports whether the validator was never registered.
func (v *Validator) IsEmpty() bool {
	return v.body == nil || v.body.Status == StatusUnknown
}

func (v *Validator) ConsensusKey() []byte {
	return slices.Clone(v.body.ConsensusKey)
}

func (v *Validator) PendingKey() []byte {
	return slices.Clone(v.body.PendingKey)
}

func (v *Validator) Status() Status {
	return v.body.Status
}

func (v *Validator) JailedUntil() uint64 {
	return v.body.JailedUntil
}

func (v *Validator) IsJailed() bool {
	return v.body.Status == StatusJailed
}

func (v *Validator) IsDeactivated() bool {
	return v.body.Deactivated
}

func (v *Validator) RegisteredEpoch() uint64 {
	return v.body.RegisteredEpoch
}

func (v *Validator) MaxCommissionChange() stakes.Rate {
	return v.body.MaxCommissionChange
}

func (v *Validator) PendingCommission() *CommissionChange {
	if v.body.PendingCommission == nil {
		return nil
	}
	cpy := *v.body.PendingCommission
	return &cpy
}

// CommissionAt returns the commission rate in effect at epoch.
func (v *Validator) CommissionAt(epoch uint64) stakes.Rate {
	if p := v.body.PendingCommission; p != nil && epoch >= p.Epoch {
		return p.Rate
	}
	return v.body.Commission
}

// IsCandidate reports whether the validator may be selected into a validator set.
func (v *Validator) IsCandidate() bool {
	return v.body.Status != StatusJailed && !v.body.Deactivated
}

// jail moves the validator into jail until the given epoch, never shortening an existing term.
func (v *Validator) jail(until uint64) {
	v.body.Status = StatusJailed
	v.body.JailedUntil = max(v.body.JailedUntil, until)
}

// release leaves jail once epoch reaches JailedUntil. The validator becomes
// inactive; the next set derivation decides whether it is active again.
func (v *Validator) release(epoch uint64) bool {
	if v.body.Status != StatusJailed || epoch < v.body.JailedUntil {
		return false
	}
	v.body.Status = StatusInactive
	v.body.JailedUntil = 0
	return true
}

// setActive records the outcome of a set derivation. Jailed validators are never selected.
func (v *Validator) setActive(active bool) bool {
	if v.body.Status == StatusJailed {
		return false
	}
	next := StatusInactive
	if active {
		next = StatusActive
	}
	changed := v.body.Status != next
	v.body.Status = next
	return changed
}

// promoteCommission makes a pending commission current once its epoch is reached.
func (v *Validator) promoteCommission(epoch uint64) bool {
	p := v.body.PendingCommission
	if p == nil || epoch < p.Epoch {
		return false
	}
	v.body.Commission = p.Rate
	v.body.PendingCommission = nil
	return true
}

// promoteKey switches to the pending consensus key, returning the retired key.
func (v *Validator) promoteKey() ([]byte, bool) {
	if len(v.body.PendingKey) == 0 || bytes.Equal(v.body.PendingKey, v.body.ConsensusKey) {
		v.body.PendingKey = nil
		return nil, false
	}
	old := v.body.ConsensusKey
	v.body.ConsensusKey = v.body.PendingKey
	v.body.PendingKey = nil
	return old, true
}
