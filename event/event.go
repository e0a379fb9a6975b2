// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package event defines the ledger events emitted by staking operations.
package event

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/thorpos/thor"
)

// Type is the kind of a ledger event.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeValidatorRegistered
	TypeCommissionChanged
	TypeConsensusKeyChanged
	TypeValidatorDeactivated
	TypeValidatorReactivated
	TypeBonded
	TypeUnbonded
	TypeWithdrawn
	TypeRewarded
	TypeSlashed
	TypeJailed
	TypeReleased
	TypeEvidenceRejected
	TypeParameterQueued
	TypeParameterApplied
	TypeSetPublished
	TypeRedelegated
)

var typeNames = [...]string{
	TypeUnknown:              "unknown",
	TypeValidatorRegistered:  "validator-registered",
	TypeCommissionChanged:    "commission-changed",
	TypeConsensusKeyChanged:  "consensus-key-changed",
	TypeValidatorDeactivated: "validator-deactivated",
	TypeValidatorReactivated: "validator-reactivated",
	TypeBonded:               "bonded",
	TypeUnbonded:             "unbonded",
	TypeWithdrawn:            "withdrawn",
	TypeRewarded:             "rewarded",
	TypeSlashed:              "slashed",
	TypeJailed:               "jailed",
	TypeReleased:             "released",
	TypeEvidenceRejected:     "evidence-rejected",
	TypeParameterQueued:      "parameter-queued",
	TypeParameterApplied:     "parameter-applied",
	TypeSetPublished:         "set-published",
	TypeRedelegated:          "redelegated",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// ParseType parses the dashed event type name.
func ParseType(s string) (Type, error) {
	for i, name := range typeNames {
		if i > 0 && name == s {
			return Type(i), nil
		}
	}
	return TypeUnknown, errors.Errorf("unknown event type %q", s)
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Attr is a free-form event attribute.
type Attr struct {
	Key   string
	Value string
}

// Event is a single ledger event. Zero fields are unused by the event type.
type Event struct {
	Type      Type
	Validator thor.Address
	Account   thor.Address
	Epoch     uint64
	Amount    *uint256.Int `rlp:"nil"`
	Attrs     []Attr
}

// Attr returns the value of the named attribute.
func (e *Event) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Events is a list of events in emission order.
type Events []*Event

// Filter returns the events of type t.
func (es Events) Filter(t Type) Events {
	var out Events
	for _, e := range es {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Recorder collects events of a block. Truncating to a mark drops events of
// a reverted transaction.
type Recorder struct {
	events Events
}

// Emit appends e.
func (r *Recorder) Emit(e *Event) {
	r.events = append(r.events, e)
}

// Mark returns the current position.
func (r *Recorder) Mark() int {
	return len(r.events)
}

// Truncate drops events emitted after mark.
func (r *Recorder) Truncate(mark int) {
	if mark < len(r.events) {
		r.events = r.events[:mark]
	}
}

// Events returns the collected events.
func (r *Recorder) Events() Events {
	return r.events
}

// Reset clears the recorder and returns what it held.
func (r *Recorder) Reset() Events {
	es := r.events
	r.events = nil
	return es
}
