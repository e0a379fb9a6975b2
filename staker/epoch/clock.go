// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package epoch maps block heights to epochs.
package epoch

import "github.com/vechain/thorpos/staker/params"

// Clock derives epochs from heights. Epochs are never stored against heights,
// they are always recomputed.
type Clock struct {
	length          uint64
	pipelineOffset  uint64
	unbondingLength uint64
}

// NewClock creates a clock from the active parameters.
func NewClock(p *params.Params) Clock {
	return Clock{
		length:          p.EpochLength,
		pipelineOffset:  p.PipelineOffset,
		unbondingLength: p.UnbondingLength,
	}
}

// Length returns the number of blocks per epoch.
func (c Clock) Length() uint64 {
	return c.length
}

// EpochOf returns the epoch of height.
func (c Clock) EpochOf(height uint64) uint64 {
	return height / c.length
}

// FirstHeight returns the first height of epoch e.
func (c Clock) FirstHeight(e uint64) uint64 {
	return e * c.length
}

// IsLastHeight reports whether height closes its epoch, the block whose
// end-block hook runs the transition into the next epoch.
func (c Clock) IsLastHeight(height uint64) bool {
	return (height+1)%c.length == 0
}

// PipelineEpoch returns the epoch at which a bond made in current takes effect.
func (c Clock) PipelineEpoch(current uint64) uint64 {
	return current + c.pipelineOffset
}

// UnbondingEpoch returns the epoch at which an unbond made in current becomes withdrawable.
func (c Clock) UnbondingEpoch(current uint64) uint64 {
	return current + c.unbondingLength
}
