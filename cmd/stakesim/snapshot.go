// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"github.com/holiman/uint256"

	"github.com/vechain/thorpos/eventdb"
	"github.com/vechain/thorpos/runtime"
	"github.com/vechain/thorpos/staker/params"
	"github.com/vechain/thorpos/staker/slashing"
	"github.com/vechain/thorpos/staker/validation"
	"github.com/vechain/thorpos/staker/validatorset"
	"github.com/vechain/thorpos/thor"
)

// stateSnapshot is the printable staking state at one height.
type stateSnapshot struct {
	Height        uint64
	Root          thor.Bytes32
	Epoch         uint64
	TotalSupply   string
	TotalLocked   string
	Params        *params.Params
	PendingParams []params.Update
	ValidatorSet  *validatorset.Set
	Validators    []*validatorSummary
	SlashRecords  []*slashing.Record
	RecentEvents  []*eventdb.Entry
}

type validatorSummary struct {
	Address     thor.Address
	Status      string
	Commission  string
	Stake       string
	JailedUntil uint64
	Deactivated bool
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func takeSnapshot(rd *runtime.Reader) (*stateSnapshot, error) {
	epoch, err := rd.Epoch()
	if err != nil {
		return nil, err
	}
	snap := &stateSnapshot{
		Height: rd.Height(),
		Root:   rd.Root(),
		Epoch:  epoch,
	}
	supply, err := rd.TotalSupply()
	if err != nil {
		return nil, err
	}
	locked, err := rd.TotalLocked()
	if err != nil {
		return nil, err
	}
	snap.TotalSupply, snap.TotalLocked = dec(supply), dec(locked)

	if snap.Params, err = rd.Params(); err != nil {
		return nil, err
	}
	if snap.PendingParams, err = rd.PendingParams(); err != nil {
		return nil, err
	}
	if snap.ValidatorSet, err = rd.LatestValidatorSet(); err != nil {
		return nil, err
	}
	if snap.SlashRecords, err = rd.SlashRecords(epoch); err != nil {
		return nil, err
	}

	addrs, err := rd.Validators()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		v, err := rd.Validator(addr)
		if err != nil {
			return nil, err
		}
		stake, err := rd.ValidatorStake(addr, epoch)
		if err != nil {
			return nil, err
		}
		snap.Validators = append(snap.Validators, &validatorSummary{
			Address:     addr,
			Status:      validation.StatusName(v.Status()),
			Commission:  v.CommissionAt(epoch).String(),
			Stake:       dec(stake),
			JailedUntil: v.JailedUntil(),
			Deactivated: v.IsDeactivated(),
		})
	}
	return snap, nil
}
