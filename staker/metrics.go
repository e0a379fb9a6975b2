// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"math"

	"github.com/holiman/uint256"

	"github.com/vechain/thorpos/metrics"
)

var (
	metricSlashes          = metrics.LazyLoadCounterVec("staker_slashes_count", []string{"infraction"})
	metricBurned           = metrics.LazyLoadCounter("staker_burned_amount")
	metricRewarded         = metrics.LazyLoadCounter("staker_rewarded_amount")
	metricEpochTransitions = metrics.LazyLoadCounter("staker_epoch_transitions_count")
	metricSetSize          = metrics.LazyLoadGauge("staker_validator_set_size")
)

// metricAmount converts a token amount for a counter, saturating at MaxInt64.
func metricAmount(v *uint256.Int) int64 {
	if v == nil {
		return 0
	}
	if !v.IsUint64() || v.Uint64() > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v.Uint64())
}
