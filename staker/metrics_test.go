// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staker

import (
	"math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestMetricAmount(t *testing.T) {
	tests := []struct {
		name string
		v    *uint256.Int
		want int64
	}{
		{"nil", nil, 0},
		{"small", uint256.NewInt(42), 42},
		{"max int64", uint256.NewInt(math.MaxInt64), math.MaxInt64},
		{"above int64", uint256.NewInt(math.MaxInt64 + 1), math.MaxInt64},
		{"above uint64", new(uint256.Int).Lsh(uint256.NewInt(1), 100), math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, metricAmount(tt.v))
		})
	}
}
