// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import "github.com/vechain/thorpos/metrics"

var (
	metricTxCount        = metrics.LazyLoadCounterVec("runtime_tx_count", []string{"kind", "result"})
	metricEvidenceCount  = metrics.LazyLoadCounterVec("runtime_evidence_count", []string{"result"})
	metricCommitDuration = metrics.LazyLoadHistogram("runtime_commit_duration_ms", metrics.Bucket10s)
)
