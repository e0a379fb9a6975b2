// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallel(t *testing.T) {
	results := make([]int, 100)
	err := Parallel(context.Background(), len(results), func(_ context.Context, i int) error {
		results[i] = i * i
		return nil
	})
	assert.NoError(t, err)
	for i, r := range results {
		assert.Equal(t, i*i, r)
	}
}

func TestParallelError(t *testing.T) {
	boom := errors.New("boom")
	var ran atomic.Int32
	err := Parallel(context.Background(), 10, func(_ context.Context, i int) error {
		ran.Add(1)
		if i == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran.Load() >= 1)
}

func TestGoes(t *testing.T) {
	var goes Goes
	var n atomic.Int32
	for i := 0; i < 8; i++ {
		goes.Go(func() { n.Add(1) })
	}
	<-goes.Done()
	goes.Wait()
	assert.Equal(t, int32(8), n.Load())
}
