// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"encoding/binary"
	"io"
	"slices"

	"github.com/vechain/thorpos/kv"
	"github.com/vechain/thorpos/thor"
)

// Stage abstracts the change set of a state, sorted by key.
type Stage struct {
	keys  []string
	vals  [][]byte
	cache *Cache
}

func newStage(changes map[string][]byte, cache *Cache) *Stage {
	keys := make([]string, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	vals := make([][]byte, len(keys))
	for i, k := range keys {
		vals[i] = changes[k]
	}
	return &Stage{keys: keys, vals: vals, cache: cache}
}

// Len returns the number of changed keys.
func (s *Stage) Len() int {
	return len(s.keys)
}

// Hash chains the change set onto parent. Identical change sets on identical
// parents always produce identical roots.
func (s *Stage) Hash(parent thor.Bytes32) thor.Bytes32 {
	return thor.Blake2bFn(func(w io.Writer) {
		var buf [binary.MaxVarintLen64]byte
		writeField := func(b []byte) {
			n := binary.PutUvarint(buf[:], uint64(len(b)))
			w.Write(buf[:n])
			w.Write(b)
		}
		w.Write(parent[:])
		for i, k := range s.keys {
			writeField([]byte(k))
			writeField(s.vals[i])
		}
	})
}

// Commit writes all changes into putter and refreshes the committed-read cache.
// A failing putter leaves the cache ahead of the store, which the caller treats as fatal.
func (s *Stage) Commit(putter kv.Putter) error {
	for i, k := range s.keys {
		var err error
		if len(s.vals[i]) == 0 {
			err = putter.Delete([]byte(k))
		} else {
			err = putter.Put([]byte(k), s.vals[i])
		}
		if err != nil {
			return &Error{err}
		}
		if s.cache != nil {
			s.cache.set(k, s.vals[i])
		}
	}
	return nil
}
