// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"

	"github.com/vechain/thorpos/kv"
	"github.com/vechain/thorpos/stackedmap"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// State is a mutable, journaled view over committed kv data.
// Writes stay in memory until staged and committed; checkpoints allow
// reverting everything written after them.
type State struct {
	src   kv.Getter
	cache *Cache
	sm    *stackedmap.StackedMap[string, []byte]
}

// New create state object reading committed data from src.
// cache is optional and must only be shared by states reading the latest commit.
func New(src kv.Getter, cache *Cache) *State {
	s := &State{src: src, cache: cache}
	s.sm = stackedmap.New[string, []byte](s.committed)
	return s
}

// committed implements stackedmap.MapGetter.
func (s *State) committed(key string) ([]byte, bool, error) {
	if s.cache != nil {
		if val, ok := s.cache.get(key); ok {
			return val, len(val) > 0, nil
		}
	}
	val, err := kv.GetOptional(s.src, []byte(key))
	if err != nil {
		return nil, false, &Error{err}
	}
	if s.cache != nil {
		s.cache.set(key, val)
	}
	return val, len(val) > 0, nil
}

// Get returns the value of key, or nil if absent.
// The returned slice must not be modified.
func (s *State) Get(key []byte) ([]byte, error) {
	val, _, err := s.sm.Get(string(key))
	return val, err
}

// Has returns whether key holds a non-empty value.
func (s *State) Has(key []byte) (bool, error) {
	_, ok, err := s.sm.Get(string(key))
	return ok, err
}

// Set sets value for key. An empty value deletes the key.
func (s *State) Set(key, value []byte) {
	s.sm.Put(string(key), value)
}

// Delete deletes key.
func (s *State) Delete(key []byte) {
	s.sm.Put(string(key), nil)
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Stage collects the final value of every key written since New.
func (s *State) Stage() *Stage {
	changes := make(map[string][]byte)
	s.sm.Journal(func(k string, v []byte) bool {
		changes[k] = v
		return true
	})
	return newStage(changes, s.cache)
}
