// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package storage lays typed, rlp encoded records out in the state key space.
package storage

import (
	"github.com/vechain/thorpos/state"
)

// Context scopes every record of a service under one key prefix.
type Context struct {
	state  *state.State
	prefix string
}

// NewContext returns a context whose keys all start with prefix.
func NewContext(state *state.State, prefix string) *Context {
	return &Context{
		state:  state,
		prefix: prefix,
	}
}

func (c *Context) State() *state.State {
	return c.state
}

// Sub returns a context nested under this one.
func (c *Context) Sub(prefix string) *Context {
	return NewContext(c.state, c.prefix+prefix+"/")
}

// key builds prefix | tag | 0x00 | k. Tags never contain 0x00, so the layout is prefix free.
func (c *Context) key(tag string, k []byte) []byte {
	buf := make([]byte, 0, len(c.prefix)+len(tag)+1+len(k))
	buf = append(buf, c.prefix...)
	buf = append(buf, tag...)
	buf = append(buf, 0)
	return append(buf, k...)
}
