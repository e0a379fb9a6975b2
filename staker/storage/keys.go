// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import "encoding/binary"

// Uint64 is a big-endian encoded key, so keys sort numerically.
type Uint64 uint64

func (u Uint64) Bytes() []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(u))
}

// Composite is a key made of several fixed width keys.
type Composite []byte

func (c Composite) Bytes() []byte {
	return c
}

// Join concatenates keys. Only fixed width keys may be joined.
func Join(keys ...Key) Composite {
	var out []byte
	for _, k := range keys {
		out = append(out, k.Bytes()...)
	}
	return out
}
