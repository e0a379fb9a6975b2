// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"slices"

	"github.com/qianbin/directcache"

	"github.com/vechain/thorpos/cache"
)

// Cache caches committed values, including known absences.
type Cache struct {
	entries *directcache.Cache
	stats   cache.Stats
}

// NewCache creates a cache holding up to sizeMB megabytes.
func NewCache(sizeMB int) *Cache {
	return &Cache{entries: directcache.New(sizeMB * 1024 * 1024)}
}

// Stats returns the hit/miss stats.
func (c *Cache) Stats() *cache.Stats {
	return &c.stats
}

// get returns the cached value of key, nil for a cached absence.
func (c *Cache) get(key string) ([]byte, bool) {
	var val []byte
	found := c.entries.AdvGet([]byte(key), func(entry []byte) {
		// first byte flags presence
		if len(entry) > 1 && entry[0] == 1 {
			val = slices.Clone(entry[1:])
		}
	}, false)
	if found {
		c.stats.Hit()
	} else {
		c.stats.Miss()
	}
	return val, found
}

func (c *Cache) set(key string, val []byte) {
	_ = c.entries.AdvSet([]byte(key), len(val)+1, func(entry []byte) {
		if len(val) > 0 {
			entry[0] = 1
			copy(entry[1:], val)
		} else {
			entry[0] = 0
		}
	})
}
