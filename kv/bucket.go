// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import (
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Bucket provides logical bucket for kv store. Keys are prefixed with the bucket name.
type Bucket string

// Key returns the full key of key inside the bucket.
func (b Bucket) Key(key []byte) []byte {
	full := make([]byte, 0, len(b)+len(key))
	return append(append(full, b...), key...)
}

// NewGetter creates a bucket getter from the source getter.
func (b Bucket) NewGetter(src Getter) Getter {
	return &struct {
		GetFunc
		HasFunc
		IsNotFoundFunc
	}{
		func(key []byte) ([]byte, error) { return src.Get(b.Key(key)) },
		func(key []byte) (bool, error) { return src.Has(b.Key(key)) },
		src.IsNotFound,
	}
}

// NewPutter creates a bucket putter from the source putter.
func (b Bucket) NewPutter(src Putter) Putter {
	return &struct {
		PutFunc
		DeleteFunc
	}{
		func(key, val []byte) error { return src.Put(b.Key(key), val) },
		func(key []byte) error { return src.Delete(b.Key(key)) },
	}
}

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src Store) Store {
	return &bucketStore{Getter: b.NewGetter(src), Putter: b.NewPutter(src), src: src, b: b}
}

type bucketStore struct {
	Getter
	Putter
	src Store
	b   Bucket
}

func (s *bucketStore) Snapshot() Snapshot {
	snap := s.src.Snapshot()
	return &struct {
		Getter
		releaser
	}{s.b.NewGetter(snap), snap}
}

func (s *bucketStore) Bulk() Bulk {
	bulk := s.src.Bulk()
	return &struct {
		Putter
		writer
	}{s.b.NewPutter(bulk), bulk}
}

func (s *bucketStore) Iterate(r Range) Iterator {
	r.Start = s.b.Key(r.Start)
	if len(r.Limit) == 0 {
		r.Limit = util.BytesPrefix([]byte(s.b)).Limit
	} else {
		r.Limit = s.b.Key(r.Limit)
	}
	return &bucketIter{s.src.Iterate(r), len(s.b)}
}

// Close is a no-op, the source store is owned by the caller.
func (s *bucketStore) Close() error { return nil }

type releaser interface{ Release() }

type writer interface{ Write() error }

type bucketIter struct {
	Iterator
	n int
}

// Key strips the bucket prefix.
func (it *bucketIter) Key() []byte {
	return it.Iterator.Key()[it.n:]
}
