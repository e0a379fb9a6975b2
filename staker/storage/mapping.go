// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package storage

import (
	"reflect"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

type Key interface {
	Bytes() []byte
}

// Mapping is a typed key/value table inside a context.
type Mapping[K Key, V any] struct {
	context *Context
	tag     string
}

func NewMapping[K Key, V any](context *Context, tag string) *Mapping[K, V] {
	return &Mapping[K, V]{context: context, tag: tag}
}

// Get returns the value of key. Absent values decode as the zero value,
// or a freshly allocated zero value when V is a pointer.
func (m *Mapping[K, V]) Get(key K) (value V, err error) {
	raw, err := m.context.state.Get(m.context.key(m.tag, key.Bytes()))
	if err != nil {
		return value, err
	}
	return decode[V](raw)
}

// Exists returns whether key holds a value.
func (m *Mapping[K, V]) Exists(key K) (bool, error) {
	return m.context.state.Has(m.context.key(m.tag, key.Bytes()))
}

// Set stores value under key. A nil pointer value deletes the key.
func (m *Mapping[K, V]) Set(key K, value V) error {
	k := m.context.key(m.tag, key.Bytes())
	if isNil(value) {
		m.context.state.Delete(k)
		return nil
	}
	enc, err := rlp.EncodeToBytes(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", m.tag)
	}
	m.context.state.Set(k, enc)
	return nil
}

// Delete removes key.
func (m *Mapping[K, V]) Delete(key K) {
	m.context.state.Delete(m.context.key(m.tag, key.Bytes()))
}

// Raw is a single typed value inside a context.
type Raw[V any] struct {
	context *Context
	tag     string
}

func NewRaw[V any](context *Context, tag string) *Raw[V] {
	return &Raw[V]{context: context, tag: tag}
}

func (r *Raw[V]) Get() (value V, err error) {
	raw, err := r.context.state.Get(r.context.key(r.tag, nil))
	if err != nil {
		return value, err
	}
	return decode[V](raw)
}

func (r *Raw[V]) Set(value V) error {
	k := r.context.key(r.tag, nil)
	if isNil(value) {
		r.context.state.Delete(k)
		return nil
	}
	enc, err := rlp.EncodeToBytes(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", r.tag)
	}
	r.context.state.Set(k, enc)
	return nil
}

func decode[V any](raw []byte) (value V, err error) {
	if t := reflect.TypeOf(value); t != nil && t.Kind() == reflect.Ptr {
		value = reflect.New(t.Elem()).Interface().(V)
	}
	if len(raw) == 0 {
		return value, nil
	}
	if t := reflect.TypeOf(value); t != nil && t.Kind() == reflect.Ptr {
		err = rlp.DecodeBytes(raw, value)
	} else {
		err = rlp.DecodeBytes(raw, &value)
	}
	if err != nil {
		return value, errors.Wrap(err, "decode record")
	}
	return value, nil
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Ptr, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
