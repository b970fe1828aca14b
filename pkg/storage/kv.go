// Copyright 2025 Certen Protocol
//
// Package storage implements the versioned, multi-substore key-value
// database: one main substore plus N prefixed
// substores, each a Jellyfish Merkle Tree over four logical column
// families, routed by longest-prefix match and committed under a single
// 32-byte app-hash every block.
package storage

import (
	"bytes"
	"sort"
)

// KVBackend is the narrow key-value contract pkg/kvdb's CometBFT adapter
// implements. Column families are emulated by key prefixing, since
// cometbft-db's dbm.DB has no native column-family concept.
type KVBackend interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	Delete(key []byte) error
	Iterator(start, end []byte) (Iterator, error)
}

// Iterator walks a KVBackend key range in ascending lexicographic order.
type Iterator interface {
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Close() error
}

// memKV is a sorted in-memory KVBackend, used by tests and by any
// component that needs a backing store before a durable one is wired in.
type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (m *memKV) Set(key, value []byte) error {
	m.data[string(key)] = value
	return nil
}

func (m *memKV) Delete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

func (m *memKV) Iterator(start, end []byte) (Iterator, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if inRange([]byte(k), start, end) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return &memIterator{keys: keys, data: m.data}, nil
}

func inRange(key, start, end []byte) bool {
	if start != nil && bytes.Compare(key, start) < 0 {
		return false
	}
	if end != nil && bytes.Compare(key, end) >= 0 {
		return false
	}
	return true
}

type memIterator struct {
	keys []string
	data map[string][]byte
	pos  int
}

func (it *memIterator) Valid() bool { return it.pos < len(it.keys) }
func (it *memIterator) Next()       { it.pos++ }
func (it *memIterator) Key() []byte { return []byte(it.keys[it.pos]) }
func (it *memIterator) Value() []byte {
	return it.data[it.keys[it.pos]]
}
func (it *memIterator) Close() error { return nil }

// prefixedKV scopes a KVBackend to keys under a fixed prefix, stripping
// the prefix on reads and re-adding it on writes. This is how one
// physical dbm.DB handle is split into each substore's four logical
// column families.
type prefixedKV struct {
	backend KVBackend
	prefix  []byte
}

func newPrefixedKV(backend KVBackend, prefix string) *prefixedKV {
	return &prefixedKV{backend: backend, prefix: []byte(prefix)}
}

func (p *prefixedKV) full(key []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(key))
	out = append(out, p.prefix...)
	out = append(out, key...)
	return out
}

func (p *prefixedKV) Get(key []byte) ([]byte, error) {
	return p.backend.Get(p.full(key))
}

func (p *prefixedKV) Set(key, value []byte) error {
	return p.backend.Set(p.full(key), value)
}

func (p *prefixedKV) Delete(key []byte) error {
	return p.backend.Delete(p.full(key))
}

// iterPrefix iterates all keys stored under p's prefix, with an optional
// further sub-prefix, yielding keys with the column prefix stripped.
func (p *prefixedKV) iterPrefix(subPrefix []byte) (Iterator, error) {
	start := p.full(subPrefix)
	end := prefixUpperBound(start)
	inner, err := p.backend.Iterator(start, end)
	if err != nil {
		return nil, err
	}
	return &strippedIterator{inner: inner, stripLen: len(p.prefix)}, nil
}

// prefixUpperBound returns the smallest key that sorts after every key with
// the given prefix, by incrementing the last byte that isn't already 0xff
// and truncating. A nil result means "no upper bound" (prefix is all 0xff).
func prefixUpperBound(prefix []byte) []byte {
	out := make([]byte, len(prefix))
	copy(out, prefix)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return nil
}

type strippedIterator struct {
	inner    Iterator
	stripLen int
}

func (s *strippedIterator) Valid() bool   { return s.inner.Valid() }
func (s *strippedIterator) Next()         { s.inner.Next() }
func (s *strippedIterator) Key() []byte   { return s.inner.Key()[s.stripLen:] }
func (s *strippedIterator) Value() []byte { return s.inner.Value() }
func (s *strippedIterator) Close() error  { return s.inner.Close() }
