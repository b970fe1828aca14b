// Copyright 2025 Certen Protocol

package custody

import (
	"crypto/ed25519"
	"sync"

	"github.com/google/uuid"
)

// Registry tracks every signing ceremony a coordinator has started,
// indexed by RequestIndex: a failed ceremony may be retried with a new
// ceremony-index against the same request-index, so the lookup is
// two-level, request-index -> ceremony-index.
type Registry struct {
	mu         sync.RWMutex
	byRequest  map[RequestIndex][]*Ceremony
	byCeremony map[uuid.UUID]*Ceremony
}

// NewRegistry creates an empty ceremony registry.
func NewRegistry() *Registry {
	return &Registry{
		byRequest:  make(map[RequestIndex][]*Ceremony),
		byCeremony: make(map[uuid.UUID]*Ceremony),
	}
}

// Start creates and registers a new ceremony for request, keyed by
// requestIndex. A prior Failed ceremony for the same request index is
// left in place (retained for audit) alongside the new attempt.
func (r *Registry) Start(requestIndex RequestIndex, request SigningRequest, threshold int, verifyKeys map[Identifier]ed25519.PublicKey) *Ceremony {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := NewCeremony(requestIndex, request, threshold, verifyKeys)
	r.byRequest[requestIndex] = append(r.byRequest[requestIndex], c)
	r.byCeremony[c.CeremonyIndex] = c
	return c
}

// Get returns a ceremony by its ceremony index.
func (r *Registry) Get(ceremonyIndex uuid.UUID) (*Ceremony, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byCeremony[ceremonyIndex]
	return c, ok
}

// Latest returns the most recently started ceremony for a request index,
// if any: the one a coordinator should drive or retry next.
func (r *Registry) Latest(requestIndex RequestIndex) (*Ceremony, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempts := r.byRequest[requestIndex]
	if len(attempts) == 0 {
		return nil, false
	}
	return attempts[len(attempts)-1], true
}

// Attempts returns every ceremony attempted for a request index, oldest
// first.
func (r *Registry) Attempts(requestIndex RequestIndex) []*Ceremony {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Ceremony(nil), r.byRequest[requestIndex]...)
}
