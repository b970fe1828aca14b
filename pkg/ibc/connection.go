// Copyright 2025 Certen Protocol
//
// Package ibc implements the IBC light-client connection-handshake
// verification hook: for each handshake message,
// checking that the local connection is in the correct prior state, the
// counterparty light client is not frozen, and the counterparty
// committed the expected connection state at the proof height, verified
// against the stored client's trusted root using this tree's ICS-23 proof
// format (pkg/ics23), not a separate proof system. Every step verifies
// only that connection-state value; the counterparty's client and
// consensus states are not verified.
//
// Only the light-client verification hook lives here; full IBC channel
// and packet relay are out of scope.
package ibc

import (
	"errors"
	"sort"

	"github.com/certen/ledgercore/pkg/events"
	"github.com/certen/ledgercore/pkg/ics23"
	"github.com/certen/ledgercore/pkg/jmt"
)

// State is a connection's position in the four-state handshake.
type State int

const (
	StateNone State = iota
	StateInit
	StateTryOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateInit:
		return "Init"
	case StateTryOpen:
		return "TryOpen"
	case StateOpen:
		return "Open"
	default:
		return "Unknown"
	}
}

var (
	ErrWrongState           = errors.New("ibc: connection not in the expected prior state")
	ErrClientFrozen         = errors.New("ibc: counterparty light client is frozen")
	ErrConsensusHeightAhead = errors.New("ibc: counterparty-claimed consensus height exceeds local block height")
	ErrNoCommonVersion      = errors.New("ibc: no common connection version")
	ErrProofVerification    = errors.New("ibc: counterparty proof verification failed")
	ErrConnectionNotFound   = errors.New("ibc: connection not found")
	ErrClientNotFound       = errors.New("ibc: client state not found")
)

// ClientState is the locally stored view of a counterparty light client:
// its trusted root at the latest known consensus height, and whether
// evidence has frozen it. A frozen client fails every handshake step
// that consults it.
type ClientState struct {
	ClientID       string
	Frozen         bool
	LatestHeight   uint64
	ConsensusRoots map[uint64]jmt.Hash
}

// ConsensusRootAt returns the trusted root this client committed to at
// height, per the consensus-height guard (the claimed height must not
// exceed the local block height, checked by the caller before this
// lookup).
func (c *ClientState) ConsensusRootAt(height uint64) (jmt.Hash, bool) {
	root, ok := c.ConsensusRoots[height]
	return root, ok
}

// Counterparty names the other chain's client, connection, and commitment
// prefix.
type Counterparty struct {
	ClientID         string
	ConnectionID     string // empty until the counterparty has created its end
	CommitmentPrefix string
}

// Connection is one local connection end.
type Connection struct {
	ID           string
	ClientID     string
	State        State
	Counterparty Counterparty
	Versions     []string
	DelayPeriod  uint64
}

// Registry tracks every connection end and client state this node knows
// about, keyed by connection ID / client ID respectively. Iteration
// (ConnectionIDs/ClientIDs) is always returned sorted, never a raw map
// range, per the ordering discipline.
type Registry struct {
	connections map[string]*Connection
	clients     map[string]*ClientState
}

// NewRegistry creates an empty connection/client registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		clients:     make(map[string]*ClientState),
	}
}

func (r *Registry) PutConnection(c *Connection) { r.connections[c.ID] = c }
func (r *Registry) PutClient(c *ClientState)    { r.clients[c.ClientID] = c }

func (r *Registry) Connection(id string) (*Connection, bool) {
	c, ok := r.connections[id]
	return c, ok
}

func (r *Registry) Client(id string) (*ClientState, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// Clone returns a deep copy of the registry's connections and client
// states, used by pkg/ledger to snapshot state before executing a
// transaction so a failing action's writes can be discarded wholesale.
func (r *Registry) Clone() *Registry {
	cp := NewRegistry()
	for id, c := range r.connections {
		cCopy := *c
		cCopy.Versions = append([]string(nil), c.Versions...)
		cp.connections[id] = &cCopy
	}
	for id, c := range r.clients {
		cCopy := *c
		cCopy.ConsensusRoots = make(map[uint64]jmt.Hash, len(c.ConsensusRoots))
		for h, root := range c.ConsensusRoots {
			cCopy.ConsensusRoots[h] = root
		}
		cp.clients[id] = &cCopy
	}
	return cp
}

// ConnectionIDs returns every tracked connection ID in sorted order.
func (r *Registry) ConnectionIDs() []string {
	ids := make([]string, 0, len(r.connections))
	for id := range r.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SupportedVersions is the local node's supported connection versions, in
// priority order (most preferred first).
var SupportedVersions = []string{"1"}

// intersectVersions computes the common subset of local and offered
// versions, preserving the local priority order. Callers treat an empty
// intersection as fatal to the handshake.
func intersectVersions(local, offered []string) []string {
	offeredSet := make(map[string]bool, len(offered))
	for _, v := range offered {
		offeredSet[v] = true
	}
	var out []string
	for _, v := range local {
		if offeredSet[v] {
			out = append(out, v)
		}
	}
	return out
}

// ConnectionProof bundles the ICS-23 proof data a handshake step verifies
// against a counterparty-claimed state, plus the height it was proven at.
type ConnectionProof struct {
	ProofHeight uint64
	Proof       *ics23.CommitmentProof
}

func verifyCommitted(client *ClientState, p ConnectionProof, expectedValue []byte) error {
	if client.Frozen {
		return ErrClientFrozen
	}
	root, ok := client.ConsensusRootAt(p.ProofHeight)
	if !ok {
		return ErrClientNotFound
	}
	if len(p.Proof.Value) != len(expectedValue) {
		return ErrProofVerification
	}
	for i := range expectedValue {
		if p.Proof.Value[i] != expectedValue[i] {
			return ErrProofVerification
		}
	}
	if err := ics23.Verify(root, root, p.Proof); err != nil {
		return ErrProofVerification
	}
	return nil
}

func emitStateChange(bus *events.Bus, txIdx, actionIdx int, kind events.Kind, connID string, newState State) {
	bus.Emit(txIdx, actionIdx, kind,
		events.Attrs("connection_id", connID, "state", newState.String())...)
}
