// Copyright 2025 Certen Protocol

package ibc

import (
	"github.com/certen/ledgercore/pkg/events"
)

// MsgConnectionOpenInit is Chain A's request to begin a new connection
// against a local client, trimmed to the fields the verification hook
// needs.
type MsgConnectionOpenInit struct {
	ConnectionID         string
	ClientID             string
	CounterpartyClientID string
	CommitmentPrefix     string
	Versions             []string
	DelayPeriod          uint64
}

// OpenInit validates and applies a ConnectionOpenInit: the connection must
// not already exist, and the named local client must exist. State moves
// None -> Init. This is stateless toward the counterparty; no proof is
// verified, since nothing has happened on the counterparty chain yet.
func (r *Registry) OpenInit(bus *events.Bus, txIdx, actionIdx int, msg MsgConnectionOpenInit) (*Connection, error) {
	if _, ok := r.Client(msg.ClientID); !ok {
		return nil, ErrClientNotFound
	}
	if _, exists := r.Connection(msg.ConnectionID); exists {
		return nil, ErrWrongState
	}
	conn := &Connection{
		ID:       msg.ConnectionID,
		ClientID: msg.ClientID,
		State:    StateInit,
		Counterparty: Counterparty{
			ClientID:         msg.CounterpartyClientID,
			CommitmentPrefix: msg.CommitmentPrefix,
		},
		Versions:    msg.Versions,
		DelayPeriod: msg.DelayPeriod,
	}
	r.PutConnection(conn)
	emitStateChange(bus, txIdx, actionIdx, events.KindIbcConnectionOpenInit, conn.ID, StateInit)
	return conn, nil
}

// MsgConnectionOpenTry is Chain B's response, verifying that Chain A
// committed a connection in the Init state with a compatible version set.
type MsgConnectionOpenTry struct {
	ConnectionID                        string
	ClientID                            string
	CounterpartyConnID                  string
	CounterpartyClientID                string
	CommitmentPrefix                    string
	OfferedVersions                     []string
	DelayPeriod                         uint64
	LocalHeight                         uint64
	CounterpartyProof                   ConnectionProof
	ExpectedCounterpartyConnectionBytes []byte
}

// OpenTry verifies the counterparty's Init connection and moves the local
// connection None -> TryOpen. The offered version set is intersected with
// the local supported set (empty intersection is fatal), and the
// consensus-height guard is checked before proof verification.
func (r *Registry) OpenTry(bus *events.Bus, txIdx, actionIdx int, msg MsgConnectionOpenTry) (*Connection, error) {
	if _, exists := r.Connection(msg.ConnectionID); exists {
		return nil, ErrWrongState
	}
	client, ok := r.Client(msg.ClientID)
	if !ok {
		return nil, ErrClientNotFound
	}
	common := intersectVersions(SupportedVersions, msg.OfferedVersions)
	if len(common) == 0 {
		return nil, ErrNoCommonVersion
	}
	if msg.CounterpartyProof.ProofHeight > msg.LocalHeight {
		return nil, ErrConsensusHeightAhead
	}
	if err := verifyCommitted(client, msg.CounterpartyProof, msg.ExpectedCounterpartyConnectionBytes); err != nil {
		return nil, err
	}

	conn := &Connection{
		ID:       msg.ConnectionID,
		ClientID: msg.ClientID,
		State:    StateTryOpen,
		Counterparty: Counterparty{
			ClientID:         msg.CounterpartyClientID,
			ConnectionID:     msg.CounterpartyConnID,
			CommitmentPrefix: msg.CommitmentPrefix,
		},
		Versions:    common,
		DelayPeriod: msg.DelayPeriod,
	}
	r.PutConnection(conn)
	emitStateChange(bus, txIdx, actionIdx, events.KindIbcConnectionOpenTry, conn.ID, StateTryOpen)
	return conn, nil
}

// MsgConnectionOpenAck is Chain A's confirmation, verifying that Chain B
// committed a connection in the TryOpen state.
type MsgConnectionOpenAck struct {
	ConnectionID                        string
	CounterpartyConnID                  string
	LocalHeight                         uint64
	CounterpartyProof                   ConnectionProof
	ExpectedCounterpartyConnectionBytes []byte
}

// OpenAck verifies the counterparty's TryOpen connection and moves the
// local connection Init -> Open.
func (r *Registry) OpenAck(bus *events.Bus, txIdx, actionIdx int, msg MsgConnectionOpenAck) (*Connection, error) {
	conn, ok := r.Connection(msg.ConnectionID)
	if !ok {
		return nil, ErrConnectionNotFound
	}
	if conn.State != StateInit {
		return nil, ErrWrongState
	}
	client, ok := r.Client(conn.ClientID)
	if !ok {
		return nil, ErrClientNotFound
	}
	if msg.CounterpartyProof.ProofHeight > msg.LocalHeight {
		return nil, ErrConsensusHeightAhead
	}
	if err := verifyCommitted(client, msg.CounterpartyProof, msg.ExpectedCounterpartyConnectionBytes); err != nil {
		return nil, err
	}

	conn.State = StateOpen
	conn.Counterparty.ConnectionID = msg.CounterpartyConnID
	emitStateChange(bus, txIdx, actionIdx, events.KindIbcConnectionOpenAck, conn.ID, StateOpen)
	return conn, nil
}

// MsgConnectionOpenConfirm is Chain B's final step, verifying that Chain A
// observed the connection as Open.
type MsgConnectionOpenConfirm struct {
	ConnectionID                        string
	LocalHeight                         uint64
	CounterpartyProof                   ConnectionProof
	ExpectedCounterpartyConnectionBytes []byte
}

// OpenConfirm verifies the counterparty's Open connection and moves the
// local connection TryOpen -> Open. Like the other steps, it verifies
// only the counterparty's connection-state inclusion.
func (r *Registry) OpenConfirm(bus *events.Bus, txIdx, actionIdx int, msg MsgConnectionOpenConfirm) (*Connection, error) {
	conn, ok := r.Connection(msg.ConnectionID)
	if !ok {
		return nil, ErrConnectionNotFound
	}
	if conn.State != StateTryOpen {
		return nil, ErrWrongState
	}
	client, ok := r.Client(conn.ClientID)
	if !ok {
		return nil, ErrClientNotFound
	}
	if msg.CounterpartyProof.ProofHeight > msg.LocalHeight {
		return nil, ErrConsensusHeightAhead
	}
	if err := verifyCommitted(client, msg.CounterpartyProof, msg.ExpectedCounterpartyConnectionBytes); err != nil {
		return nil, err
	}

	conn.State = StateOpen
	emitStateChange(bus, txIdx, actionIdx, events.KindIbcConnectionOpenConfirm, conn.ID, StateOpen)
	return conn, nil
}
