// Copyright 2025 Certen Protocol

package ibc

import (
	"context"
	"testing"

	"github.com/certen/ledgercore/pkg/events"
	"github.com/certen/ledgercore/pkg/ics23"
	"github.com/certen/ledgercore/pkg/jmt"
)

type memStore struct {
	nodes map[string]*jmt.Node
}

func newMemStore() *memStore { return &memStore{nodes: make(map[string]*jmt.Node)} }

func (m *memStore) GetNode(_ context.Context, key jmt.NodeKey) (*jmt.Node, error) {
	n, ok := m.nodes[string(key.Encode())]
	if !ok {
		return nil, jmt.ErrNotFound
	}
	return n, nil
}

func (m *memStore) apply(writes []jmt.Write) {
	for _, w := range writes {
		m.nodes[string(w.Key.Encode())] = w.Node
	}
}

// committedProof commits key/value into a fresh single-substore JMT and
// returns the root plus an ICS-23 proof of that key's membership, so
// handshake tests exercise real proof verification rather than a stub.
func committedProof(t *testing.T, key string, value []byte) (jmt.Hash, *ics23.CommitmentProof) {
	t.Helper()
	ctx := context.Background()
	store := newMemStore()
	tree := jmt.New(store)
	root, writes, err := tree.Put(ctx, jmt.EmptyVersion, 0, []jmt.KeyValue{
		{Key: []byte(key), ValueHash: jmt.HashValue(value)},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	store.apply(writes)
	_, inner, err := tree.Get(ctx, 0, []byte(key))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return root, &ics23.CommitmentProof{Key: []byte(key), Value: value, Inner: inner}
}

func TestOpenInitRequiresExistingClient(t *testing.T) {
	r := NewRegistry()
	bus := events.NewBus()
	_, err := r.OpenInit(bus, 0, 0, MsgConnectionOpenInit{ConnectionID: "conn-0", ClientID: "07-tendermint-0"})
	if err != ErrClientNotFound {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestOpenInitTransitionsNoneToInit(t *testing.T) {
	r := NewRegistry()
	r.PutClient(&ClientState{ClientID: "07-tendermint-0", ConsensusRoots: map[uint64]jmt.Hash{}})
	bus := events.NewBus()

	conn, err := r.OpenInit(bus, 0, 0, MsgConnectionOpenInit{
		ConnectionID:         "conn-0",
		ClientID:             "07-tendermint-0",
		CounterpartyClientID: "07-tendermint-7",
		Versions:             SupportedVersions,
	})
	if err != nil {
		t.Fatalf("OpenInit: %v", err)
	}
	if conn.State != StateInit {
		t.Fatalf("expected Init, got %s", conn.State)
	}
	if bus.Len() != 1 {
		t.Fatalf("expected 1 event, got %d", bus.Len())
	}

	if _, err := r.OpenInit(bus, 0, 0, MsgConnectionOpenInit{ConnectionID: "conn-0", ClientID: "07-tendermint-0"}); err != ErrWrongState {
		t.Fatalf("expected ErrWrongState on duplicate init, got %v", err)
	}
}

func TestOpenTryRejectsEmptyVersionIntersection(t *testing.T) {
	r := NewRegistry()
	root, proof := committedProof(t, "connA", []byte("connA-bytes"))
	r.PutClient(&ClientState{ClientID: "07-tendermint-0", ConsensusRoots: map[uint64]jmt.Hash{0: root}})
	bus := events.NewBus()

	_, err := r.OpenTry(bus, 0, 0, MsgConnectionOpenTry{
		ConnectionID:                        "conn-1",
		ClientID:                            "07-tendermint-0",
		OfferedVersions:                     []string{"99"},
		LocalHeight:                         10,
		CounterpartyProof:                   ConnectionProof{ProofHeight: 0, Proof: proof},
		ExpectedCounterpartyConnectionBytes: []byte("connA-bytes"),
	})
	if err != ErrNoCommonVersion {
		t.Fatalf("expected ErrNoCommonVersion, got %v", err)
	}
}

func TestOpenTryRejectsConsensusHeightAheadOfLocal(t *testing.T) {
	r := NewRegistry()
	root, proof := committedProof(t, "connA", []byte("connA-bytes"))
	r.PutClient(&ClientState{ClientID: "07-tendermint-0", ConsensusRoots: map[uint64]jmt.Hash{100: root}})
	bus := events.NewBus()

	_, err := r.OpenTry(bus, 0, 0, MsgConnectionOpenTry{
		ConnectionID:                        "conn-1",
		ClientID:                            "07-tendermint-0",
		OfferedVersions:                     SupportedVersions,
		LocalHeight:                         10,
		CounterpartyProof:                   ConnectionProof{ProofHeight: 100, Proof: proof},
		ExpectedCounterpartyConnectionBytes: []byte("connA-bytes"),
	})
	if err != ErrConsensusHeightAhead {
		t.Fatalf("expected ErrConsensusHeightAhead, got %v", err)
	}
}

func TestOpenTryRejectsFrozenClient(t *testing.T) {
	r := NewRegistry()
	root, proof := committedProof(t, "connA", []byte("connA-bytes"))
	r.PutClient(&ClientState{ClientID: "07-tendermint-0", Frozen: true, ConsensusRoots: map[uint64]jmt.Hash{5: root}})
	bus := events.NewBus()

	_, err := r.OpenTry(bus, 0, 0, MsgConnectionOpenTry{
		ConnectionID:                        "conn-1",
		ClientID:                            "07-tendermint-0",
		OfferedVersions:                     SupportedVersions,
		LocalHeight:                         10,
		CounterpartyProof:                   ConnectionProof{ProofHeight: 5, Proof: proof},
		ExpectedCounterpartyConnectionBytes: []byte("connA-bytes"),
	})
	if err != ErrClientFrozen {
		t.Fatalf("expected ErrClientFrozen, got %v", err)
	}
}

func TestOpenTryRejectsTamperedProof(t *testing.T) {
	r := NewRegistry()
	root, proof := committedProof(t, "connA", []byte("connA-bytes"))
	r.PutClient(&ClientState{ClientID: "07-tendermint-0", ConsensusRoots: map[uint64]jmt.Hash{1: root}})
	bus := events.NewBus()

	_, err := r.OpenTry(bus, 0, 0, MsgConnectionOpenTry{
		ConnectionID:                        "conn-1",
		ClientID:                            "07-tendermint-0",
		OfferedVersions:                     SupportedVersions,
		LocalHeight:                         10,
		CounterpartyProof:                   ConnectionProof{ProofHeight: 1, Proof: proof},
		ExpectedCounterpartyConnectionBytes: []byte("not-the-committed-bytes"),
	})
	if err != ErrProofVerification {
		t.Fatalf("expected ErrProofVerification, got %v", err)
	}
}

// TestFullHandshake drives the four-message handshake state machine end to
// end, with each proof-verifying step checked against a real JMT-backed
// ICS-23 proof (built via committedProof) rather than a stub.
func TestFullHandshake(t *testing.T) {
	r := NewRegistry()
	initRoot, initProof := committedProof(t, "connA", []byte("connA-init-bytes"))
	r.PutClient(&ClientState{ClientID: "client-a", ConsensusRoots: map[uint64]jmt.Hash{1: initRoot}})
	bus := events.NewBus()

	connA, err := r.OpenInit(bus, 0, 0, MsgConnectionOpenInit{
		ConnectionID:         "connA",
		ClientID:             "client-a",
		CounterpartyClientID: "client-b",
		Versions:             SupportedVersions,
	})
	if err != nil {
		t.Fatalf("OpenInit: %v", err)
	}
	if connA.State != StateInit {
		t.Fatalf("expected Init")
	}

	// Chain B's view: verifying A's Init connection.
	_, err = r.OpenTry(bus, 0, 0, MsgConnectionOpenTry{
		ConnectionID:                        "connB",
		ClientID:                            "client-a",
		CounterpartyConnID:                  "connA",
		CounterpartyClientID:                "client-b",
		OfferedVersions:                     SupportedVersions,
		LocalHeight:                         1,
		CounterpartyProof:                   ConnectionProof{ProofHeight: 1, Proof: initProof},
		ExpectedCounterpartyConnectionBytes: []byte("connA-init-bytes"),
	})
	if err != nil {
		t.Fatalf("OpenTry: %v", err)
	}

	tryRoot, tryProof := committedProof(t, "connB", []byte("connB-tryopen-bytes"))
	r.PutClient(&ClientState{ClientID: "client-a", ConsensusRoots: map[uint64]jmt.Hash{1: tryRoot}})
	connA, err = r.OpenAck(bus, 0, 0, MsgConnectionOpenAck{
		ConnectionID:                        "connA",
		CounterpartyConnID:                  "connB",
		LocalHeight:                         1,
		CounterpartyProof:                   ConnectionProof{ProofHeight: 1, Proof: tryProof},
		ExpectedCounterpartyConnectionBytes: []byte("connB-tryopen-bytes"),
	})
	if err != nil {
		t.Fatalf("OpenAck: %v", err)
	}
	if connA.State != StateOpen {
		t.Fatalf("expected connA Open, got %s", connA.State)
	}

	openRoot, openProof := committedProof(t, "connA", []byte("connA-open-bytes"))
	r.PutClient(&ClientState{ClientID: "client-a", ConsensusRoots: map[uint64]jmt.Hash{1: openRoot}})
	connB, err := r.OpenConfirm(bus, 0, 0, MsgConnectionOpenConfirm{
		ConnectionID:                        "connB",
		LocalHeight:                         1,
		CounterpartyProof:                   ConnectionProof{ProofHeight: 1, Proof: openProof},
		ExpectedCounterpartyConnectionBytes: []byte("connA-open-bytes"),
	})
	if err != nil {
		t.Fatalf("OpenConfirm: %v", err)
	}
	if connB.State != StateOpen {
		t.Fatalf("expected connB Open, got %s", connB.State)
	}
	if bus.Len() != 4 {
		t.Fatalf("expected 4 handshake events, got %d", bus.Len())
	}
}

func TestOpenAckRejectsWrongPriorState(t *testing.T) {
	r := NewRegistry()
	r.PutClient(&ClientState{ClientID: "client-a", ConsensusRoots: map[uint64]jmt.Hash{1: {9}}})
	bus := events.NewBus()
	conn, _ := r.OpenInit(bus, 0, 0, MsgConnectionOpenInit{ConnectionID: "connA", ClientID: "client-a", Versions: SupportedVersions})
	conn.State = StateOpen // simulate an already-completed handshake

	_, err := r.OpenAck(bus, 0, 0, MsgConnectionOpenAck{ConnectionID: "connA", LocalHeight: 1})
	if err != ErrWrongState {
		t.Fatalf("expected ErrWrongState, got %v", err)
	}
}
