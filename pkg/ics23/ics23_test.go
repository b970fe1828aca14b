package ics23

import (
	"context"
	"testing"

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

func TestVerifySingleLevelMembership(t *testing.T) {
	ctx := context.Background()
	sub := newMemStore()
	subTree := jmt.New(sub)

	value := []byte("balance:100")
	subRoot, writes, err := subTree.Put(ctx, jmt.EmptyVersion, 0, []jmt.KeyValue{
		{Key: []byte("account/alice"), ValueHash: jmt.HashValue(value)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub.apply(writes)

	_, inner, err := subTree.Get(ctx, 0, []byte("account/alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	proof := &CommitmentProof{
		SubstorePrefix: "main",
		Key:            []byte("account/alice"),
		Value:          value,
		Inner:          inner,
	}

	if err := Verify(subRoot, subRoot, proof); err != nil {
		t.Fatalf("expected proof to verify, got %v", err)
	}
}

func TestVerifyChainedSubstoreProof(t *testing.T) {
	ctx := context.Background()
	sub := newMemStore()
	subTree := jmt.New(sub)

	value := []byte("pool-reserves")
	subRoot, subWrites, err := subTree.Put(ctx, jmt.EmptyVersion, 0, []jmt.KeyValue{
		{Key: []byte("dex/pool1"), ValueHash: jmt.HashValue(value)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub.apply(subWrites)

	_, inner, err := subTree.Get(ctx, 0, []byte("dex/pool1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	main := newMemStore()
	mainTree := jmt.New(main)
	mainRoot, mainWrites, err := mainTree.Put(ctx, jmt.EmptyVersion, 0, []jmt.KeyValue{
		{Key: []byte("substore/dex"), ValueHash: jmt.HashValue(subRoot[:])},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	main.apply(mainWrites)

	_, outer, err := mainTree.Get(ctx, 0, []byte("substore/dex"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	proof := &CommitmentProof{
		SubstorePrefix: "dex",
		Key:            []byte("dex/pool1"),
		Value:          value,
		Inner:          inner,
		Outer:          outer,
	}

	if err := Verify(mainRoot, subRoot, proof); err != nil {
		t.Fatalf("expected chained proof to verify, got %v", err)
	}
}

func TestVerifyRejectsTamperedValue(t *testing.T) {
	ctx := context.Background()
	sub := newMemStore()
	subTree := jmt.New(sub)

	subRoot, writes, err := subTree.Put(ctx, jmt.EmptyVersion, 0, []jmt.KeyValue{
		{Key: []byte("account/alice"), ValueHash: jmt.HashValue([]byte("100"))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub.apply(writes)

	_, inner, err := subTree.Get(ctx, 0, []byte("account/alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	proof := &CommitmentProof{
		SubstorePrefix: "main",
		Key:            []byte("account/alice"),
		Value:          []byte("999"),
		Inner:          inner,
	}

	if err := Verify(subRoot, subRoot, proof); err == nil {
		t.Fatalf("expected tampered value to fail verification")
	}
}
