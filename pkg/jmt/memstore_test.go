package jmt

import (
	"context"
	"testing"
)

type memStore struct {
	nodes map[string]*Node
}

func newMemStore() *memStore {
	return &memStore{nodes: make(map[string]*Node)}
}

func (m *memStore) GetNode(_ context.Context, key NodeKey) (*Node, error) {
	n, ok := m.nodes[string(key.Encode())]
	if !ok {
		return nil, ErrNotFound
	}
	return n, nil
}

func (m *memStore) apply(writes []Write) {
	for _, w := range writes {
		m.nodes[string(w.Key.Encode())] = w.Node
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := newMemStore()
	tree := New(store)
	ctx := context.Background()

	root, writes, err := tree.Put(ctx, EmptyVersion, 0, []KeyValue{
		{Key: []byte("alice"), ValueHash: HashValue([]byte("100"))},
		{Key: []byte("bob"), ValueHash: HashValue([]byte("50"))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.apply(writes)

	value, proof, err := tree.Get(ctx, 0, []byte("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != HashValue([]byte("100")) {
		t.Fatalf("unexpected value hash")
	}
	if !Verify(root, []byte("alice"), HashValue([]byte("100")), proof) {
		t.Fatalf("expected proof to verify")
	}

	_, proof2, err := tree.Get(ctx, 0, []byte("carol"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !VerifyAbsence(root, []byte("carol"), proof2) {
		t.Fatalf("expected absence proof to verify")
	}
}

func TestPutOverwritesExistingVersion(t *testing.T) {
	store := newMemStore()
	tree := New(store)
	ctx := context.Background()

	_, writes0, err := tree.Put(ctx, EmptyVersion, 0, []KeyValue{
		{Key: []byte("alice"), ValueHash: HashValue([]byte("100"))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.apply(writes0)

	root1, writes1, err := tree.Put(ctx, 0, 1, []KeyValue{
		{Key: []byte("alice"), ValueHash: HashValue([]byte("200"))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.apply(writes1)

	value, proof, err := tree.Get(ctx, 1, []byte("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != HashValue([]byte("200")) {
		t.Fatalf("expected updated value at version 1")
	}
	if !Verify(root1, []byte("alice"), HashValue([]byte("200")), proof) {
		t.Fatalf("expected proof to verify at version 1")
	}

	oldValue, _, err := tree.Get(ctx, 0, []byte("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oldValue != HashValue([]byte("100")) {
		t.Fatalf("expected version 0 to retain its original value")
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	store := newMemStore()
	tree := New(store)
	ctx := context.Background()

	_, writes0, err := tree.Put(ctx, EmptyVersion, 0, []KeyValue{
		{Key: []byte("alice"), ValueHash: HashValue([]byte("100"))},
		{Key: []byte("bob"), ValueHash: HashValue([]byte("50"))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.apply(writes0)

	root1, writes1, err := tree.Put(ctx, 0, 1, []KeyValue{
		{Key: []byte("alice"), Delete: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	store.apply(writes1)

	_, proof, err := tree.Get(ctx, 1, []byte("alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !VerifyAbsence(root1, []byte("alice"), proof) {
		t.Fatalf("expected alice to be absent after delete")
	}

	value, proof2, err := tree.Get(ctx, 1, []byte("bob"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != HashValue([]byte("50")) {
		t.Fatalf("expected bob to remain present")
	}
	if !Verify(root1, []byte("bob"), HashValue([]byte("50")), proof2) {
		t.Fatalf("expected bob's proof to verify")
	}
}
