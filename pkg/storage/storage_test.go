package storage

import (
	"context"
	"testing"

	"github.com/certen/ledgercore/pkg/ics23"
)

func TestCommitAndGetAcrossSubstores(t *testing.T) {
	ctx := context.Background()
	ms := Open(nil, []string{"dex", "staking"})

	overlay := NewOverlay()
	overlay.Put([]byte("dex/positions/1"), []byte("open"))
	overlay.Put([]byte("staking/validators/a"), []byte("active"))
	overlay.Put([]byte("other/direct"), []byte("main-routed"))

	root, err := overlay.Commit(ctx, ms, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.IsZero() {
		t.Fatalf("expected non-zero app hash after commit")
	}

	value, found, err := ms.Get(ctx, []byte("dex/positions/1"))
	if err != nil || !found {
		t.Fatalf("expected dex/positions/1 to be found, err=%v found=%v", err, found)
	}
	if string(value) != "open" {
		t.Fatalf("unexpected value %q", value)
	}

	value, found, err = ms.Get(ctx, []byte("other/direct"))
	if err != nil || !found || string(value) != "main-routed" {
		t.Fatalf("expected main-routed key to be found with its value, got %q found=%v err=%v", value, found, err)
	}
}

func TestGetWithProofChainsAcrossSubstore(t *testing.T) {
	ctx := context.Background()
	ms := Open(nil, []string{"dex"})

	overlay := NewOverlay()
	overlay.Put([]byte("dex/positions/1"), []byte("open"))
	mainRoot, err := overlay.Commit(ctx, ms, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, proof, err := ms.GetWithProof(ctx, []byte("dex/positions/1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(value) != "open" {
		t.Fatalf("unexpected value %q", value)
	}
	subRoot, err := ms.Root("dex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ics23.Verify(mainRoot, subRoot, proof); err != nil {
		t.Fatalf("expected chained proof to verify, got %v", err)
	}
}

func TestDeleteRemovesKeyAcrossCommits(t *testing.T) {
	ctx := context.Background()
	ms := Open(nil, []string{"dex"})

	overlay := NewOverlay()
	overlay.Put([]byte("dex/positions/1"), []byte("open"))
	if _, err := overlay.Commit(ctx, ms, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	overlay2 := NewOverlay()
	overlay2.Delete([]byte("dex/positions/1"))
	if _, err := overlay2.Commit(ctx, ms, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, found, err := ms.Get(ctx, []byte("dex/positions/1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected key to be absent after delete")
	}
}

func TestPrefixScanOrdersKeysLexicographically(t *testing.T) {
	ctx := context.Background()
	ms := Open(nil, []string{"dex"})

	overlay := NewOverlay()
	overlay.Put([]byte("dex/positions/2"), []byte("b"))
	overlay.Put([]byte("dex/positions/1"), []byte("a"))
	overlay.Put([]byte("dex/positions/10"), []byte("c"))
	if _, err := overlay.Commit(ctx, ms, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	it, err := ms.PrefixScan([]byte("dex/positions/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer it.Close()

	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	want := []string{"dex/positions/1", "dex/positions/10", "dex/positions/2"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected sorted order %v, got %v", want, keys)
		}
	}
}

func TestRootRejectsUnknownSubstore(t *testing.T) {
	ms := Open(nil, []string{"dex"})
	if _, err := ms.Root("not-configured"); err != ErrUnknownSubstore {
		t.Fatalf("expected ErrUnknownSubstore, got %v", err)
	}
}

func TestNonverifiableStorageRoundTrip(t *testing.T) {
	ms := Open(nil, []string{"dex"})
	if err := ms.NonverifiableSet([]byte("dex/meta/note"), []byte("hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := ms.NonverifiableGet([]byte("dex/meta/note"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(v) != "hello" {
		t.Fatalf("unexpected value %q", v)
	}
}
