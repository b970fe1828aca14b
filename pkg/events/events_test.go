package events

import "testing"

func TestEmitOrdering(t *testing.T) {
	b := NewBus()
	b.Emit(0, 0, KindPositionOpen)
	b.Emit(0, 1, KindSwap)
	b.Emit(1, 0, KindValidatorStateChange)

	got := b.Events()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	wantOrder := []Kind{KindPositionOpen, KindSwap, KindValidatorStateChange}
	for i, k := range wantOrder {
		if got[i].Kind != k {
			t.Fatalf("event %d: got kind %v want %v", i, got[i].Kind, k)
		}
	}
}

func TestNamesAreUnique(t *testing.T) {
	seen := make(map[string]Kind)
	for k, name := range Names {
		if name == "" {
			continue
		}
		if prior, ok := seen[name]; ok {
			t.Fatalf("event name %q aliased by kinds %v and %v", name, prior, Kind(k))
		}
		seen[name] = Kind(k)
	}
}

func TestResetClears(t *testing.T) {
	b := NewBus()
	b.Emit(0, 0, KindSwap)
	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("expected bus to be empty after reset, got %d", b.Len())
	}
}

func TestAttrsPanicsOnOddArgs(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for odd-length Attrs call")
		}
	}()
	Attrs("key")
}
