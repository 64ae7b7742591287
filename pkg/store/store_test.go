package store

import (
	"testing"
	"time"
)

type cart struct {
	ID    string   `json:"id"`
	Items []string `json:"items"`
}

func TestSetAndTypedRead(t *testing.T) {
	s := New()
	s.Set("cart", cart{ID: "c1", Items: []string{"a"}})

	got, fetchedAt, ok := Value[cart](s, "cart")
	if !ok {
		t.Fatal("value absent")
	}
	if got.ID != "c1" || len(got.Items) != 1 {
		t.Errorf("got %+v", got)
	}
	if fetchedAt.IsZero() {
		t.Error("fetchedAt not stamped")
	}
}

func TestValueTypeMismatch(t *testing.T) {
	s := New()
	s.Set("cart", "not a cart")

	if _, _, ok := Value[cart](s, "cart"); ok {
		t.Error("type mismatch must report absent")
	}
}

func TestInvalidateKeepsValueButMarksStale(t *testing.T) {
	s := New()
	s.Set("catalog", cart{ID: "x"})
	s.Invalidate("catalog")

	got, fetchedAt, ok := Value[cart](s, "catalog")
	if !ok || got.ID != "x" {
		t.Fatalf("value lost on invalidate: %+v ok=%v", got, ok)
	}
	if !fetchedAt.IsZero() {
		t.Error("invalidate must zero the fetch time")
	}
}

func TestDropRemoves(t *testing.T) {
	s := New()
	s.Set("k", 1)
	s.Drop("k")
	if _, _, ok := s.Get("k"); ok {
		t.Error("value present after Drop")
	}
}

func TestSubscribeNotifiesOnWrites(t *testing.T) {
	s := New()
	var fired int
	cancel := s.Subscribe("cart", func() { fired++ })

	s.Set("cart", cart{})
	s.Invalidate("cart")
	s.Set("other", cart{})

	if fired != 2 {
		t.Errorf("fired = %d, want 2 (writes to other keys must not notify)", fired)
	}

	cancel()
	s.Set("cart", cart{})
	if fired != 2 {
		t.Error("subscriber fired after cancel")
	}
	cancel() // second cancel is a no-op
}

func TestCloneIsolation(t *testing.T) {
	orig := cart{ID: "c1", Items: []string{"a", "b"}}
	clone, err := Clone(orig)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	clone.Items[0] = "mutated"
	if orig.Items[0] != "a" {
		t.Error("clone shares backing storage with original")
	}
	if !Equal(orig, cart{ID: "c1", Items: []string{"a", "b"}}) {
		t.Error("original changed")
	}
}

func TestClockInjection(t *testing.T) {
	s := New()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	s.Set("k", 1)
	_, at, _ := s.Get("k")
	if !at.Equal(fixed) {
		t.Errorf("fetchedAt = %v, want %v", at, fixed)
	}
}
