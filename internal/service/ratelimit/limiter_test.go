package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurstAndRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("expected burst of 2 to pass")
	}
	if l.Allow("a") {
		t.Fatalf("expected third request to be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("keys must not share buckets")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatalf("expected a token after one second")
	}
	if l.Allow("a") {
		t.Fatalf("expected bucket to be empty again")
	}
}

func TestLimiterPrune(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(time.Minute)
	l.Allow("b")

	if n := l.Prune(30 * time.Second); n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}
}
