package scheduler

import (
	"testing"
	"time"
)

func withFixedNow(t *testing.T, at time.Time) {
	t.Helper()
	orig := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = orig })
}

func TestScheduleAndPopReady(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	withFixedNow(t, base)

	s := New()
	s.Schedule("a", 10*time.Second)
	s.Schedule("b", 5*time.Second)
	s.Schedule("c", 20*time.Second)

	if _, ok := s.PopNextReady(); ok {
		t.Fatal("expected nothing ready at t=0")
	}

	withFixedNow(t, base.Add(12*time.Second))
	ready := s.PopReady()
	if len(ready) != 2 || ready[0] != "b" || ready[1] != "a" {
		t.Fatalf("PopReady() = %v, want [b a]", ready)
	}
	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
}

func TestScheduleReplacesExistingEntry(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	withFixedNow(t, base)

	s := New()
	s.Schedule("a", 5*time.Second)
	s.Schedule("a", 30*time.Second)

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (rescheduling must replace, not duplicate)", s.Len())
	}

	withFixedNow(t, base.Add(10*time.Second))
	if _, ok := s.PopNextReady(); ok {
		t.Fatal("expected a's deadline to have moved to 30s, not still 5s")
	}
}

func TestNextDeadline(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	withFixedNow(t, base)

	s := New()
	if _, ok := s.NextDeadline(); ok {
		t.Fatal("expected no deadline on empty scheduler")
	}

	s.Schedule("a", 7*time.Second)
	d, ok := s.NextDeadline()
	if !ok || d != 7*time.Second {
		t.Fatalf("NextDeadline() = %v, %v; want 7s, true", d, ok)
	}
}

func TestRemoveOutput(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	withFixedNow(t, base)

	s := New()
	s.Schedule("a", 1*time.Second)
	s.Schedule("b", 2*time.Second)
	s.RemoveOutput("a")

	withFixedNow(t, base.Add(5*time.Second))
	ready := s.PopReady()
	if len(ready) != 1 || ready[0] != "b" {
		t.Fatalf("PopReady() = %v, want [b]", ready)
	}
}
