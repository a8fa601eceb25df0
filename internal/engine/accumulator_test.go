package engine

import (
	"testing"
	"time"
)

func TestAccumulatorWriteAndTake(t *testing.T) {
	a := newAccumulator(nil)

	a.write([]byte("ABC"))
	a.write([]byte("DE"))

	if _, ok := a.takeIfIdle(5*time.Second, time.Now()); ok {
		t.Fatal("takeIfIdle returned true before send_delay elapsed")
	}

	past := time.Now().Add(6 * time.Second)
	got, ok := a.takeIfIdle(5*time.Second, past)
	if !ok {
		t.Fatal("takeIfIdle returned false after send_delay elapsed")
	}
	if string(got) != "ABCDE" {
		t.Errorf("expected %q, got %q", "ABCDE", got)
	}

	if _, ok := a.takeIfIdle(5*time.Second, past.Add(time.Hour)); ok {
		t.Fatal("takeIfIdle returned true on an empty accumulator")
	}
}

func TestAccumulatorZeroByteWriteIsNotBoundary(t *testing.T) {
	a := newAccumulator(nil)
	a.write(nil)

	if _, ok := a.peek(); ok {
		t.Fatal("zero-byte write should not mark the accumulator active")
	}
}

func TestAccumulatorSeedFromPending(t *testing.T) {
	a := newAccumulator([]byte("PART"))

	got, ok := a.peek()
	if !ok {
		t.Fatal("accumulator seeded from a pending record should be active")
	}
	if string(got) != "PART" {
		t.Errorf("expected seeded bytes %q, got %q", "PART", got)
	}

	taken, ok := a.takeIfIdle(5*time.Second, time.Now().Add(6*time.Second))
	if !ok || string(taken) != "PART" {
		t.Fatalf("expected seeded bytes to be emitted, got %q ok=%v", taken, ok)
	}
}

func TestAccumulatorFlushIgnoresIdleThreshold(t *testing.T) {
	a := newAccumulator(nil)
	a.write([]byte("RESIDUAL"))

	got, ok := a.flush()
	if !ok {
		t.Fatal("flush should take bytes regardless of idle duration")
	}
	if string(got) != "RESIDUAL" {
		t.Errorf("expected %q, got %q", "RESIDUAL", got)
	}

	if _, ok := a.flush(); ok {
		t.Fatal("flush on an empty accumulator should return false")
	}
}

func TestAccumulatorPeekDoesNotTakeOwnership(t *testing.T) {
	a := newAccumulator(nil)
	a.write([]byte("MIRROR"))

	first, ok := a.peek()
	if !ok || string(first) != "MIRROR" {
		t.Fatalf("unexpected peek result %q ok=%v", first, ok)
	}

	second, ok := a.peek()
	if !ok || string(second) != "MIRROR" {
		t.Fatal("peek should be idempotent and not clear the accumulator")
	}
}
