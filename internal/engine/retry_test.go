package engine

import (
	"fmt"
	"testing"
	"time"
)

// failAfterNTransport accepts the first n sends and fails every send after
// that, simulating a transport that flaps mid-flush.
type failAfterNTransport struct {
	n    int
	sent [][]byte
}

func (f *failAfterNTransport) connect() error      { return nil }
func (f *failAfterNTransport) closeConn()          {}
func (f *failAfterNTransport) checkLiveness() bool { return true }
func (f *failAfterNTransport) endpoint() string    { return "test" }
func (f *failAfterNTransport) send(payload []byte) error {
	if len(f.sent) >= f.n {
		return &TransportWriteError{Endpoint: "test", Err: fmt.Errorf("simulated flap")}
	}
	f.sent = append(f.sent, payload)
	return nil
}

func TestFlushStopsAtFirstFailureAndMarksPrefixSent(t *testing.T) {
	b := openTestBuffer(t)
	st := newStatusBox("testport")

	id1, _ := b.insert([]byte("one"), time.Now(), 0)
	id2, _ := b.insert([]byte("two"), time.Now(), 0)
	id3, _ := b.insert([]byte("three"), time.Now(), 0)

	tr := &failAfterNTransport{n: 1}
	if err := flush(b, tr, st); err == nil {
		t.Fatal("expected flush to report the failure after message 2")
	}

	unsent, err := b.enumerateUnsent()
	if err != nil {
		t.Fatalf("enumerateUnsent: %v", err)
	}
	if len(unsent) != 2 || unsent[0].ID != id2 || unsent[1].ID != id3 {
		t.Fatalf("expected messages 2 and 3 to remain unsent in order, got %+v (ids were %d,%d,%d)", unsent, id1, id2, id3)
	}

	snap := st.snapshot()
	if snap.MessagesSent != 1 {
		t.Errorf("MessagesSent = %d, want 1", snap.MessagesSent)
	}
	if snap.BufferedCount != 2 {
		t.Errorf("BufferedCount = %d, want 2", snap.BufferedCount)
	}
}

func TestFlushWithNoUnsentIsNoop(t *testing.T) {
	b := openTestBuffer(t)
	st := newStatusBox("testport")
	tr := &failAfterNTransport{n: 100}

	if err := flush(b, tr, st); err != nil {
		t.Fatalf("flush on an empty buffer should not error: %v", err)
	}
	if len(tr.sent) != 0 {
		t.Fatal("flush should not call send when there is nothing unsent")
	}
}

func TestFlushDeliversAllOnHealthyTransport(t *testing.T) {
	b := openTestBuffer(t)
	st := newStatusBox("testport")

	b.insert([]byte("a"), time.Now(), 0)
	b.insert([]byte("b"), time.Now(), 0)

	tr := &failAfterNTransport{n: 100}
	if err := flush(b, tr, st); err != nil {
		t.Fatalf("flush: %v", err)
	}

	unsent, err := b.enumerateUnsent()
	if err != nil {
		t.Fatalf("enumerateUnsent: %v", err)
	}
	if len(unsent) != 0 {
		t.Fatalf("expected no unsent messages, got %d", len(unsent))
	}
	if len(tr.sent) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(tr.sent))
	}
}
