package engine

import (
	"sync"
	"time"
)

// accumulator holds the growing byte run read from a serial device between
// emissions. A dedicated timer in the engine polls takeIfIdle; the
// accumulator itself never spawns goroutines or touches the durable store.
type accumulator struct {
	mu        sync.Mutex
	buf       []byte
	lastInput time.Time
	active    bool // true once buf holds bytes not yet emitted
}

// newAccumulator seeds the accumulator from a pending-accumulator record
// loaded at startup, so bytes observed before a crash are not lost.
func newAccumulator(seed []byte) *accumulator {
	a := &accumulator{}
	if len(seed) > 0 {
		a.buf = append([]byte(nil), seed...)
		a.lastInput = time.Now()
		a.active = true
	}
	return a
}

// write appends a chunk from the Serial Reader and resets the idle clock.
func (a *accumulator) write(p []byte) {
	if len(p) == 0 {
		return
	}
	a.mu.Lock()
	a.buf = append(a.buf, p...)
	a.lastInput = time.Now()
	a.active = true
	a.mu.Unlock()
}

// takeIfIdle atomically takes ownership of the accumulated bytes and clears
// the accumulator, but only if it is non-empty and has been idle for at
// least sendDelay. It is the idle-triggered emission path of §4.2; flush is
// the other one, used only for the final emission on shutdown.
func (a *accumulator) takeIfIdle(sendDelay time.Duration, now time.Time) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return nil, false
	}
	if now.Sub(a.lastInput) < sendDelay {
		return nil, false
	}
	taken := a.buf
	a.buf = nil
	a.active = false
	return taken, true
}

// flush unconditionally takes ownership of any residual bytes, used for the
// final emission attempt on orderly shutdown regardless of idle state.
func (a *accumulator) flush() ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return nil, false
	}
	taken := a.buf
	a.buf = nil
	a.active = false
	return taken, true
}

// peek returns a copy of the current bytes without taking ownership, used
// to mirror the pending-accumulator record every 2 seconds while active.
func (a *accumulator) peek() ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return nil, false
	}
	return append([]byte(nil), a.buf...), true
}
