package engine

import (
	"sync"
	"time"
)

// TransportState is the observable connection state of a Transport.
type TransportState string

const (
	TransportDisconnected TransportState = "disconnected"
	TransportConnecting   TransportState = "connecting"
	TransportConnected    TransportState = "connected"
)

// Status is the read-only snapshot exported by a Port Engine, consumed by
// the (out of scope) HTTP dashboard.
type Status struct {
	PortName         string
	SerialConnected  bool
	TransportState   TransportState
	BufferedCount    int
	MessagesSent     uint64
	MessagesBuffered uint64
	LastError        string
	StartTime        time.Time
}

// statusBox is the thread-safe holder behind Status; workers push updates
// in, the engine reads a copy out. It never performs I/O while locked.
type statusBox struct {
	mu sync.RWMutex
	s  Status
}

func newStatusBox(portName string) *statusBox {
	return &statusBox{
		s: Status{
			PortName:       portName,
			TransportState: TransportDisconnected,
			StartTime:      time.Now(),
		},
	}
}

func (b *statusBox) snapshot() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.s
}

func (b *statusBox) setSerialConnected(v bool) {
	b.mu.Lock()
	b.s.SerialConnected = v
	b.mu.Unlock()
}

func (b *statusBox) setTransportState(v TransportState) {
	b.mu.Lock()
	b.s.TransportState = v
	b.mu.Unlock()
}

func (b *statusBox) setBufferedCount(n int) {
	b.mu.Lock()
	b.s.BufferedCount = n
	b.mu.Unlock()
}

func (b *statusBox) addMessagesSent(n uint64) {
	b.mu.Lock()
	b.s.MessagesSent += n
	b.mu.Unlock()
}

func (b *statusBox) addMessagesBuffered(n uint64) {
	b.mu.Lock()
	b.s.MessagesBuffered += n
	b.mu.Unlock()
}

func (b *statusBox) setLastError(err error) {
	b.mu.Lock()
	if err == nil {
		b.s.LastError = ""
	} else {
		b.s.LastError = err.Error()
	}
	b.mu.Unlock()
}
