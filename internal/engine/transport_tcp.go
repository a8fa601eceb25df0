package engine

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jatinbhole/serial-forwarder/internal/config"
)

const tcpConnectTimeout = 5 * time.Second

// tcpTransport is the Direct-TCP variant of spec.md §4.3: opaque byte
// stream, whole-payload writes, keepalive tuning and a peek-based liveness
// probe.
type tcpTransport struct {
	host string
	port int

	mu   sync.Mutex
	conn net.Conn
}

func newTCPTransport(cfg config.PortConfig) *tcpTransport {
	return &tcpTransport{host: cfg.TCPHost, port: cfg.TCPPort}
}

func (t *tcpTransport) endpoint() string {
	return fmt.Sprintf("tcp://%s:%d", t.host, t.port)
}

func (t *tcpTransport) connect() error {
	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	conn, err := net.DialTimeout("tcp", addr, tcpConnectTimeout)
	if err != nil {
		return &TransportConnectError{Endpoint: t.endpoint(), Err: err}
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tuneKeepalive(tc)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()
	return nil
}

// send writes the whole payload in one call; a short write is treated as a
// transport failure even though net.Conn.Write itself guarantees a full
// write or an error, to defend against future conn implementations that do
// not (e.g. a wrapped writer).
func (t *tcpTransport) send(payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return &TransportWriteError{Endpoint: t.endpoint(), Err: fmt.Errorf("not connected")}
	}

	n, err := conn.Write(payload)
	if err != nil || n != len(payload) {
		t.closeConn()
		if err == nil {
			err = fmt.Errorf("short write: wrote %d of %d bytes", n, len(payload))
		}
		return &TransportWriteError{Endpoint: t.endpoint(), Err: err}
	}
	return nil
}

func (t *tcpTransport) closeConn() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// checkLiveness peeks the socket without consuming data; a zero-length
// peek result means the peer closed its side.
func (t *tcpTransport) checkLiveness() bool {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return false
	}
	alive, err := peekConnAlive(conn)
	if err != nil {
		return false
	}
	return alive
}
