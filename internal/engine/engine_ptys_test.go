//go:build !windows

package engine

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jatinbhole/serial-forwarder/internal/config"
	"github.com/jatinbhole/serial-forwarder/internal/testserial"
)

// TestEngineReadsFromRealSerialDevice exercises the Serial Reader against a
// real PTY-backed device rather than feeding the accumulator directly,
// covering the open/read path that the HTTP-relay scenario tests bypass.
func TestEngineReadsFromRealSerialDevice(t *testing.T) {
	vsp, err := testserial.New()
	if err != nil {
		t.Skipf("virtual serial port unavailable: %v", err)
	}
	defer vsp.Close()

	var mu sync.Mutex
	var received [][]byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, buf)
		mu.Unlock()
		json.NewEncoder(w).Encode(httpRelayResponse{BytesSent: len(buf)})
	}))
	defer srv.Close()

	cfg := config.PortConfig{
		Name:              "ptyport",
		SerialPort:        vsp.DeviceName(),
		SerialBaudrate:    9600,
		SerialBytesize:    8,
		SerialParity:      "N",
		SerialStopbits:    1,
		HTTPURL:           srv.URL,
		TCPHost:           "127.0.0.1",
		TCPPort:           1,
		BufferSize:        100,
		ReconnectInterval: 1,
		SendDelay:         1,
	}

	e, err := New(cfg, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Stop()

	// Give the reader time to open the device before feeding it.
	time.Sleep(300 * time.Millisecond)
	if err := vsp.Feed([]byte("HELLO")); err != nil {
		t.Fatalf("Feed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 || string(received[0]) != "HELLO" {
		t.Fatalf("expected the real device to deliver %q exactly once, got %v", "HELLO", received)
	}
}
