package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jatinbhole/serial-forwarder/internal/config"
)

const httpRequestTimeout = 10 * time.Second

// httpTransport is the HTTP-relay variant of spec.md §4.3: each message is
// POSTed as its own request, carrying the logical TCP destination in
// headers for the relay to forward to.
type httpTransport struct {
	url        string
	tcpHost    string
	tcpPort    int
	sourcePort string

	client *http.Client
}

func newHTTPTransport(cfg config.PortConfig) *httpTransport {
	return &httpTransport{
		url:        cfg.HTTPURL,
		tcpHost:    cfg.TCPHost,
		tcpPort:    cfg.TCPPort,
		sourcePort: cfg.Name,
		client:     &http.Client{Timeout: httpRequestTimeout},
	}
}

func (h *httpTransport) endpoint() string { return h.url }

// connect is a no-op: the HTTP-relay variant is connectionless between
// messages. It still participates in the transport interface's connect/
// connecting/connected state machine so the engine's status reporting and
// flush-on-connect behavior are uniform across variants.
func (h *httpTransport) connect() error { return nil }

func (h *httpTransport) closeConn() {}

// checkLiveness always reports alive for the connectionless variant, so once
// connected this variant's transport state stays connected; a failing send is
// reported only through the error it returns (and so through last_error).
func (h *httpTransport) checkLiveness() bool { return true }

func checksum(data []byte) byte {
	var sum int
	for _, b := range data {
		sum += int(b)
	}
	return byte(sum % 256)
}

type httpRelayResponse struct {
	BytesSent int `json:"bytes_sent"`
}

func (h *httpTransport) send(payload []byte) error {
	req, err := http.NewRequest(http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return &TransportWriteError{Endpoint: h.endpoint(), Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-TCP-Host", h.tcpHost)
	req.Header.Set("X-TCP-Port", strconv.Itoa(h.tcpPort))
	req.Header.Set("X-Source-Port", h.sourcePort)
	req.Header.Set("X-Data-Length", strconv.Itoa(len(payload)))
	req.Header.Set("X-Data-Checksum", strconv.Itoa(int(checksum(payload))))

	resp, err := h.client.Do(req)
	if err != nil {
		return &TransportWriteError{Endpoint: h.endpoint(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransportProtocolError{Endpoint: h.endpoint(), Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var body httpRelayResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return &TransportProtocolError{Endpoint: h.endpoint(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if body.BytesSent != len(payload) {
		return &TransportProtocolError{Endpoint: h.endpoint(), Err: fmt.Errorf("bytes_sent %d != payload length %d", body.BytesSent, len(payload))}
	}
	return nil
}
