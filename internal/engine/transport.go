package engine

import "github.com/jatinbhole/serial-forwarder/internal/config"

// transport is the capability set shared by the Direct-TCP and HTTP-relay
// variants: connect, send, close, liveness. Selected by presence of
// http_url in a port's configuration rather than by inheritance.
type transport interface {
	// connect attempts to establish the underlying connection. The caller
	// sets its status to connecting before calling it.
	connect() error

	// send writes one whole message. Any error, short write, or protocol
	// mismatch means the message stays unsent.
	send(payload []byte) error

	// closeConn releases the underlying connection, if any.
	closeConn()

	// checkLiveness runs the variant's liveness probe and reports whether
	// the connection is still usable. False forces a disconnect.
	checkLiveness() bool

	// endpoint is a human-readable description of the remote side, used in
	// wrapped transport errors.
	endpoint() string
}

// newTransport selects the Direct-TCP or HTTP-relay variant for a port.
func newTransport(cfg config.PortConfig) transport {
	if cfg.HTTPURL != "" {
		return newHTTPTransport(cfg)
	}
	return newTCPTransport(cfg)
}
