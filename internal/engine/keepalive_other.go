//go:build !linux

package engine

import (
	"net"
	"time"
)

// tuneKeepalive falls back to the portable net.TCPConn keepalive knobs on
// platforms where golang.org/x/sys/unix's TCP_KEEPIDLE/TCP_KEEPINTVL
// socket options are not available.
func tuneKeepalive(conn *net.TCPConn) {
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(1 * time.Second)
}
