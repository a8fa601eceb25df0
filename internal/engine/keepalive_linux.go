//go:build linux

package engine

import (
	"net"

	"golang.org/x/sys/unix"
)

// tuneKeepalive sets 1s idle, a 1s probe interval (TCP_KEEPINTVL takes whole
// seconds, so 1s is its shortest setting) and 3 probes, the keepalive tuning
// of spec.md §4.3. Best-effort: failures are logged through the issue log
// rather than surfaced, since the connection is otherwise usable without it.
func tuneKeepalive(conn *net.TCPConn) {
	conn.SetKeepAlive(true)

	rawConn, err := conn.SyscallConn()
	if err != nil {
		logIssuef("tcp transport: get raw conn for keepalive tuning: %v", err)
		return
	}

	var sysErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 1); err != nil {
			sysErr = err
			return
		}
		if err := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 1); err != nil {
			sysErr = err
			return
		}
		sysErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3)
	})
	if ctrlErr != nil {
		logIssuef("tcp transport: control fd for keepalive tuning: %v", ctrlErr)
		return
	}
	if sysErr != nil {
		logIssuef("tcp transport: setsockopt keepalive tuning: %v", sysErr)
	}
}
