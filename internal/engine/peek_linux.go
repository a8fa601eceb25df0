//go:build linux

package engine

import (
	"net"

	"golang.org/x/sys/unix"
)

// peekConnAlive implements spec.md §4.3's liveness probe: a zero-length
// peek result means the peer has closed its side of the connection.
func peekConnAlive(conn net.Conn) (bool, error) {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return true, nil
	}

	rawConn, err := tc.SyscallConn()
	if err != nil {
		return false, err
	}

	buf := make([]byte, 1)
	var n int
	var peekErr error
	ctrlErr := rawConn.Read(func(fd uintptr) bool {
		n, _, peekErr = unix.Recvfrom(int(fd), buf, unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true // never wait for readability: EAGAIN just means "no data yet, still alive"
	})
	if ctrlErr != nil {
		return false, ctrlErr
	}
	if peekErr == unix.EAGAIN || peekErr == unix.EWOULDBLOCK {
		return true, nil
	}
	if peekErr != nil {
		return false, peekErr
	}
	return n > 0, nil
}
