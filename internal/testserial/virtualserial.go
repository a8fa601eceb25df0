//go:build !windows

// Package testserial provides a virtual serial device, backed by a
// socat-created PTY pair, for exercising the Serial Reader against a real
// device without physical hardware.
package testserial

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// VirtualSerialPort is a pair of connected PTY devices: writes to one side
// are readable from the other, like a real null-modem cable.
type VirtualSerialPort struct {
	portA    string
	portB    string
	cmd      *exec.Cmd
	stopChan chan struct{}
	mu       sync.Mutex
	closed   bool
}

// New creates a pair of connected virtual serial ports. Requires socat on
// the host; tests should skip (not fail) when it is unavailable.
func New() (*VirtualSerialPort, error) {
	portA := fmt.Sprintf("/tmp/serial-forwarder-ptyA-%d", time.Now().UnixNano())
	portB := fmt.Sprintf("/tmp/serial-forwarder-ptyB-%d", time.Now().UnixNano())

	if _, err := exec.LookPath("socat"); err != nil {
		return nil, fmt.Errorf("socat not found: %w", err)
	}

	cmd := exec.Command("socat", "-d", "-d",
		"pty,raw,echo=0,link="+portA, "pty,raw,echo=0,link="+portB)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start socat: %w", err)
	}

	time.Sleep(100 * time.Millisecond) // give socat time to create the PTYs

	return &VirtualSerialPort{
		portA:    portA,
		portB:    portB,
		cmd:      cmd,
		stopChan: make(chan struct{}),
	}, nil
}

// DeviceName returns portA's path — the side the Engine under test opens,
// as if it were the configured serial_port.
func (v *VirtualSerialPort) DeviceName() string { return v.portA }

// Feed writes data to portB, the side a test drives as "the field device".
func (v *VirtualSerialPort) Feed(data []byte) error {
	return v.writeToFile(v.portB, data)
}

func (v *VirtualSerialPort) writeToFile(filename string, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return io.ErrClosedPipe
	}

	f, err := os.OpenFile(filename, os.O_WRONLY|unix.O_NONBLOCK, 0666)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// Close tears down the socat process backing the PTY pair.
func (v *VirtualSerialPort) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.closed = true
	close(v.stopChan)

	if v.cmd != nil && v.cmd.Process != nil {
		v.cmd.Process.Kill()
		v.cmd.Wait()
	}
	return nil
}
