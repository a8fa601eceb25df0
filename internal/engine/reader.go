package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.bug.st/serial"

	"github.com/jatinbhole/serial-forwarder/internal/config"
)

// errReaderStopping is the backoff.Permanent sentinel that unwinds
// openWithRetry's retry loop once stopCh closes, without being logged as a
// real open failure.
var errReaderStopping = errors.New("serial reader stopping")

// serialReader is the Serial Reader of spec.md §4.1: while enabled, keeps
// the device open and streams newly available bytes out via onChunk. It
// does not interpret bytes.
type serialReader struct {
	device            string
	mode              *serial.Mode
	readTimeout       time.Duration
	reconnectInterval time.Duration
	xonXoff           bool
	rtsCTS            bool

	mu   sync.Mutex
	port serial.Port
}

func newSerialReader(cfg config.PortConfig) *serialReader {
	parity := serial.NoParity
	switch cfg.SerialParity {
	case "E":
		parity = serial.EvenParity
	case "O":
		parity = serial.OddParity
	}

	stopBits := serial.OneStopBit
	switch cfg.SerialStopbits {
	case 1.5:
		stopBits = serial.OnePointFiveStopBits
	case 2:
		stopBits = serial.TwoStopBits
	}

	return &serialReader{
		device: cfg.SerialPort,
		mode: &serial.Mode{
			BaudRate: cfg.SerialBaudrate,
			DataBits: cfg.SerialBytesize,
			Parity:   parity,
			StopBits: stopBits,
		},
		readTimeout:       time.Duration(cfg.SerialTimeout * float64(time.Second)),
		reconnectInterval: time.Duration(cfg.ReconnectInterval) * time.Second,
		xonXoff:           cfg.SerialXonXoff,
		rtsCTS:            cfg.SerialRTSCTS,
	}
}

// open opens the serial device. Flow control is best-effort: go.bug.st/serial
// exposes per-line RTS/DTR toggles but no native xon/xoff or hardware
// rts/cts negotiation, the same gap the teacher's own serial wrapper has, so
// a configured request for either is logged, never silently dropped (rts/cts
// additionally asserts the RTS line).
func (r *serialReader) open() error {
	port, err := serial.Open(r.device, r.mode)
	if err != nil {
		return &SerialOpenError{Device: r.device, Err: err}
	}
	if r.readTimeout > 0 {
		if err := port.SetReadTimeout(r.readTimeout); err != nil {
			logIssuef("serial %s: set read timeout: %v", r.device, err)
		}
	}
	if r.rtsCTS {
		if err := port.SetRTS(true); err != nil {
			logIssuef("serial %s: rts/cts requested but SetRTS failed: %v", r.device, err)
		} else {
			logIssuef("serial %s: rts/cts requested; RTS asserted, hardware handshake not supported by the serial backend", r.device)
		}
	}
	if r.xonXoff {
		logIssuef("serial %s: xon/xoff requested but not supported by the serial backend", r.device)
	}

	r.mu.Lock()
	r.port = port
	r.mu.Unlock()
	return nil
}

// reconnectBackOff adapts a fixed interval to backoff.BackOff: it is what
// actually decides whether openWithRetry keeps retrying, in the manner of
// nasa-jpl-golaborate/comm.RemoteDevice.Open driving its retries through
// backoff.Retry instead of a bare timer loop. It returns backoff.Stop at the
// first NextBackOff call after stopCh closes; a wait between attempts that is
// already under way is not interrupted and runs out its full interval first.
type reconnectBackOff struct {
	interval time.Duration
	stopCh   <-chan struct{}
}

func (b *reconnectBackOff) NextBackOff() time.Duration {
	select {
	case <-b.stopCh:
		return backoff.Stop
	default:
		return b.interval
	}
}

func (b *reconnectBackOff) Reset() {}

// openWithRetry retries r.open through backoff.Retry until it succeeds or
// stopCh closes, reporting each failed attempt via onConnected(false).
func (r *serialReader) openWithRetry(stopCh <-chan struct{}, onConnected func(bool)) error {
	return backoff.Retry(func() error {
		select {
		case <-stopCh:
			return backoff.Permanent(errReaderStopping)
		default:
		}
		if err := r.open(); err != nil {
			logIssuefThrottled("serial-open:"+r.device, 1.0/10.0, "%v", err)
			onConnected(false)
			return err
		}
		return nil
	}, &reconnectBackOff{interval: r.reconnectInterval, stopCh: stopCh})
}

// closeHandle closes the device promptly to unblock a pending read, per
// spec.md §4.6 step 2 of the shutdown sequence.
func (r *serialReader) closeHandle() {
	r.mu.Lock()
	port := r.port
	r.port = nil
	r.mu.Unlock()

	if port != nil {
		port.Close()
	}
}

func (r *serialReader) read(buf []byte) (int, error) {
	r.mu.Lock()
	port := r.port
	r.mu.Unlock()

	if port == nil {
		return 0, &SerialReadError{Device: r.device, Err: fmt.Errorf("device not open")}
	}
	n, err := port.Read(buf)
	if err != nil {
		return n, &SerialReadError{Device: r.device, Err: err}
	}
	return n, nil
}

// run drives the open/read/reconnect loop until stopCh is closed. onChunk
// is called with each nonempty read; onConnected reports open/closed
// transitions for the status snapshot.
func (r *serialReader) run(stopCh <-chan struct{}, onChunk func([]byte), onConnected func(bool)) {
	buf := make([]byte, 4096)

	for {
		select {
		case <-stopCh:
			r.closeHandle()
			return
		default:
		}

		if err := r.openWithRetry(stopCh, onConnected); err != nil {
			return // stopCh closed before the device came back
		}
		onConnected(true)

		for {
			select {
			case <-stopCh:
				r.closeHandle()
				return
			default:
			}

			n, err := r.read(buf)
			if err != nil {
				logIssuefThrottled("serial-read:"+r.device, 1.0/10.0, "%v", err)
				r.closeHandle()
				onConnected(false)
				break
			}
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				onChunk(chunk)
			}
			// n == 0 is not a message boundary; it is simply no new data.
		}
	}
}

// sleepOrStop waits d, or returns false early if stopCh closes first. Used
// by the transport reconnect loop, which backs off on a bare interval
// rather than retrying an Operation, so it has no need of backoff.BackOff.
func sleepOrStop(d time.Duration, stopCh <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stopCh:
		return false
	}
}
