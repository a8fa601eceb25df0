// Package engine implements the per-port forwarding pipeline: Serial Reader
// to Accumulator to Transport Client plus Durable Buffer to Retry Loop,
// coordinated by Start/Stop/Status lifecycle methods on Engine.
package engine

import (
	"log"
	"sync"
	"time"

	"github.com/jatinbhole/serial-forwarder/internal/config"
)

const (
	accumulatorCheckPeriod = 200 * time.Millisecond
	pendingMirrorPeriod    = 2 * time.Second
	livenessProbePeriod    = 1 * time.Second
	defaultRetryPeriod     = 30 * time.Second
	retentionSweepPeriod   = 1 * time.Hour
	retentionMaxAge        = 30 * 24 * time.Hour
	workerJoinDeadline     = 5 * time.Second
)

// Engine is one Port Engine: the full pipeline bound to one configured port.
type Engine struct {
	cfg    config.PortConfig
	status *statusBox

	reader *serialReader
	acc    *accumulator
	buf    *buffer
	tr     transport

	// flushMu serializes every delivery attempt (flush-on-connect, the kick
	// triggered by a fresh emission, and the periodic retry) through one
	// path, so tr.send is never called from two goroutines at once and the
	// durable id order is always what reaches the wire.
	flushMu sync.Mutex
	kick    chan struct{}

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger *log.Logger
}

// New constructs an Engine for cfg. bufferDir is the directory holding this
// port's `buffer_<name>.db` durable store file.
func New(cfg config.PortConfig, bufferDir string, logger *log.Logger) (*Engine, error) {
	buf, err := openBuffer(cfg.Name, bufferPath(bufferDir, cfg.Name))
	if err != nil {
		return nil, &ConfigError{Port: cfg.Name, Err: err}
	}

	pending, err := buf.loadPending()
	if err != nil {
		buf.close()
		return nil, &ConfigError{Port: cfg.Name, Err: err}
	}

	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		cfg:    cfg,
		status: newStatusBox(cfg.Name),
		reader: newSerialReader(cfg),
		acc:    newAccumulator(pending),
		buf:    buf,
		tr:     newTransport(cfg),
		logger: logger,
	}, nil
}

// Status returns a read-only snapshot, per spec.md §3/§4.6.
func (e *Engine) Status() Status {
	return e.status.snapshot()
}

// Close releases the durable buffer of an Engine that was constructed but
// never started — e.g. a sibling port's construction failed and the
// supervisor is unwinding. Stop is the right call once Start has run; Close
// is for before that, when there are no workers to join or state to flush.
func (e *Engine) Close() error {
	return e.buf.close()
}

// Start spawns the Reader, Accumulator timer, Transport liveness probe,
// Retry timer and Retention sweeper. Idempotent: starting an already
// running engine reports it and returns nil.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.logger.Printf("engine %s: already running", e.cfg.Name)
		return nil
	}

	e.stopCh = make(chan struct{})
	e.kick = make(chan struct{}, 1)
	e.running = true

	if n, err := e.buf.countUnsent(); err == nil {
		e.status.setBufferedCount(n)
	}

	e.spawn(e.runSerialReader)
	e.spawn(e.runAccumulatorTimer)
	e.spawn(e.runTransportLoop)
	e.spawn(e.runRetryTimer)
	e.spawn(e.runRetentionSweeper)

	e.logger.Printf("engine %s: started", e.cfg.Name)
	return nil
}

func (e *Engine) spawn(fn func(stopCh <-chan struct{})) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.stopCh)
	}()
}

// Stop follows the exact ordering required by spec.md §4.6: cancel, close
// the serial handle, join workers with a deadline, flush the residual
// accumulator, persist pending, persist the buffer, close transport/store.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}

	close(e.stopCh)        // 1. signal cancellation
	e.reader.closeHandle() // 2. close serial handle promptly

	if !e.joinWorkers(workerJoinDeadline) { // 3. join with deadline
		e.logger.Printf("%v", &ShutdownTimeout{Worker: e.cfg.Name})
	}

	if residual, ok := e.acc.flush(); ok { // 4. flush residual accumulator
		// 5. persist the residual as the pending-accumulator record first:
		// emit's insert clears that record in the same transaction, so it
		// survives only if the insert fails.
		if err := e.buf.putPending(residual, time.Now()); err != nil {
			e.logger.Printf("engine %s: persist pending on shutdown: %v", e.cfg.Name, err)
		}
		e.emit(residual)
	}

	// 6. the buffer commits each write transactionally as it happens (see
	// buffer.go); there is no separate "flush to disk" step for SQLite.

	e.tr.closeConn() // 7. close transport and durable store
	if err := e.buf.close(); err != nil {
		e.logger.Printf("engine %s: close buffer: %v", e.cfg.Name, err)
	}

	e.running = false
	e.logger.Printf("engine %s: stopped", e.cfg.Name)
	return nil
}

func (e *Engine) joinWorkers(deadline time.Duration) bool {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(deadline):
		return false
	}
}

// emit is the sole path by which accumulated bytes become a durable
// message, per spec.md §3's invariant on byte location. It only persists:
// delivery is runFlush's job alone, so ids always reach the wire in the
// order they were durably inserted, never racing a concurrent retry flush.
func (e *Engine) emit(payload []byte) {
	if len(payload) == 0 {
		return
	}
	_, err := e.buf.insert(payload, time.Now(), e.cfg.BufferSize)
	if err != nil {
		e.status.setLastError(err)
		e.logger.Printf("engine %s: %v", e.cfg.Name, err)
		return
	}
	e.status.addMessagesBuffered(1)

	if n, err := e.buf.countUnsent(); err == nil {
		e.status.setBufferedCount(n)
	}

	if e.status.snapshot().TransportState == TransportConnected {
		select {
		case e.kick <- struct{}{}:
		default:
		}
	}
}

// runFlush serializes every call to flush behind flushMu so flush-on-connect,
// the kick woken by a fresh emission, and the periodic retry never run
// concurrently against the same transport.
func (e *Engine) runFlush() {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	if err := flush(e.buf, e.tr, e.status); err != nil {
		e.status.setLastError(err)
	}
}

func (e *Engine) runSerialReader(stopCh <-chan struct{}) {
	e.reader.run(stopCh,
		func(chunk []byte) { e.acc.write(chunk) },
		func(connected bool) { e.status.setSerialConnected(connected) },
	)
}

// runAccumulatorTimer owns both the idle-flush check (≤500ms period) and
// the 2-second pending-accumulator mirror in one select loop. The Serial
// Reader stays a separate worker; it only appends to the accumulator.
func (e *Engine) runAccumulatorTimer(stopCh <-chan struct{}) {
	checkTicker := time.NewTicker(accumulatorCheckPeriod)
	defer checkTicker.Stop()
	mirrorTicker := time.NewTicker(pendingMirrorPeriod)
	defer mirrorTicker.Stop()

	sendDelay := time.Duration(e.cfg.SendDelay) * time.Second

	for {
		select {
		case <-stopCh:
			return
		case <-checkTicker.C:
			if taken, ok := e.acc.takeIfIdle(sendDelay, time.Now()); ok {
				e.emit(taken) // clears the mirrored pending row atomically with the insert
			}
		case <-mirrorTicker.C:
			if bytes, ok := e.acc.peek(); ok {
				if err := e.buf.putPending(bytes, time.Now()); err != nil {
					e.logger.Printf("engine %s: mirror pending accumulator: %v", e.cfg.Name, err)
				}
			}
		}
	}
}

func (e *Engine) runTransportLoop(stopCh <-chan struct{}) {
	reconnectInterval := time.Duration(e.cfg.ReconnectInterval) * time.Second

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		e.status.setTransportState(TransportConnecting)
		if err := e.tr.connect(); err != nil {
			e.status.setTransportState(TransportDisconnected)
			e.status.setLastError(err)
			logIssuefThrottled("transport-connect:"+e.cfg.Name, 1.0/10.0, "%v", err)
			if !sleepOrStop(reconnectInterval, stopCh) {
				return
			}
			continue
		}
		e.status.setTransportState(TransportConnected)
		e.runFlush()

		probe := time.NewTicker(livenessProbePeriod)
	liveLoop:
		for {
			select {
			case <-stopCh:
				probe.Stop()
				return
			case <-probe.C:
				if !e.tr.checkLiveness() {
					break liveLoop
				}
			case <-e.kick:
				e.runFlush()
			}
		}
		probe.Stop()
		e.tr.closeConn()
		e.status.setTransportState(TransportDisconnected)
	}
}

func (e *Engine) runRetryTimer(stopCh <-chan struct{}) {
	ticker := time.NewTicker(defaultRetryPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			e.runFlush()
		}
	}
}

func (e *Engine) runRetentionSweeper(stopCh <-chan struct{}) {
	ticker := time.NewTicker(retentionSweepPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			n, err := e.buf.purgeOldSent(time.Now().Add(-retentionMaxAge))
			if err != nil {
				e.logger.Printf("engine %s: retention sweep: %v", e.cfg.Name, err)
				continue
			}
			if n > 0 {
				e.logger.Printf("engine %s: retention sweep removed %d message(s)", e.cfg.Name, n)
			}
		}
	}
}
