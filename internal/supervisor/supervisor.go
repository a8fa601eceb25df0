// Package supervisor loads the configuration document, instantiates one
// Port Engine per configured port, and orchestrates their lifecycle as a
// group.
package supervisor

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jatinbhole/serial-forwarder/internal/config"
	"github.com/jatinbhole/serial-forwarder/internal/engine"
)

// shutdownBudget is the worst-case time the whole supervisor is allowed to
// take to stop, per spec.md §5.
const shutdownBudget = 10 * time.Second

// Supervisor owns one Engine per configured port.
type Supervisor struct {
	logger  *log.Logger
	engines map[string]*engine.Engine
}

// New loads and validates the configuration document at configPath,
// constructs one Engine per port rooted at bufferDir, but does not start
// them.
func New(configPath, bufferDir string, logger *log.Logger) (*Supervisor, error) {
	doc, err := config.Load(configPath)
	if err != nil {
		return nil, &engine.ConfigError{Err: err}
	}

	if logger == nil {
		logger = log.Default()
	}

	engines := make(map[string]*engine.Engine, len(doc.Ports))
	for _, p := range doc.Ports {
		e, err := engine.New(p, bufferDir, logger)
		if err != nil {
			for _, constructed := range engines {
				if closeErr := constructed.Close(); closeErr != nil {
					logger.Printf("supervisor: closing port %q after construction failure: %v", constructed.Status().PortName, closeErr)
				}
			}
			return nil, &engine.ConfigError{Port: p.Name, Err: err}
		}
		engines[p.Name] = e
	}

	return &Supervisor{logger: logger, engines: engines}, nil
}

// Start starts every Port Engine. If any engine fails to start, the
// supervisor stops whatever had already started and returns the error.
func (s *Supervisor) Start() error {
	for name, e := range s.engines {
		if err := e.Start(); err != nil {
			s.Stop()
			return fmt.Errorf("starting port %q: %w", name, err)
		}
	}
	s.logger.Printf("supervisor: started %d port engine(s)", len(s.engines))
	return nil
}

// Stop fans stop out to all engines in parallel with a bounded overall join
// deadline, per spec.md §4.7; timeouts are logged, never returned as a
// fatal error, matching ShutdownTimeout's non-fatal propagation policy.
func (s *Supervisor) Stop() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	for name, e := range s.engines {
		wg.Add(1)
		go func(name string, e *engine.Engine) {
			defer wg.Done()
			if err := e.Stop(); err != nil {
				s.logger.Printf("supervisor: stopping port %q: %v", name, err)
			}
		}(name, e)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Printf("supervisor: all port engines stopped")
	case <-time.After(shutdownBudget):
		s.logger.Printf("%v", &engine.ShutdownTimeout{Worker: "supervisor"})
	}
}

// Status aggregates per-port status snapshots under port name.
func (s *Supervisor) Status() map[string]engine.Status {
	out := make(map[string]engine.Status, len(s.engines))
	for name, e := range s.engines {
		out[name] = e.Status()
	}
	return out
}
