// Package monitor periodically reports the progress of the current run.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/OCAP2/combatsim/internal/influx"
	"github.com/OCAP2/combatsim/internal/session"
)

// PendingProvider is implemented by storage backends that queue writes.
type PendingProvider interface {
	Pending() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session    *session.Context
	Logger     *slog.Logger
	Influx     *influx.Manager // optional
	Pending    PendingProvider // optional
	StatusFile string          // optional, rewritten on every tick
}

// Status is one progress sample.
type Status struct {
	Time          time.Time `json:"time"`
	Run           string    `json:"run"`
	Scenario      string    `json:"scenario"`
	Step          int       `json:"step"`
	PendingWrites int       `json:"pendingWrites"`
	Goroutines    int       `json:"goroutines"`
	HeapAllocMB   float64   `json:"heapAllocMb"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus samples the current status.
func (s *Service) GetStatus() Status {
	run := s.deps.Session.GetRun()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := Status{
		Time:        time.Now(),
		Run:         run.UUID,
		Scenario:    run.Scenario,
		Step:        s.deps.Session.Step(),
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: float64(mem.HeapAlloc) / (1 << 20),
	}
	if s.deps.Pending != nil {
		st.PendingWrites = s.deps.Pending.Pending()
	}
	return st
}

// Report samples the status once and publishes it to every configured sink.
func (s *Service) Report() Status {
	st := s.GetStatus()
	s.deps.Logger.Debug("Status",
		"step", st.Step,
		"pendingWrites", st.PendingWrites,
		"goroutines", st.Goroutines,
		"heapAllocMb", st.HeapAllocMB,
	)

	if s.deps.StatusFile != "" {
		if err := writeStatusFile(s.deps.StatusFile, st); err != nil {
			s.deps.Logger.Error("Error writing status file", "error", err)
		}
	}

	if s.deps.Influx != nil && st.Run != "" {
		if err := s.deps.Influx.WritePoint(influx.StatusPoint(st.Run, st.Step, st.PendingWrites, st.Goroutines, st.HeapAllocMB, st.Time)); err != nil {
			s.deps.Logger.Debug("Status point dropped", "error", err)
		}
	}
	return st
}

func writeStatusFile(path string, st Status) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling status: %w", err)
	}
	return os.WriteFile(path, b, 0644)
}

// Start reports every interval until Stop is called.
func (s *Service) Start(interval time.Duration) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Report()
			}
		}
	}()
}

// Stop stops the status monitor and waits for the last report to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
}
