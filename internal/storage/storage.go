// internal/storage/storage.go
package storage

import "github.com/OCAP2/combatsim/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Run management
	StartRun(run *core.Run) error
	EndRun(summary core.Summary) error

	// Entity registration
	AddUnit(u *core.Unit) error

	// State recording
	RecordUnitState(s *core.UnitState) error

	// Event recording
	RecordEngagement(e *core.Engagement) error
	RecordStep(s *core.StepStats) error
}

// Exportable is an optional interface for storage backends that produce
// a file once the run has ended.
type Exportable interface {
	ExportedFilePath() string
}

// Nop discards everything.
type Nop struct{}

func (Nop) Init() error                             { return nil }
func (Nop) Close() error                            { return nil }
func (Nop) StartRun(*core.Run) error                { return nil }
func (Nop) EndRun(core.Summary) error               { return nil }
func (Nop) AddUnit(*core.Unit) error                { return nil }
func (Nop) RecordUnitState(*core.UnitState) error   { return nil }
func (Nop) RecordEngagement(*core.Engagement) error { return nil }
func (Nop) RecordStep(*core.StepStats) error        { return nil }
