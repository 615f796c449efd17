// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/OCAP2/combatsim/internal/config"
	"github.com/OCAP2/combatsim/internal/geo"
	"github.com/OCAP2/combatsim/pkg/core"
)

// ErrNoRun is returned when data arrives before StartRun.
var ErrNoRun = errors.New("no run started")

// UnitRecord groups a unit with its sampled states
type UnitRecord struct {
	Unit   core.Unit
	States []core.UnitState
}

// Backend stores run data in memory and exports to JSON
type Backend struct {
	cfg       config.MemoryConfig
	projector *geo.Projector

	run     *core.Run
	summary *core.Summary

	units       map[uint64]*UnitRecord
	engagements []core.Engagement
	steps       []core.StepStats

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend. A nil projector leaves exports in plane coordinates.
func New(cfg config.MemoryConfig, projector *geo.Projector) *Backend {
	return &Backend{
		cfg:       cfg,
		projector: projector,
		units:     make(map[uint64]*UnitRecord),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartRun begins recording a new run and drops anything held from a previous one
func (b *Backend) StartRun(run *core.Run) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.run = run
	b.summary = nil
	b.units = make(map[uint64]*UnitRecord)
	b.engagements = nil
	b.steps = nil
	b.lastExportPath = ""
	return nil
}

// EndRun finalizes and exports the run data
func (b *Backend) EndRun(summary core.Summary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	b.summary = &summary
	return b.exportJSON()
}

// AddUnit registers a new unit
func (b *Backend) AddUnit(u *core.Unit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	b.units[u.ID] = &UnitRecord{
		Unit:   *u,
		States: make([]core.UnitState, 0),
	}
	return nil
}

// RecordUnitState appends a state to its unit's timeline. States for unknown units are dropped.
func (b *Backend) RecordUnitState(s *core.UnitState) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if record, ok := b.units[s.UnitID]; ok {
		record.States = append(record.States, *s)
	}
	return nil
}

// RecordEngagement records an engagement
func (b *Backend) RecordEngagement(e *core.Engagement) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	b.engagements = append(b.engagements, *e)
	return nil
}

// RecordStep records the counters of a finished step
func (b *Backend) RecordStep(s *core.StepStats) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.run == nil {
		return ErrNoRun
	}
	b.steps = append(b.steps, *s)
	return nil
}

// ExportedFilePath returns the path of the last export, or "" before EndRun
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetUnit returns a copy of the record for a unit id
func (b *Backend) GetUnit(id uint64) (UnitRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.units[id]
	if !ok {
		return UnitRecord{}, false
	}
	return UnitRecord{
		Unit:   record.Unit,
		States: append([]core.UnitState(nil), record.States...),
	}, true
}

// Engagements returns a copy of the recorded engagements
func (b *Backend) Engagements() []core.Engagement {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.Engagement(nil), b.engagements...)
}

// Steps returns a copy of the recorded step counters
func (b *Backend) Steps() []core.StepStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.StepStats(nil), b.steps...)
}

// sortedUnits returns unit records ordered by id. Callers hold the lock.
func (b *Backend) sortedUnits() []*UnitRecord {
	records := make([]*UnitRecord, 0, len(b.units))
	for _, r := range b.units {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Unit.ID < records[j].Unit.ID
	})
	return records
}
