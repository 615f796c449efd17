// pkg/core/run.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// Counter names used in StepStats.Counters.
const (
	CounterUnitsActive    = "units_active"
	CounterEngagements    = "engagements"
	CounterUnitsDestroyed = "units_destroyed"
	CounterUnitsRemoved   = "units_removed"
)

// StepStats are the counters produced by one simulation step.
//
// UnitsDestroyed counts decisive engagements, so an exchange that kills both
// participants adds one. UnitsRemoved counts units actually taken out of the
// registry and adds two in that case.
type StepStats struct {
	Step           int `json:"step"`
	UnitsActive    int `json:"unitsActive"`
	Engagements    int `json:"engagements"`
	UnitsDestroyed int `json:"unitsDestroyed"`
	UnitsRemoved   int `json:"unitsRemoved"`
}

// Counters returns the stats as a name → count mapping.
func (s StepStats) Counters() map[string]int {
	return map[string]int{
		CounterUnitsActive:    s.UnitsActive,
		CounterEngagements:    s.Engagements,
		CounterUnitsDestroyed: s.UnitsDestroyed,
		CounterUnitsRemoved:   s.UnitsRemoved,
	}
}

// Run describes one simulation run.
type Run struct {
	ID        uint
	UUID      string
	Scenario  string
	MapWidth  float64
	MapHeight float64
	Seed      int64
	MaxSteps  int
	StartTime time.Time
	Version   string
}

// NewRun creates a run with a fresh UUID and the current start time.
func NewRun(scenario string, width, height float64, seed int64, maxSteps int) *Run {
	return &Run{
		UUID:      uuid.NewString(),
		Scenario:  scenario,
		MapWidth:  width,
		MapHeight: height,
		Seed:      seed,
		MaxSteps:  maxSteps,
		StartTime: time.Now(),
	}
}

// Summary aggregates a finished run.
type Summary struct {
	Steps             int              `json:"steps"`
	Engagements       int              `json:"engagements"`
	UnitsDestroyed    int              `json:"unitsDestroyed"`
	UnitsRemoved      int              `json:"unitsRemoved"`
	InitialUnits      int              `json:"initialUnits"`
	FinalUnits        int              `json:"finalUnits"`
	LoggedEngagements int              `json:"loggedEngagements"`
	SurvivorsByType   map[UnitType]int `json:"survivorsByType"`
	Terminated        bool             `json:"terminated"`
	EndTime           time.Time        `json:"endTime"`
}

// Add folds one step's counters into the summary.
func (s *Summary) Add(st StepStats) {
	s.Steps++
	s.Engagements += st.Engagements
	s.UnitsDestroyed += st.UnitsDestroyed
	s.UnitsRemoved += st.UnitsRemoved
}
