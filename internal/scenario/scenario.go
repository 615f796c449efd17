// Package scenario describes the initial forces of a run and spawns them
// into a simulation.
package scenario

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/OCAP2/combatsim/pkg/core"
)

var (
	// ErrNoForces is returned for a scenario without any force.
	ErrNoForces = errors.New("scenario has no forces")
	// ErrInvalidForce is returned for a force with a negative count or an inverted spawn box.
	ErrInvalidForce = errors.New("invalid force")
)

// Force is a group of units spawned uniformly inside a box.
type Force struct {
	Name  string          `yaml:"name"`
	Count int             `yaml:"count"`
	XMin  float64         `yaml:"xMin"`
	XMax  float64         `yaml:"xMax"`
	YMin  float64         `yaml:"yMin"`
	YMax  float64         `yaml:"yMax"`
	Types []core.UnitType `yaml:"types"` // empty means every type
}

// Scenario is the YAML scenario file layout.
type Scenario struct {
	Name      string  `yaml:"name"`
	MapWidth  float64 `yaml:"mapWidth"`
	MapHeight float64 `yaml:"mapHeight"`
	Forces    []Force `yaml:"forces"`
}

// Default returns the built-in scenario: two forces of ten units facing each
// other across an 800×600 map.
func Default() Scenario {
	return Scenario{
		Name:      "Default",
		MapWidth:  800,
		MapHeight: 600,
		Forces: []Force{
			{Name: "West", Count: 10, XMin: 0, XMax: 200, YMin: 0, YMax: 600},
			{Name: "East", Count: 10, XMin: 600, XMax: 800, YMin: 0, YMax: 600},
		},
	}
}

// Load reads and validates a scenario file.
func Load(path string) (Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Validate checks the forces.
func (s Scenario) Validate() error {
	if len(s.Forces) == 0 {
		return ErrNoForces
	}
	for i, f := range s.Forces {
		switch {
		case f.Count < 0:
			return fmt.Errorf("%w: force %d (%s) has count %d", ErrInvalidForce, i, f.Name, f.Count)
		case f.XMax < f.XMin || f.YMax < f.YMin:
			return fmt.Errorf("%w: force %d (%s) has an inverted spawn box", ErrInvalidForce, i, f.Name)
		}
	}
	return nil
}

// TotalUnits returns the number of units the scenario spawns.
func (s Scenario) TotalUnits() int {
	n := 0
	for _, f := range s.Forces {
		n += f.Count
	}
	return n
}

// UnitCreator is the part of the simulation Spawn needs.
type UnitCreator interface {
	CreateUnit(t core.UnitType, pos core.Position) core.Unit
}

// Spawn creates every unit of every force, in force order. Each unit draws
// its type, then x, then y from rng.
func (s Scenario) Spawn(sim UnitCreator, rng *rand.Rand) []core.Unit {
	units := make([]core.Unit, 0, s.TotalUnits())
	for _, f := range s.Forces {
		types := f.Types
		if len(types) == 0 {
			types = core.AllUnitTypes()
		}
		for i := 0; i < f.Count; i++ {
			t := types[rng.Intn(len(types))]
			pos := core.Position{
				X: f.XMin + rng.Float64()*(f.XMax-f.XMin),
				Y: f.YMin + rng.Float64()*(f.YMax-f.YMin),
			}
			units = append(units, sim.CreateUnit(t, pos))
		}
	}
	return units
}
