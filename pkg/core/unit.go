// pkg/core/unit.go
package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownUnitType is returned when a unit type name cannot be parsed.
var ErrUnknownUnitType = errors.New("unknown unit type")

// UnitType is the closed set of unit classes.
type UnitType uint8

const (
	Infantry UnitType = iota
	Armor
	Artillery
	AirSupport
	Recon

	unitTypeCount
)

// NumUnitTypes is the number of defined unit types.
const NumUnitTypes = int(unitTypeCount)

var unitTypeNames = [...]string{
	Infantry:   "infantry",
	Armor:      "armor",
	Artillery:  "artillery",
	AirSupport: "air_support",
	Recon:      "recon",
}

// AllUnitTypes returns every unit type in declaration order.
func AllUnitTypes() []UnitType {
	types := make([]UnitType, 0, NumUnitTypes)
	for t := UnitType(0); t < unitTypeCount; t++ {
		types = append(types, t)
	}
	return types
}

// Valid reports whether t is one of the defined unit types.
func (t UnitType) Valid() bool {
	return t < unitTypeCount
}

func (t UnitType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("unit_type(%d)", uint8(t))
	}
	return unitTypeNames[t]
}

// MarshalText encodes the type as its lower-case name.
func (t UnitType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownUnitType, uint8(t))
	}
	return []byte(unitTypeNames[t]), nil
}

// UnmarshalText decodes a unit type name.
func (t *UnitType) UnmarshalText(text []byte) error {
	parsed, err := ParseUnitType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseUnitType parses names like "armor" or "AIR_SUPPORT".
func ParseUnitType(s string) (UnitType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range unitTypeNames {
		if n == name {
			return UnitType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownUnitType, s)
}

// Position is a point on the simulation plane.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance between p and o.
func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(o.X-p.X, o.Y-p.Y)
}

// Stats holds the combat attributes fixed at unit creation.
type Stats struct {
	Speed          float64 `json:"speed"`
	DetectionRange float64 `json:"detectionRange"`
	AttackRange    float64 `json:"attackRange"`
	AttackPower    float64 `json:"attackPower"`
	Defense        float64 `json:"defense"`
}

// Unit is one combat agent. Strength only ever decreases and never drops
// below zero; everything in Stats is immutable once the unit exists.
type Unit struct {
	ID       uint64   `json:"id"`
	Type     UnitType `json:"type"`
	Strength float64  `json:"strength"`
	Position Position `json:"position"`
	Stats
}

// UnitState is a sampled position/strength of a unit at a given step.
type UnitState struct {
	UnitID   uint64   `json:"unitId"`
	Step     int      `json:"step"`
	Position Position `json:"position"`
	Strength float64  `json:"strength"`
}

// StateOf captures the current state of u at step.
func StateOf(u Unit, step int) UnitState {
	return UnitState{
		UnitID:   u.ID,
		Step:     step,
		Position: u.Position,
		Strength: u.Strength,
	}
}
