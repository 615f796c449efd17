// Package engine implements the combat simulation: the unit registry, the
// proximity query, engagement resolution, movement and the per-step loop.
package engine

import (
	"log/slog"
	"math/rand"
	"slices"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/combatsim/pkg/core"
)

const (
	attackerDamageScale = 0.1
	defenderDamageScale = 0.15
	minRandomFactor     = 0.8
	maxRandomFactor     = 1.2

	// maxTargetsPerStep caps how many detected units one unit engages per step.
	maxTargetsPerStep = 2

	// moveThreshold: a unit moves when a uniform draw exceeds it (30% of the time).
	moveThreshold = 0.7
)

type statRange struct{ min, max float64 }

var (
	speedRange       = statRange{0.5, 2.0}
	detectionRange   = statRange{50, 200}
	attackRangeRange = statRange{20, 150}
	attackPowerRange = statRange{0.5, 1.5}
	defenseRange     = statRange{0.3, 0.9}
)

// Option configures a Simulation.
type Option func(*Simulation)

// WithSeed seeds the simulation's random source.
func WithSeed(seed int64) Option {
	return func(s *Simulation) {
		s.seed = seed
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand injects a random source. The simulation takes ownership of it
// and Seed reports 0.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulation) {
		s.seed = 0
		s.rng = rng
	}
}

// WithLogger sets the logger used for creation and engagement events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) {
		s.log = l
	}
}

// WithObserver registers a receiver for registry notifications.
func WithObserver(o Observer) Option {
	return func(s *Simulation) {
		s.observer = o
	}
}

// WithClock overrides the wall clock used to timestamp engagements.
func WithClock(clock func() time.Time) Option {
	return func(s *Simulation) {
		s.clock = clock
	}
}

// WithMeter sets the meter for engine metrics. Defaults to the global meter.
func WithMeter(m metric.Meter) Option {
	return func(s *Simulation) {
		s.meter = m
	}
}

// Simulation owns the unit registry and the engagement log.
// It is not safe for concurrent use.
type Simulation struct {
	width, height float64

	units map[uint64]*core.Unit
	// order is the registry iteration order: live unit ids by creation.
	order       []uint64
	engagements []core.Engagement
	lastID      uint64
	step        int

	// removed counts units taken out of the registry during the current step.
	removed int

	seed     int64
	rng      *rand.Rand
	log      *slog.Logger
	observer Observer
	clock    func() time.Time
	lastTime time.Time
	meter    metric.Meter
	metrics  *instruments
}

// New creates a simulation on a width×height plane. The plane only bounds
// movement targets; unit positions are never clamped.
func New(width, height float64, opts ...Option) *Simulation {
	s := &Simulation{
		width:    width,
		height:   height,
		units:    make(map[uint64]*core.Unit),
		log:      slog.Default(),
		observer: nopObserver{},
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.seed = time.Now().UnixNano()
		s.rng = rand.New(rand.NewSource(s.seed))
	}
	if s.meter == nil {
		s.meter = defaultMeter()
	}

	ins, err := newInstruments(s.meter)
	if err != nil {
		s.log.Warn("Engine metrics disabled", "error", err)
	} else {
		s.metrics = ins
	}
	return s
}

// Seed returns the seed of the random source, or 0 if one was injected
// with WithRand.
func (s *Simulation) Seed() int64 {
	return s.seed
}

// MapSize returns the plane dimensions.
func (s *Simulation) MapSize() (width, height float64) {
	return s.width, s.height
}

// CurrentStep returns the number of steps run so far.
func (s *Simulation) CurrentStep() int {
	return s.step
}

// CreateUnit adds a unit of type t at pos with randomly sampled stats.
func (s *Simulation) CreateUnit(t core.UnitType, pos core.Position) core.Unit {
	return s.CreateUnitWithStats(t, pos, s.sampleStats())
}

// CreateUnitWithStats adds a unit with the given stats instead of sampled ones.
func (s *Simulation) CreateUnitWithStats(t core.UnitType, pos core.Position, stats core.Stats) core.Unit {
	s.lastID++
	u := &core.Unit{
		ID:       s.lastID,
		Type:     t,
		Strength: 1.0,
		Position: pos,
		Stats:    stats,
	}
	s.units[u.ID] = u
	s.order = append(s.order, u.ID)

	s.log.Info("Created unit", "id", u.ID, "type", t.String(), "x", pos.X, "y", pos.Y)
	s.observer.UnitCreated(*u)
	return *u
}

func (s *Simulation) sampleStats() core.Stats {
	return core.Stats{
		Speed:          s.uniform(speedRange),
		DetectionRange: s.uniform(detectionRange),
		AttackRange:    s.uniform(attackRangeRange),
		AttackPower:    s.uniform(attackPowerRange),
		Defense:        s.uniform(defenseRange),
	}
}

func (s *Simulation) uniform(r statRange) float64 {
	return r.min + s.rng.Float64()*(r.max-r.min)
}

// UnitCount returns the number of live units.
func (s *Simulation) UnitCount() int {
	return len(s.order)
}

// Unit returns a copy of the live unit with the given id.
func (s *Simulation) Unit(id uint64) (core.Unit, bool) {
	u, ok := s.units[id]
	if !ok {
		return core.Unit{}, false
	}
	return *u, true
}

// Units returns copies of all live units in registry order.
func (s *Simulation) Units() []core.Unit {
	out := make([]core.Unit, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.units[id])
	}
	return out
}

// Engagements returns a copy of the engagement log.
func (s *Simulation) Engagements() []core.Engagement {
	return slices.Clone(s.engagements)
}

// NearbyUnits returns the ids of all other live units within radius of the
// unit, in registry order. Unknown ids yield no results.
func (s *Simulation) NearbyUnits(id uint64, radius float64) []uint64 {
	u, ok := s.units[id]
	if !ok {
		return nil
	}

	var nearby []uint64
	for _, otherID := range s.order {
		if otherID == id {
			continue
		}
		if u.Position.DistanceTo(s.units[otherID].Position) <= radius {
			nearby = append(nearby, otherID)
		}
	}
	return nearby
}

// resolveEngagement runs one exchange between two live units. Calling it with
// an id that is no longer live is a no-op reported through ok=false.
func (s *Simulation) resolveEngagement(attackerID, defenderID uint64) (result core.EngagementResult, ok bool) {
	attacker, aok := s.units[attackerID]
	defender, dok := s.units[defenderID]
	if !aok || !dok || attackerID == defenderID {
		return core.Stalemate, false
	}

	multiplier := Multiplier(attacker.Type, defender.Type)
	effectiveAttack := attacker.AttackPower * multiplier * attacker.Strength
	effectiveDefense := defender.Defense * defender.Strength

	// One factor for both sides of the exchange.
	factor := minRandomFactor + s.rng.Float64()*(maxRandomFactor-minRandomFactor)
	attackerDamage := effectiveDefense * factor * attackerDamageScale
	defenderDamage := effectiveAttack * factor * defenderDamageScale

	attacker.Strength = max(0, attacker.Strength-attackerDamage)
	defender.Strength = max(0, defender.Strength-defenderDamage)

	switch {
	case defender.Strength <= 0:
		result = core.Victory
	case attacker.Strength <= 0:
		result = core.Defeat
	default:
		result = core.Stalemate
	}

	e := core.Engagement{
		AttackerID:   attackerID,
		DefenderID:   defenderID,
		AttackerType: attacker.Type,
		DefenderType: defender.Type,
		Result:       result,
		AttackerLoss: attackerDamage,
		DefenderLoss: defenderDamage,
		Multiplier:   multiplier,
		MutualKill:   attacker.Strength <= 0 && defender.Strength <= 0,
		Step:         s.step,
		Timestamp:    s.now(),
	}
	s.engagements = append(s.engagements, e)
	s.metrics.recordEngagement(e)
	s.log.Debug("Engagement resolved",
		"attacker", attackerID,
		"defender", defenderID,
		"result", result.String(),
		"attackerLoss", attackerDamage,
		"defenderLoss", defenderDamage,
	)
	s.observer.EngagementResolved(e)

	if attacker.Strength <= 0 {
		s.removeUnit(attackerID)
	}
	if defender.Strength <= 0 {
		s.removeUnit(defenderID)
	}
	return result, true
}

func (s *Simulation) now() time.Time {
	t := s.clock()
	if t.Before(s.lastTime) {
		return s.lastTime
	}
	s.lastTime = t
	return t
}

func (s *Simulation) removeUnit(id uint64) {
	u, ok := s.units[id]
	if !ok {
		return
	}
	delete(s.units, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.removed++

	s.log.Info("Unit destroyed", "id", id, "type", u.Type.String(), "step", s.step)
	s.metrics.recordRemoval(*u)
	s.observer.UnitDestroyed(*u, s.step)
}

// moveUnit moves a unit up to its speed toward a fresh random point on the map.
func (s *Simulation) moveUnit(id uint64) {
	u, ok := s.units[id]
	if !ok {
		return
	}

	target := core.Position{
		X: s.rng.Float64() * s.width,
		Y: s.rng.Float64() * s.height,
	}
	dist := u.Position.DistanceTo(target)

	switch {
	case dist == 0:
		return
	case dist <= u.Speed:
		u.Position = target
	default:
		u.Position = core.Position{
			X: u.Position.X + (target.X-u.Position.X)/dist*u.Speed,
			Y: u.Position.Y + (target.Y-u.Position.Y)/dist*u.Speed,
		}
	}
}

// RunStep advances the simulation by one tick: every live unit, in a fresh
// random order, engages up to two detected units, then each survivor moves
// with 30% probability.
func (s *Simulation) RunStep() core.StepStats {
	s.step++
	s.removed = 0

	stats := core.StepStats{
		Step:        s.step,
		UnitsActive: len(s.order),
	}
	s.metrics.recordActive(stats.UnitsActive)

	ids := slices.Clone(s.order)
	s.rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	for _, id := range ids {
		u, ok := s.units[id]
		if !ok {
			continue
		}

		targets := s.NearbyUnits(id, u.DetectionRange)
		if len(targets) > maxTargetsPerStep {
			targets = targets[:maxTargetsPerStep]
		}

		for _, targetID := range targets {
			// The attacker can fall in its own first exchange.
			if _, alive := s.units[id]; !alive {
				break
			}
			if _, alive := s.units[targetID]; !alive {
				continue
			}
			result, ok := s.resolveEngagement(id, targetID)
			if !ok {
				continue
			}
			stats.Engagements++
			if result.Decisive() {
				stats.UnitsDestroyed++
			}
		}
	}

	for _, id := range s.order {
		if s.rng.Float64() > moveThreshold {
			s.moveUnit(id)
		}
	}

	stats.UnitsRemoved = s.removed
	s.observer.StepCompleted(stats, s.Units())
	return stats
}
