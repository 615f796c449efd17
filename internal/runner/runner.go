// Package runner drives a simulation for a step budget and summarizes it.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/OCAP2/combatsim/pkg/core"
)

// Simulation is the part of engine.Simulation the runner drives.
type Simulation interface {
	RunStep() core.StepStats
	UnitCount() int
	Units() []core.Unit
	Engagements() []core.Engagement
}

// Option configures Run.
type Option func(*options)

type options struct {
	log    *slog.Logger
	onStep func(core.StepStats)
	clock  func() time.Time
}

// WithLogger sets the logger for step progress and the summary.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// OnStep registers a callback invoked after every step.
func OnStep(fn func(core.StepStats)) Option {
	return func(o *options) {
		o.onStep = fn
	}
}

// WithClock overrides the clock used for the summary end time.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// Run steps sim until maxSteps steps have run, at most one unit remains, or
// ctx is done. The summary is complete in every case; the error is ctx.Err()
// when the run was cut short by the context.
func Run(ctx context.Context, sim Simulation, maxSteps int, opts ...Option) (core.Summary, error) {
	o := options{log: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	summary := core.Summary{InitialUnits: sim.UnitCount()}
	o.log.Info("Starting simulation", "units", summary.InitialUnits, "maxSteps", maxSteps)

	var err error
	for step := 1; step <= maxSteps; step++ {
		if err = ctx.Err(); err != nil {
			o.log.Warn("Simulation cancelled", "step", step, "error", err)
			break
		}

		o.log.Info("Step", "step", step)
		stats := sim.RunStep()
		summary.Add(stats)
		if o.onStep != nil {
			o.onStep(stats)
		}

		if sim.UnitCount() <= 1 {
			summary.Terminated = true
			o.log.Info("Simulation complete", "step", step, "remaining", sim.UnitCount())
			break
		}
	}

	summary.FinalUnits = sim.UnitCount()
	summary.LoggedEngagements = len(sim.Engagements())
	summary.SurvivorsByType = SurvivorsByType(sim.Units())
	summary.EndTime = o.clock()

	logSummary(o.log, summary)
	return summary, err
}

// SurvivorsByType counts units per type. Every type is present, zero or not.
func SurvivorsByType(units []core.Unit) map[core.UnitType]int {
	counts := make(map[core.UnitType]int, core.NumUnitTypes)
	for _, t := range core.AllUnitTypes() {
		counts[t] = 0
	}
	for _, u := range units {
		counts[u.Type]++
	}
	return counts
}

func logSummary(log *slog.Logger, s core.Summary) {
	log.Info("=== Summary ===")
	log.Info("Engagements", "count", s.Engagements)
	log.Info("Units destroyed", "count", s.UnitsDestroyed, "removed", s.UnitsRemoved)
	log.Info("Final units", "count", s.FinalUnits)
	log.Info("Total engagements", "count", s.LoggedEngagements)

	attrs := make([]any, 0, 2*core.NumUnitTypes)
	for _, t := range core.AllUnitTypes() {
		attrs = append(attrs, t.String(), s.SurvivorsByType[t])
	}
	log.Info("Survivors by type", attrs...)
}
