// Package recorder turns simulation notifications into storage writes and
// metric points.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/combatsim/internal/dispatcher"
	"github.com/OCAP2/combatsim/internal/influx"
	"github.com/OCAP2/combatsim/internal/session"
	"github.com/OCAP2/combatsim/internal/storage"
	"github.com/OCAP2/combatsim/pkg/core"
)

// Event kinds routed through the dispatcher.
const (
	KindUnitCreated = "unit_created"
	KindUnitState   = "unit_state"
	KindEngagement  = "engagement"
	KindStep        = "step"
	KindStepMetric  = "metric_step"
	KindEngMetric   = "metric_engagement"
)

// ErrNotStarted is returned by Finish when Start was never called.
var ErrNotStarted = errors.New("recorder not started")

// Dependencies holds everything the recorder writes to
type Dependencies struct {
	Backend storage.Backend
	Influx  *influx.Manager // optional
	Session *session.Context
	Logger  *slog.Logger

	// SnapshotEvery samples unit states every n steps. Values below 1 mean every step.
	SnapshotEvery int
}

// Recorder implements engine.Observer for a single run.
type Recorder struct {
	deps       Dependencies
	dispatcher *dispatcher.Dispatcher
	log        *slog.Logger
	run        *core.Run
}

// New creates a recorder and registers its handlers.
func New(deps Dependencies) (*Recorder, error) {
	if deps.Backend == nil {
		deps.Backend = storage.Nop{}
	}
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SnapshotEvery < 1 {
		deps.SnapshotEvery = 1
	}

	d, err := dispatcher.New(deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	r := &Recorder{
		deps:       deps,
		dispatcher: d,
		log:        deps.Logger,
	}
	r.registerHandlers()
	return r, nil
}

func (r *Recorder) registerHandlers() {
	d := r.dispatcher

	// Unit creation is sync so states never arrive before their unit
	d.Register(KindUnitCreated, r.handleUnitCreated, dispatcher.Logged())

	d.Register(KindUnitState, r.handleUnitState, dispatcher.Buffered(10000), dispatcher.Blocking())
	d.Register(KindEngagement, r.handleEngagement, dispatcher.Buffered(2000), dispatcher.Blocking(), dispatcher.Logged())
	d.Register(KindStep, r.handleStep, dispatcher.Buffered(100), dispatcher.Blocking(), dispatcher.Logged())

	if r.deps.Influx != nil {
		// Metrics are best effort and drop when the queue is full
		d.Register(KindStepMetric, r.handleStepMetric, dispatcher.Buffered(100))
		d.Register(KindEngMetric, r.handleEngagementMetric, dispatcher.Buffered(2000))
	}
}

// Start begins recording run.
func (r *Recorder) Start(run *core.Run) error {
	if err := r.deps.Backend.StartRun(run); err != nil {
		return fmt.Errorf("starting run in storage: %w", err)
	}
	r.run = run
	r.deps.Session.SetRun(run)
	r.log.Info("Recording started", "run", run.UUID, "scenario", run.Scenario)
	return nil
}

// Finish drains every queued event and hands the summary to storage. The
// recorder accepts no events afterwards.
func (r *Recorder) Finish(summary core.Summary) error {
	if r.run == nil {
		return ErrNotStarted
	}
	r.dispatcher.Close()

	if err := r.deps.Backend.EndRun(summary); err != nil {
		return fmt.Errorf("ending run in storage: %w", err)
	}
	r.log.Info("Recording finished", "run", r.run.UUID, "steps", summary.Steps)
	return nil
}

// Close stops the dispatcher workers. Safe to call after Finish.
func (r *Recorder) Close() {
	r.dispatcher.Close()
}

// UnitCreated implements engine.Observer.
func (r *Recorder) UnitCreated(u core.Unit) {
	r.dispatch(KindUnitCreated, &u, time.Time{})
}

// EngagementResolved implements engine.Observer.
func (r *Recorder) EngagementResolved(e core.Engagement) {
	r.dispatch(KindEngagement, &e, e.Timestamp)
	r.dispatchMetric(KindEngMetric, e)
}

// UnitDestroyed implements engine.Observer. The final zero-strength state is
// always recorded so a unit's timeline ends where it fell.
func (r *Recorder) UnitDestroyed(u core.Unit, step int) {
	s := core.StateOf(u, step)
	r.dispatch(KindUnitState, &s, time.Time{})
}

// StepCompleted implements engine.Observer.
func (r *Recorder) StepCompleted(stats core.StepStats, units []core.Unit) {
	r.deps.Session.SetStep(stats.Step)

	if stats.Step%r.deps.SnapshotEvery == 0 {
		for _, u := range units {
			s := core.StateOf(u, stats.Step)
			r.dispatch(KindUnitState, &s, time.Time{})
		}
	}

	r.dispatch(KindStep, &stats, time.Time{})
	r.dispatchMetric(KindStepMetric, stats)
}

func (r *Recorder) dispatch(kind string, payload any, at time.Time) {
	if _, err := r.dispatcher.Dispatch(dispatcher.Event{Kind: kind, Payload: payload, Timestamp: at}); err != nil {
		r.log.Error("Failed to record event", "kind", kind, "error", err)
	}
}

func (r *Recorder) dispatchMetric(kind string, payload any) {
	if r.deps.Influx == nil {
		return
	}
	if _, err := r.dispatcher.Dispatch(dispatcher.Event{Kind: kind, Payload: payload}); err != nil {
		r.log.Debug("Metric dropped", "kind", kind, "error", err)
	}
}

func (r *Recorder) handleUnitCreated(e dispatcher.Event) (any, error) {
	u := e.Payload.(*core.Unit)
	if err := r.deps.Backend.AddUnit(u); err != nil {
		return nil, fmt.Errorf("failed to record unit %d: %w", u.ID, err)
	}
	return nil, nil
}

func (r *Recorder) handleUnitState(e dispatcher.Event) (any, error) {
	s := e.Payload.(*core.UnitState)
	if err := r.deps.Backend.RecordUnitState(s); err != nil {
		return nil, fmt.Errorf("failed to record state of unit %d: %w", s.UnitID, err)
	}
	return nil, nil
}

func (r *Recorder) handleEngagement(e dispatcher.Event) (any, error) {
	eng := e.Payload.(*core.Engagement)
	if err := r.deps.Backend.RecordEngagement(eng); err != nil {
		return nil, fmt.Errorf("failed to record engagement %d→%d: %w", eng.AttackerID, eng.DefenderID, err)
	}
	return nil, nil
}

func (r *Recorder) handleStep(e dispatcher.Event) (any, error) {
	s := e.Payload.(*core.StepStats)
	if err := r.deps.Backend.RecordStep(s); err != nil {
		return nil, fmt.Errorf("failed to record step %d: %w", s.Step, err)
	}
	return nil, nil
}

func (r *Recorder) handleStepMetric(e dispatcher.Event) (any, error) {
	if r.run == nil {
		return nil, ErrNotStarted
	}
	s := e.Payload.(core.StepStats)
	return nil, r.deps.Influx.WritePoint(influx.StepPoint(r.run, s, e.Timestamp))
}

func (r *Recorder) handleEngagementMetric(e dispatcher.Event) (any, error) {
	if r.run == nil {
		return nil, ErrNotStarted
	}
	eng := e.Payload.(core.Engagement)
	return nil, r.deps.Influx.WritePoint(influx.EngagementPoint(r.run, eng))
}
