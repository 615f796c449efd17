package engine

import "github.com/OCAP2/combatsim/pkg/core"

// Observer receives notifications as the simulation mutates its registry.
// Callbacks run synchronously on the stepping goroutine and receive copies.
type Observer interface {
	UnitCreated(u core.Unit)
	EngagementResolved(e core.Engagement)
	UnitDestroyed(u core.Unit, step int)
	StepCompleted(stats core.StepStats, units []core.Unit)
}

type nopObserver struct{}

func (nopObserver) UnitCreated(core.Unit)                     {}
func (nopObserver) EngagementResolved(core.Engagement)        {}
func (nopObserver) UnitDestroyed(core.Unit, int)              {}
func (nopObserver) StepCompleted(core.StepStats, []core.Unit) {}
