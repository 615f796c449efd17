package convert

import (
	"encoding/json"

	"github.com/OCAP2/combatsim/internal/geo"
	"github.com/OCAP2/combatsim/internal/model"
	"github.com/OCAP2/combatsim/pkg/core"
)

// UnitToCore converts a GORM Unit to a core.Unit.
// GORM Unit.ObjectID maps to core Unit.ID. Unknown type names map to Infantry.
func UnitToCore(u model.Unit) core.Unit {
	t, _ := core.ParseUnitType(u.UnitType)
	return core.Unit{
		ID:       u.ObjectID,
		Type:     t,
		Strength: u.Strength,
		Position: geo.PositionFromPoint(u.SpawnPosition),
		Stats: core.Stats{
			Speed:          u.Speed,
			DetectionRange: u.DetectionRange,
			AttackRange:    u.AttackRange,
			AttackPower:    u.AttackPower,
			Defense:        u.Defense,
		},
	}
}

// UnitStateToCore converts a GORM UnitState to a core.UnitState.
func UnitStateToCore(s model.UnitState) core.UnitState {
	return core.UnitState{
		UnitID:   s.UnitObjectID,
		Step:     s.Step,
		Position: geo.PositionFromPoint(s.Position),
		Strength: s.Strength,
	}
}

// EngagementToCore converts a GORM Engagement to a core.Engagement.
func EngagementToCore(e model.Engagement) core.Engagement {
	attacker, _ := core.ParseUnitType(e.AttackerType)
	defender, _ := core.ParseUnitType(e.DefenderType)
	var result core.EngagementResult
	if err := result.UnmarshalText([]byte(e.Result)); err != nil {
		result = core.Stalemate
	}
	return core.Engagement{
		AttackerID:   e.AttackerObjectID,
		DefenderID:   e.DefenderObjectID,
		AttackerType: attacker,
		DefenderType: defender,
		Result:       result,
		AttackerLoss: e.AttackerLoss,
		DefenderLoss: e.DefenderLoss,
		Multiplier:   e.Multiplier,
		MutualKill:   e.MutualKill,
		Step:         e.Step,
		Timestamp:    e.Time,
	}
}

// RunToCore converts a GORM Run to a core.Run and, when the run has ended, its summary.
func RunToCore(m model.Run) (core.Run, *core.Summary) {
	r := core.Run{
		ID:        m.ID,
		UUID:      m.UUID,
		Scenario:  m.Scenario,
		MapWidth:  m.MapWidth,
		MapHeight: m.MapHeight,
		Seed:      m.Seed,
		MaxSteps:  m.MaxSteps,
		StartTime: m.StartTime,
		Version:   m.Version,
	}
	if m.EndTime == nil {
		return r, nil
	}
	s := &core.Summary{
		Steps:             m.Summary.Steps,
		Engagements:       m.Summary.Engagements,
		UnitsDestroyed:    m.Summary.UnitsDestroyed,
		UnitsRemoved:      m.Summary.UnitsRemoved,
		InitialUnits:      m.Summary.InitialUnits,
		FinalUnits:        m.Summary.FinalUnits,
		LoggedEngagements: m.Summary.LoggedEngagements,
		Terminated:        m.Summary.Terminated,
		EndTime:           *m.EndTime,
	}
	if len(m.Survivors) > 0 {
		_ = json.Unmarshal(m.Survivors, &s.SurvivorsByType)
	}
	return r, s
}

// StepStatToCore converts a GORM StepStat to core.StepStats.
func StepStatToCore(s model.StepStat) core.StepStats {
	return core.StepStats{
		Step:           s.Step,
		UnitsActive:    s.UnitsActive,
		Engagements:    s.Engagements,
		UnitsDestroyed: s.UnitsDestroyed,
		UnitsRemoved:   s.UnitsRemoved,
	}
}
