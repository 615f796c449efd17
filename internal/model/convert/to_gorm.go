// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"time"

	"github.com/OCAP2/combatsim/internal/geo"
	"github.com/OCAP2/combatsim/internal/model"
	"github.com/OCAP2/combatsim/pkg/core"
	"gorm.io/datatypes"
)

// survivorsToJSON converts per-type survivor counts to datatypes.JSON keyed by type name.
func survivorsToJSON(survivors map[core.UnitType]int) datatypes.JSON {
	if len(survivors) == 0 {
		return datatypes.JSON("{}")
	}
	data, err := json.Marshal(survivors)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// CoreToRun converts a core.Run to a GORM model.Run.
// core.Run.ID maps to the GORM primary key and is zero until the run is created.
func CoreToRun(r core.Run) model.Run {
	m := model.Run{
		UUID:      r.UUID,
		Scenario:  r.Scenario,
		MapWidth:  r.MapWidth,
		MapHeight: r.MapHeight,
		Seed:      r.Seed,
		MaxSteps:  r.MaxSteps,
		StartTime: r.StartTime,
		Version:   r.Version,
		Survivors: datatypes.JSON("{}"),
	}
	m.ID = r.ID
	return m
}

// ApplySummary writes the end-of-run totals onto a run row.
func ApplySummary(m *model.Run, s core.Summary) {
	end := s.EndTime
	m.EndTime = &end
	m.Summary = model.RunSummary{
		Steps:             s.Steps,
		Engagements:       s.Engagements,
		UnitsDestroyed:    s.UnitsDestroyed,
		UnitsRemoved:      s.UnitsRemoved,
		InitialUnits:      s.InitialUnits,
		FinalUnits:        s.FinalUnits,
		LoggedEngagements: s.LoggedEngagements,
		Terminated:        s.Terminated,
	}
	m.Survivors = survivorsToJSON(s.SurvivorsByType)
}

// CoreToUnit converts a core.Unit to a GORM model.Unit.
// core.Unit.ID maps to GORM Unit.ObjectID.
func CoreToUnit(runID uint, u core.Unit) model.Unit {
	return model.Unit{
		RunID:          runID,
		ObjectID:       u.ID,
		UnitType:       u.Type.String(),
		Strength:       u.Strength,
		Speed:          u.Speed,
		DetectionRange: u.DetectionRange,
		AttackRange:    u.AttackRange,
		AttackPower:    u.AttackPower,
		Defense:        u.Defense,
		SpawnPosition:  geo.PointFromPosition(u.Position),
	}
}

// CoreToUnitState converts a core.UnitState to a GORM model.UnitState.
func CoreToUnitState(runID uint, s core.UnitState, at time.Time) model.UnitState {
	return model.UnitState{
		Time:         at,
		RunID:        runID,
		Step:         s.Step,
		UnitObjectID: s.UnitID,
		Position:     geo.PointFromPosition(s.Position),
		Strength:     s.Strength,
	}
}

// CoreToEngagement converts a core.Engagement to a GORM model.Engagement.
func CoreToEngagement(runID uint, e core.Engagement) model.Engagement {
	return model.Engagement{
		Time:             e.Timestamp,
		RunID:            runID,
		Step:             e.Step,
		AttackerObjectID: e.AttackerID,
		DefenderObjectID: e.DefenderID,
		AttackerType:     e.AttackerType.String(),
		DefenderType:     e.DefenderType.String(),
		Result:           e.Result.String(),
		AttackerLoss:     e.AttackerLoss,
		DefenderLoss:     e.DefenderLoss,
		Multiplier:       e.Multiplier,
		MutualKill:       e.MutualKill,
	}
}

// CoreToStepStat converts core.StepStats to a GORM model.StepStat.
func CoreToStepStat(runID uint, s core.StepStats, at time.Time) model.StepStat {
	return model.StepStat{
		Time:           at,
		RunID:          runID,
		Step:           s.Step,
		UnitsActive:    s.UnitsActive,
		Engagements:    s.Engagements,
		UnitsDestroyed: s.UnitsDestroyed,
		UnitsRemoved:   s.UnitsRemoved,
	}
}
