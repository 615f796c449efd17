package gormstorage

import (
	"testing"
	"time"

	"github.com/OCAP2/combatsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRun_RoundTrip(t *testing.T) {
	b, db := newTestBackend(t)
	run := startTestRun(t, b)

	u1, u2 := testUnit(1), testUnit(2)
	u2.Type = core.Recon
	require.NoError(t, b.AddUnit(u1))
	require.NoError(t, b.AddUnit(u2))
	require.NoError(t, b.RecordUnitState(&core.UnitState{UnitID: 2, Step: 1, Position: core.Position{X: 3, Y: 4}, Strength: 0.5}))
	require.NoError(t, b.RecordUnitState(&core.UnitState{UnitID: 1, Step: 1, Position: core.Position{X: 1, Y: 2}, Strength: 0.9}))
	require.NoError(t, b.RecordEngagement(&core.Engagement{
		AttackerID:   1,
		DefenderID:   2,
		AttackerType: core.Armor,
		DefenderType: core.Recon,
		Result:       core.Victory,
		DefenderLoss: 0.5,
		Multiplier:   1,
		Step:         1,
		Timestamp:    time.Now(),
	}))
	require.NoError(t, b.RecordStep(&core.StepStats{Step: 1, UnitsActive: 2, Engagements: 1, UnitsDestroyed: 1, UnitsRemoved: 1}))

	end := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, b.EndRun(core.Summary{
		Steps:           1,
		Engagements:     1,
		FinalUnits:      1,
		SurvivorsByType: map[core.UnitType]int{core.Armor: 1},
		EndTime:         end,
	}))

	rec, err := LoadRun(db, run.UUID)
	require.NoError(t, err)

	assert.Equal(t, run.UUID, rec.Run.UUID)
	assert.Equal(t, "Gorm Test", rec.Run.Scenario)
	assert.Equal(t, int64(42), rec.Run.Seed)
	require.NotNil(t, rec.Summary)
	assert.Equal(t, 1, rec.Summary.FinalUnits)
	assert.Equal(t, 1, rec.Summary.SurvivorsByType[core.Armor])
	assert.WithinDuration(t, end, rec.Summary.EndTime, time.Second)

	require.Len(t, rec.Units, 2)
	assert.Equal(t, core.Recon, rec.Units[1].Type)
	assert.Equal(t, u1.Stats, rec.Units[0].Stats)

	require.Len(t, rec.States, 2)
	assert.Equal(t, uint64(1), rec.States[0].UnitID)
	assert.Equal(t, core.Position{X: 3, Y: 4}, rec.States[1].Position)

	require.Len(t, rec.Engagements, 1)
	assert.Equal(t, core.Victory, rec.Engagements[0].Result)
	assert.Equal(t, []core.StepStats{{Step: 1, UnitsActive: 2, Engagements: 1, UnitsDestroyed: 1, UnitsRemoved: 1}}, rec.Steps)
}

func TestLoadRun_NotFound(t *testing.T) {
	_, db := newTestBackend(t)
	_, err := LoadRun(db, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	b, db := newTestBackend(t)

	first := startTestRun(t, b)
	require.NoError(t, b.EndRun(core.Summary{Steps: 3, EndTime: time.Now()}))
	second := startTestRun(t, b)

	runs, err := ListRuns(db)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.UUID, runs[0].Run.UUID)
	require.NotNil(t, runs[0].Summary)
	assert.Equal(t, 3, runs[0].Summary.Steps)
	assert.Equal(t, second.UUID, runs[1].Run.UUID)
	assert.Nil(t, runs[1].Summary, "run still in progress")
}
