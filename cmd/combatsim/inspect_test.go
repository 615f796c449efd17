package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/combatsim/internal/database"
	gormstorage "github.com/OCAP2/combatsim/internal/storage/gorm"
	"github.com/OCAP2/combatsim/pkg/core"
)

// writeRecording stores one finished and one unfinished run in a SQLite file.
func writeRecording(t *testing.T) (path string, finished, open *core.Run) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	path = filepath.Join(t.TempDir(), "runs.db")

	db, err := database.GetSqliteDB(path, log)
	require.NoError(t, err)
	b := gormstorage.New(gormstorage.Dependencies{DB: db, Logger: log})
	require.NoError(t, b.Init())

	finished = core.NewRun("Ridge", 800, 600, 7, 10)
	require.NoError(t, b.StartRun(finished))
	require.NoError(t, b.AddUnit(&core.Unit{ID: 1, Type: core.Armor, Strength: 1}))
	require.NoError(t, b.RecordStep(&core.StepStats{Step: 1, UnitsActive: 1}))
	require.NoError(t, b.EndRun(core.Summary{
		Steps:           1,
		FinalUnits:      1,
		SurvivorsByType: map[core.UnitType]int{core.Armor: 1},
		EndTime:         time.Now(),
	}))

	open = core.NewRun("Valley", 800, 600, 8, 10)
	require.NoError(t, b.StartRun(open))
	require.NoError(t, b.Close())
	return path, finished, open
}

func TestInspect_ListsRuns(t *testing.T) {
	path, finished, open := writeRecording(t)

	var buf bytes.Buffer
	require.NoError(t, inspect([]string{path}, &buf))

	out := buf.String()
	assert.Contains(t, out, finished.UUID)
	assert.Contains(t, out, "1 steps, 1 units left")
	assert.Contains(t, out, open.UUID)
	assert.Contains(t, out, "in progress")
}

func TestInspect_PrintsRun(t *testing.T) {
	path, finished, open := writeRecording(t)

	var buf bytes.Buffer
	require.NoError(t, inspect([]string{path, finished.UUID, open.UUID}, &buf))

	out := buf.String()
	assert.Contains(t, out, "Units: 1, states: 0, engagements: 0, steps: 1")
	assert.Contains(t, out, "Run: "+finished.UUID+" (Ridge, seed 7)")
	assert.Contains(t, out, "  armor: 1")
	assert.Contains(t, out, "Run "+open.UUID+" has not finished.")
}

func TestInspect_JSON(t *testing.T) {
	path, finished, _ := writeRecording(t)

	var buf bytes.Buffer
	require.NoError(t, inspect([]string{"--json", path, finished.UUID}, &buf))

	var rec gormstorage.RunRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, finished.UUID, rec.Run.UUID)
	require.NotNil(t, rec.Summary)
	assert.Equal(t, 1, rec.Summary.SurvivorsByType[core.Armor])
	assert.Len(t, rec.Units, 1)
}

func TestInspect_Errors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorContains(t, inspect(nil, &buf), "usage")
	assert.ErrorContains(t, inspect([]string{filepath.Join(t.TempDir(), "missing.db")}, &buf), "opening recording")

	path, _, _ := writeRecording(t)
	assert.ErrorIs(t, inspect([]string{path, "no-such-run"}, &buf), gormstorage.ErrRunNotFound)
}
