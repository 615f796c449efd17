// internal/storage/memory/export_test.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/combatsim/internal/config"
	"github.com/OCAP2/combatsim/internal/geo"
	"github.com/OCAP2/combatsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSampleRun(t *testing.T, b *Backend) {
	t.Helper()
	require.NoError(t, b.StartRun(testRun()))
	require.NoError(t, b.AddUnit(testUnit(2, core.Armor)))
	require.NoError(t, b.AddUnit(testUnit(1, core.Infantry)))
	require.NoError(t, b.RecordUnitState(&core.UnitState{UnitID: 1, Step: 1, Position: core.Position{X: 11, Y: 5}, Strength: 70}))
	require.NoError(t, b.RecordEngagement(&core.Engagement{
		AttackerID: 2, DefenderID: 1, AttackerType: core.Armor, DefenderType: core.Infantry,
		Result: core.Stalemate, Multiplier: 1.5, Step: 1,
	}))
	require.NoError(t, b.RecordStep(&core.StepStats{Step: 1, UnitsActive: 2, Engagements: 1}))
	require.NoError(t, b.RecordStep(&core.StepStats{Step: 2, UnitsActive: 2}))
	require.NoError(t, b.EndRun(core.Summary{
		Steps:           2,
		Engagements:     1,
		InitialUnits:    2,
		FinalUnits:      2,
		SurvivorsByType: map[core.UnitType]int{core.Armor: 1, core.Infantry: 1},
		EndTime:         time.Date(2024, 3, 1, 12, 31, 0, 0, time.UTC),
	}))
}

func readExport(t *testing.T, path string, compressed bool) map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out map[string]any
	if compressed {
		gz, err := gzip.NewReader(f)
		require.NoError(t, err)
		defer gz.Close()
		require.NoError(t, json.NewDecoder(gz).Decode(&out))
	} else {
		require.NoError(t, json.NewDecoder(f).Decode(&out))
	}
	return out
}

func TestExportFileName(t *testing.T) {
	run := &core.Run{Scenario: "Op: Red Dawn", StartTime: time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)}

	assert.Equal(t, "Op__Red_Dawn_20240301_123000.json.gz", ExportFileName(run, true))
	assert.Equal(t, "Op__Red_Dawn_20240301_123000.json", ExportFileName(run, false))
	assert.Equal(t, "run_20240301_123000.json", ExportFileName(&core.Run{StartTime: run.StartTime}, false))
}

func TestExport_Uncompressed(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: false}, nil)
	recordSampleRun(t, b)

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Test_Skirmish_20240301_123000.json"), path)

	out := readExport(t, path, false)
	assert.Equal(t, "Test Skirmish", out["scenario"])
	assert.Equal(t, float64(2), out["endStep"])
	assert.NotContains(t, out, "origin")

	entities := out["entities"].([]any)
	require.Len(t, entities, 2)
	first := entities[0].(map[string]any)
	assert.Equal(t, float64(1), first["id"], "entities are ordered by id")
	assert.Equal(t, "infantry", first["type"])
	assert.Equal(t, float64(100), first["initialStrength"])
	assert.Equal(t, float64(70), first["strength"], "strength follows the last sampled state")

	second := entities[1].(map[string]any)
	assert.Equal(t, float64(100), second["initialStrength"])
	assert.Equal(t, float64(100), second["strength"], "units without samples keep their initial strength")

	positions := first["positions"].([]any)
	require.Len(t, positions, 1)
	assert.Equal(t, []any{float64(1), []any{float64(11), float64(5)}, float64(70)}, positions[0])

	engagements := out["engagements"].([]any)
	require.Len(t, engagements, 1)
	assert.Equal(t, "stalemate", engagements[0].(map[string]any)["result"])

	summary := out["summary"].(map[string]any)
	assert.Equal(t, map[string]any{"armor": float64(1), "infantry": float64(1)}, summary["survivorsByType"])
}

func TestExport_Compressed(t *testing.T) {
	dir := t.TempDir()
	b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: true}, nil)
	recordSampleRun(t, b)

	path := b.ExportedFilePath()
	assert.Equal(t, ".gz", filepath.Ext(path))

	out := readExport(t, path, true)
	assert.Len(t, out["steps"].([]any), 2)
}

func TestExport_WithProjection(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()}, geo.NewProjector(10, 50))
	recordSampleRun(t, b)

	out := readExport(t, b.ExportedFilePath(), false)

	origin := out["origin"].([]any)
	assert.InDelta(t, 10, origin[0].(float64), 1e-6)
	assert.InDelta(t, 50, origin[1].(float64), 1e-6)

	pos := out["entities"].([]any)[0].(map[string]any)["positions"].([]any)[0].([]any)
	require.Len(t, pos, 4)
	lonLat := pos[3].([]any)
	assert.Greater(t, lonLat[0].(float64), 10.0)
	assert.Greater(t, lonLat[1].(float64), 50.0)
}

func TestExport_CreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	b := New(config.MemoryConfig{OutputDir: dir}, nil)
	recordSampleRun(t, b)

	assert.FileExists(t, b.ExportedFilePath())
}
