package recorder

import (
	"bufio"
	"compress/gzip"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OCAP2/combatsim/internal/config"
	"github.com/OCAP2/combatsim/internal/engine"
	"github.com/OCAP2/combatsim/internal/influx"
	"github.com/OCAP2/combatsim/internal/session"
	"github.com/OCAP2/combatsim/internal/storage/memory"
	"github.com/OCAP2/combatsim/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStats() core.Stats {
	return core.Stats{Speed: 1, DetectionRange: 100, AttackRange: 50, AttackPower: 0.1, Defense: 0.5}
}

func newMemoryRecorder(t *testing.T, snapshotEvery int) (*Recorder, *memory.Backend, *session.Context) {
	t.Helper()
	backend := memory.New(config.MemoryConfig{OutputDir: t.TempDir()}, nil)
	sess := session.NewContext()
	rec, err := New(Dependencies{
		Backend:       backend,
		Session:       sess,
		Logger:        discardLogger(),
		SnapshotEvery: snapshotEvery,
	})
	require.NoError(t, err)
	t.Cleanup(rec.Close)
	return rec, backend, sess
}

func newSim(rec *Recorder) *engine.Simulation {
	return engine.New(800, 600,
		engine.WithSeed(7),
		engine.WithLogger(discardLogger()),
		engine.WithObserver(rec),
	)
}

func TestRecorder_RecordsSimulation(t *testing.T) {
	rec, backend, sess := newMemoryRecorder(t, 1)
	run := core.NewRun("Skirmish", 800, 600, 7, 3)
	require.NoError(t, rec.Start(run))
	assert.Equal(t, run, sess.GetRun())

	sim := newSim(rec)
	a := sim.CreateUnitWithStats(core.Infantry, core.Position{X: 100, Y: 100}, testStats())
	b := sim.CreateUnitWithStats(core.Armor, core.Position{X: 110, Y: 100}, testStats())

	var summary core.Summary
	for i := 0; i < 3; i++ {
		summary.Add(sim.RunStep())
	}
	assert.Equal(t, 3, sess.Step())

	require.NoError(t, rec.Finish(summary))

	assert.Equal(t, sim.Engagements(), backend.Engagements())
	require.Len(t, backend.Steps(), 3)
	for i, s := range backend.Steps() {
		assert.Equal(t, i+1, s.Step)
	}

	for _, id := range []uint64{a.ID, b.ID} {
		record, ok := backend.GetUnit(id)
		require.True(t, ok)
		require.Len(t, record.States, 3)
		assert.Equal(t, 3, record.States[2].Step)
	}
	assert.NotEmpty(t, backend.ExportedFilePath())
}

func TestRecorder_SnapshotEvery(t *testing.T) {
	rec, backend, _ := newMemoryRecorder(t, 2)
	require.NoError(t, rec.Start(core.NewRun("Sparse", 800, 600, 7, 5)))

	sim := newSim(rec)
	// too far apart to ever detect each other
	a := sim.CreateUnitWithStats(core.Recon, core.Position{X: 0, Y: 0}, testStats())
	sim.CreateUnitWithStats(core.Recon, core.Position{X: 700, Y: 500}, testStats())

	var summary core.Summary
	for i := 0; i < 5; i++ {
		summary.Add(sim.RunStep())
	}
	require.NoError(t, rec.Finish(summary))

	record, ok := backend.GetUnit(a.ID)
	require.True(t, ok)
	require.Len(t, record.States, 2)
	assert.Equal(t, 2, record.States[0].Step)
	assert.Equal(t, 4, record.States[1].Step)
	assert.Empty(t, backend.Engagements())
}

func TestRecorder_DestroyedUnitGetsFinalState(t *testing.T) {
	rec, backend, _ := newMemoryRecorder(t, 100)
	require.NoError(t, rec.Start(core.NewRun("Last stand", 800, 600, 7, 1)))

	u := core.Unit{ID: 1, Type: core.Artillery, Strength: 1}
	rec.UnitCreated(u)
	u.Strength = 0
	rec.UnitDestroyed(u, 4)
	require.NoError(t, rec.Finish(core.Summary{}))

	record, ok := backend.GetUnit(1)
	require.True(t, ok)
	require.Len(t, record.States, 1)
	assert.Equal(t, 4, record.States[0].Step)
	assert.Zero(t, record.States[0].Strength)
}

func TestRecorder_FinishBeforeStart(t *testing.T) {
	rec, _, _ := newMemoryRecorder(t, 1)
	assert.ErrorIs(t, rec.Finish(core.Summary{}), ErrNotStarted)
}

func TestRecorder_DefaultsToNopStorage(t *testing.T) {
	rec, err := New(Dependencies{Logger: discardLogger()})
	require.NoError(t, err)
	defer rec.Close()

	// falls back to the no-op backend
	require.NoError(t, rec.Start(core.NewRun("Nop", 1, 1, 1, 1)))
	rec.StepCompleted(core.StepStats{Step: 1}, nil)
	require.NoError(t, rec.Finish(core.Summary{Steps: 1}))
}

func TestRecorder_WritesInfluxPoints(t *testing.T) {
	backupPath := filepath.Join(t.TempDir(), "influx_backup.log.gzip")
	mgr := influx.NewManager(config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
	}, zerolog.Nop(), backupPath)
	require.NoError(t, mgr.Connect(context.Background()))

	rec, err := New(Dependencies{
		Backend: memory.New(config.MemoryConfig{OutputDir: t.TempDir()}, nil),
		Influx:  mgr,
		Logger:  discardLogger(),
	})
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.Start(core.NewRun("Metrics", 800, 600, 7, 2)))
	sim := newSim(rec)
	sim.CreateUnitWithStats(core.Infantry, core.Position{X: 100, Y: 100}, testStats())
	sim.CreateUnitWithStats(core.Armor, core.Position{X: 110, Y: 100}, testStats())

	var summary core.Summary
	for i := 0; i < 2; i++ {
		summary.Add(sim.RunStep())
	}
	require.NoError(t, rec.Finish(summary))
	require.NoError(t, mgr.Close())

	f, err := os.Open(backupPath)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var steps, engagements int
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		switch {
		case strings.HasPrefix(scanner.Text(), influx.MeasurementStep+","):
			steps++
		case strings.HasPrefix(scanner.Text(), influx.MeasurementEngagement+","):
			engagements++
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, steps)
	assert.Equal(t, len(sim.Engagements()), engagements)
}
