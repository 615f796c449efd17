package sqlitestorage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/combatsim/internal/database"
	"github.com/OCAP2/combatsim/internal/model"
	"github.com/OCAP2/combatsim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRun() *core.Run {
	run := core.NewRun("Night Raid", 800, 600, 1, 5)
	run.StartTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	return run
}

func TestDumpFileName(t *testing.T) {
	assert.Equal(t, "Night_Raid_20240506_070809.db", DumpFileName(testRun()))
	assert.Equal(t, "run_20240506_070809.db", DumpFileName(&core.Run{StartTime: testRun().StartTime}))
}

func TestEndRun_WritesFinalDump(t *testing.T) {
	dir := t.TempDir()
	b, err := New(Config{OutputDir: dir}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	run := testRun()
	require.NoError(t, b.StartRun(run))
	require.NoError(t, b.AddUnit(&core.Unit{ID: 1, Type: core.Recon, Strength: 100}))
	require.NoError(t, b.RecordEngagement(&core.Engagement{AttackerID: 1, DefenderID: 2, Result: core.Stalemate}))
	require.NoError(t, b.EndRun(core.Summary{Steps: 3, EndTime: time.Now()}))

	path := b.ExportedFilePath()
	assert.Equal(t, filepath.Join(dir, "Night_Raid_20240506_070809.db"), path)
	require.FileExists(t, path)

	disk, err := database.GetSqliteDB(path, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(disk) })

	var units, engagements int64
	require.NoError(t, disk.Model(&model.Unit{}).Count(&units).Error)
	require.NoError(t, disk.Model(&model.Engagement{}).Count(&engagements).Error)
	assert.Equal(t, int64(1), units)
	assert.Equal(t, int64(1), engagements)

	var row model.Run
	require.NoError(t, disk.First(&row).Error)
	assert.Equal(t, 3, row.Summary.Steps)
}

func TestConfiguredDumpPathWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "fixed.db")
	b, err := New(Config{DumpPath: path, OutputDir: t.TempDir()}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.StartRun(testRun()))
	assert.Equal(t, path, b.ExportedFilePath())

	require.NoError(t, b.Dump())
	assert.FileExists(t, path)
}

func TestDump_NoPath(t *testing.T) {
	b, err := New(Config{}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	assert.ErrorIs(t, b.Dump(), database.ErrNoDumpPath)
}

func TestDumpLoop_WritesPeriodically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.db")
	b, err := New(Config{DumpPath: path, DumpInterval: 20 * time.Millisecond}, quietLogger())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.StartRun(testRun()))

	assert.Eventually(t, func() bool {
		_, statErr := os.Stat(path)
		return statErr == nil
	}, 2*time.Second, 20*time.Millisecond)
}
