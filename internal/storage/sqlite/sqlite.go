// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the SQLite-specific parts are the in-memory DB,
// the periodic dump and a final dump when the run ends.
package sqlitestorage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/OCAP2/combatsim/internal/database"
	gormstorage "github.com/OCAP2/combatsim/internal/storage/gorm"
	"github.com/OCAP2/combatsim/pkg/core"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // target of VACUUM INTO; derived from OutputDir and the run when empty
	OutputDir    string
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg Config
	log *slog.Logger

	mu       sync.Mutex
	dumpPath string
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new SQLite storage backend on a private in-memory database.
func New(cfg Config, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := database.GetSqliteDB("", log)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:     db,
			Logger: log,
		}),
		cfg:      cfg,
		log:      log,
		dumpPath: cfg.DumpPath,
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpInterval > 0 {
		b.stopChan = make(chan struct{})
		b.done = make(chan struct{})
		go b.dumpLoop()
	}
	return nil
}

// StartRun creates the run and, without a configured dump path, derives one from the run.
func (b *Backend) StartRun(run *core.Run) error {
	if err := b.Backend.StartRun(run); err != nil {
		return err
	}
	if b.cfg.DumpPath == "" {
		b.mu.Lock()
		b.dumpPath = filepath.Join(b.cfg.OutputDir, DumpFileName(run))
		b.mu.Unlock()
	}
	return nil
}

// EndRun stores the summary and writes a final dump.
func (b *Backend) EndRun(summary core.Summary) error {
	if err := b.Backend.EndRun(summary); err != nil {
		return err
	}
	return b.Dump()
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
	}
	return b.Backend.Close()
}

// ExportedFilePath returns the dump target.
func (b *Backend) ExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dumpPath
}

// Dump flushes queued rows and snapshots the database to disk.
func (b *Backend) Dump() error {
	path := b.ExportedFilePath()
	if path == "" {
		return database.ErrNoDumpPath
	}
	flushErr := b.Flush()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Join(flushErr, fmt.Errorf("failed to create dump directory: %w", err))
	}
	took, err := database.DumpMemoryDBToDisk(b.DB(), path)
	if err != nil {
		return errors.Join(flushErr, err)
	}
	b.log.Debug("Dumped to disk", "path", path, "duration", took)
	return flushErr
}

// DumpFileName builds "<scenario>_<start>.db" with spaces and colons replaced.
func DumpFileName(run *core.Run) string {
	name := strings.NewReplacer(" ", "_", ":", "_").Replace(run.Scenario)
	if name == "" {
		name = "run"
	}
	return fmt.Sprintf("%s_%s.db", name, run.StartTime.Format("20060102_150405"))
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if b.ExportedFilePath() == "" {
				continue
			}
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
