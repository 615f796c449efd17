// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/combatsim/internal/database"
	"github.com/OCAP2/combatsim/internal/model"
	"github.com/OCAP2/combatsim/internal/model/convert"
	"github.com/OCAP2/combatsim/internal/queue"
	"github.com/OCAP2/combatsim/pkg/core"

	"gorm.io/gorm"
)

const (
	defaultFlushInterval = 2 * time.Second
	defaultBatchSize     = 5000
)

var (
	// ErrNoDB is returned by Init when no connection was injected.
	ErrNoDB = errors.New("no database connection")
	// ErrNoRun is returned when rows arrive before StartRun.
	ErrNoRun = errors.New("no run started")
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	FlushInterval time.Duration
	BatchSize     int
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	Units       *queue.Queue[model.Unit]
	UnitStates  *queue.Queue[model.UnitState]
	Engagements *queue.Queue[model.Engagement]
	StepStats   *queue.Queue[model.StepStat]
}

func newQueues() *queues {
	return &queues{
		Units:       queue.New[model.Unit](),
		UnitStates:  queue.New[model.UnitState](),
		Engagements: queue.New[model.Engagement](),
		StepStats:   queue.New[model.StepStat](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps   Dependencies
	queues *queues
	runID  atomic.Uint64

	runMu sync.Mutex
	run   model.Run

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	if err := database.Setup(b.deps.DB, b.deps.Logger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer, flushes what is still queued and closes the connection.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
		<-b.done
		b.stopChan = nil
	}
	if b.deps.DB == nil {
		return nil
	}
	flushErr := b.Flush()
	return errors.Join(flushErr, database.Close(b.deps.DB))
}

// StartRun inserts the run row and assigns its ID to run.ID.
func (b *Backend) StartRun(run *core.Run) error {
	row := convert.CoreToRun(*run)
	row.ID = 0
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	run.ID = row.ID

	b.runMu.Lock()
	b.run = row
	b.runMu.Unlock()
	b.runID.Store(uint64(row.ID))

	b.deps.Logger.Info("Run row created", "runId", row.ID, "uuid", row.UUID)
	return nil
}

// EndRun flushes pending rows and stores the summary on the run row.
func (b *Backend) EndRun(summary core.Summary) error {
	if b.runID.Load() == 0 {
		return ErrNoRun
	}
	if err := b.Flush(); err != nil {
		return err
	}

	b.runMu.Lock()
	defer b.runMu.Unlock()
	convert.ApplySummary(&b.run, summary)
	if err := b.deps.DB.Save(&b.run).Error; err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

func (b *Backend) currentRunID() (uint, error) {
	id := uint(b.runID.Load())
	if id == 0 {
		return 0, ErrNoRun
	}
	return id, nil
}

// AddUnit queues a unit row.
func (b *Backend) AddUnit(u *core.Unit) error {
	runID, err := b.currentRunID()
	if err != nil {
		return err
	}
	b.queues.Units.Push(convert.CoreToUnit(runID, *u))
	return nil
}

// RecordUnitState queues a unit state row.
func (b *Backend) RecordUnitState(s *core.UnitState) error {
	runID, err := b.currentRunID()
	if err != nil {
		return err
	}
	b.queues.UnitStates.Push(convert.CoreToUnitState(runID, *s, time.Now()))
	return nil
}

// RecordEngagement queues an engagement row.
func (b *Backend) RecordEngagement(e *core.Engagement) error {
	runID, err := b.currentRunID()
	if err != nil {
		return err
	}
	b.queues.Engagements.Push(convert.CoreToEngagement(runID, *e))
	return nil
}

// RecordStep queues a step counters row.
func (b *Backend) RecordStep(s *core.StepStats) error {
	runID, err := b.currentRunID()
	if err != nil {
		return err
	}
	b.queues.StepStats.Push(convert.CoreToStepStat(runID, *s, time.Now()))
	return nil
}

// Pending returns the number of queued rows not yet written.
func (b *Backend) Pending() int {
	return b.queues.Units.Len() + b.queues.UnitStates.Len() +
		b.queues.Engagements.Len() + b.queues.StepStats.Len()
}

// Flush writes every queue to the database. Units go first so states can reference them.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	db := b.deps.DB
	size := b.deps.BatchSize
	return errors.Join(
		writeQueue(db, b.queues.Units, "units", size),
		writeQueue(db, b.queues.UnitStates, "unit states", size),
		writeQueue(db, b.queues.Engagements, "engagements", size),
		writeQueue(db, b.queues.StepStats, "step stats", size),
	)
}

// writerLoop periodically drains queues into the DB until Close.
func (b *Backend) writerLoop() {
	defer close(b.done)
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("DB write failed, rows requeued", "error", err)
				continue
			}
			b.deps.Logger.Debug("DB write cycle", "duration", time.Since(start))
		}
	}
}

// writeQueue writes all items from a queue to the database, one transaction per batch.
// A failed batch is put back at the head of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, batchSize int) error {
	for !q.Empty() {
		items := q.PopBatch(batchSize)
		tx := db.Begin()
		if err := tx.Create(&items).Error; err != nil {
			tx.Rollback()
			q.Requeue(items...)
			return fmt.Errorf("error creating %s: %w", name, err)
		}
		if err := tx.Commit().Error; err != nil {
			q.Requeue(items...)
			return fmt.Errorf("error committing %s: %w", name, err)
		}
	}
	return nil
}
