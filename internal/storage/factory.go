// internal/storage/factory.go
package storage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/OCAP2/combatsim/internal/config"
	"github.com/OCAP2/combatsim/internal/database"
	"github.com/OCAP2/combatsim/internal/geo"
	gormstorage "github.com/OCAP2/combatsim/internal/storage/gorm"
	"github.com/OCAP2/combatsim/internal/storage/memory"
	sqlitestorage "github.com/OCAP2/combatsim/internal/storage/sqlite"
	"github.com/OCAP2/combatsim/internal/storage/websocket"
)

// ErrUnknownBackend is returned for an unrecognised storage.type.
var ErrUnknownBackend = errors.New("unknown storage type")

// Dependencies are shared services handed to backends.
type Dependencies struct {
	Logger    *slog.Logger
	Projector *geo.Projector // optional, memory exports only
}

// NewBackend creates a storage backend based on configuration.
// A postgres backend that cannot connect falls back to in-memory SQLite.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory, deps.Projector), nil
	case "sqlite":
		return newSQLite(cfg, log)
	case "postgres":
		db, err := database.GetPostgresDB(log)
		if err != nil {
			log.Error("Failed to connect to Postgres DB, trying SQLite", "error", err)
			return newSQLite(cfg, log)
		}
		return gormstorage.New(gormstorage.Dependencies{DB: db, Logger: log}), nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:    cfg.WebSocket.URL,
			Secret: cfg.WebSocket.Secret,
		}, log), nil
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Type)
	}
}

func newSQLite(cfg config.StorageConfig, log *slog.Logger) (Backend, error) {
	b, err := sqlitestorage.New(sqlitestorage.Config{
		DumpInterval: cfg.SQLite.DumpInterval,
		DumpPath:     cfg.SQLite.Path,
		OutputDir:    cfg.Memory.OutputDir,
	}, log)
	if err != nil {
		return nil, err
	}
	return b, nil
}
