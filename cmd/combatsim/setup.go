package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/OCAP2/combatsim/internal/api"
	"github.com/OCAP2/combatsim/internal/config"
	"github.com/OCAP2/combatsim/internal/geo"
	"github.com/OCAP2/combatsim/internal/influx"
	"github.com/OCAP2/combatsim/internal/logging"
	intOtel "github.com/OCAP2/combatsim/internal/otel"
	"github.com/OCAP2/combatsim/internal/session"
	"github.com/OCAP2/combatsim/internal/storage"
)

type logStack struct {
	manager *logging.SlogManager
	logger  *slog.Logger
	otel    *intOtel.Provider
	file    *os.File
}

// setupLogging opens the session log file and builds the slog handler chain
// with the optional OTel and Graylog outputs.
func setupLogging(sess *session.Context, sessionStart time.Time) (*logStack, error) {
	file, err := logging.OpenLogFile(viper.GetString("logsDir"), AppName, sessionStart)
	if err != nil {
		return nil, err
	}

	ls := &logStack{manager: logging.NewSlogManager(), file: file}
	ls.manager.SetContextProvider(sess.LogAttrs)

	var graylogErr error
	if viper.GetBool("graylog.enabled") {
		graylogErr = ls.manager.EnableGraylog(viper.GetString("graylog.address"), viper.GetString("graylog.level"))
	}

	otelCfg := config.GetOTelConfig()
	ls.otel, err = intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: Version,
		BatchTimeout:   otelCfg.BatchTimeout,
		MetricInterval: otelCfg.MetricInterval,
		LogWriter:      file,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	otelErr := err
	if err != nil {
		ls.otel, _ = intOtel.New(intOtel.Config{})
	}

	var provider *sdklog.LoggerProvider
	if ls.otel.Enabled() {
		provider = ls.otel.LoggerProvider()
	}
	ls.manager.Setup(file, viper.GetString("logLevel"), provider)
	ls.logger = ls.manager.Logger()
	ls.logger.Info("Logging to file", "path", file.Name())

	if graylogErr != nil {
		ls.logger.Error("Failed to enable Graylog", "error", graylogErr)
	}
	if otelErr != nil {
		ls.logger.Error("Failed to initialize OTel provider", "error", otelErr)
	} else if otelCfg.Enabled {
		if mp := ls.otel.MeterProvider(); mp != nil {
			otel.SetMeterProvider(mp)
		}
		ls.logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
	}
	return ls, nil
}

func (ls *logStack) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := errors.Join(
		ls.manager.Flush(ctx),
		ls.otel.Shutdown(ctx),
		ls.manager.Close(),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "combatsim: closing logs:", err)
	}
	_ = ls.file.Close()
}

// setupInflux connects the metrics writer. It returns nil when InfluxDB is
// disabled or neither the server nor the backup file is usable.
func setupInflux(ctx context.Context, log *slog.Logger, backupPath string, logFile io.Writer) *influx.Manager {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return nil
	}

	zl := zerolog.New(logFile).With().Timestamp().Str("component", "influx").Logger()
	m := influx.NewManager(cfg, zl, backupPath)

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.Connect(connectCtx); err != nil {
		log.Error("Failed to set up InfluxDB, metrics disabled", "error", err)
		return nil
	}
	log.Info("InfluxDB ready", "url", cfg.URL(), "connected", m.IsValid)
	return m
}

// setupStorage creates and initializes the configured backend.
func setupStorage(log *slog.Logger) (storage.Backend, error) {
	deps := storage.Dependencies{Logger: log}
	if geoCfg := config.GetGeoConfig(); geoCfg.Enabled() {
		deps.Projector = geo.NewProjector(geoCfg.OriginLon, geoCfg.OriginLat)
	}

	cfg := config.GetStorageConfig()
	backend, err := storage.NewBackend(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("creating storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("initializing %s storage: %w", cfg.Type, err)
	}
	log.Info("Storage initialized", "type", cfg.Type)
	return backend, nil
}

// uploadRecording sends the exported file to the viewer when uploads are enabled.
func uploadRecording(log *slog.Logger, path string, meta api.UploadMetadata) {
	cfg := config.GetAPIConfig()
	if !cfg.Upload {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := api.New(cfg.ServerURL, cfg.APIKey)
	if err := client.Healthcheck(ctx); err != nil {
		log.Error("Viewer not reachable, skipping upload", "url", cfg.ServerURL, "error", err)
		return
	}
	if err := client.Upload(ctx, path, meta); err != nil {
		log.Error("Failed to upload recording", "path", path, "error", err)
		return
	}
	log.Info("Uploaded recording", "path", path, "url", cfg.ServerURL)
}
