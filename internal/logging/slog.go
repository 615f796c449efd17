package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// osStdout is swapped out in tests.
var osStdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional OTel and Graylog output.
type SlogManager struct {
	logger *slog.Logger

	name         string
	context      ContextProvider
	graylog      *gelf.Writer
	graylogLevel slog.Level
	sinks        []string

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{name: "combatsim"}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetContextProvider registers a source of attributes added to every record.
// Takes effect on the next Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.context = p
}

// EnableGraylog ships JSON records at or above level to a GELF UDP
// endpoint. Takes effect on the next Setup.
func (m *SlogManager) EnableGraylog(address, level string) error {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return fmt.Errorf("creating gelf writer for %s: %w", address, err)
	}
	m.graylog = w
	m.graylogLevel = parseLevel(level)
	return nil
}

// Setup initializes the logging system with file and optional OTel output.
// Console output is used only when no file is given.
// If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	m.logProvider = provider

	opts := func(level slog.Level) *slog.HandlerOptions {
		return &slog.HandlerOptions{Level: level, ReplaceAttr: utcTime}
	}
	lvl := parseLevel(level)

	// the file replaces the console
	primary := Sink{Name: "console", Handler: slog.NewTextHandler(osStdout, opts(lvl))}
	if file != nil {
		primary = Sink{Name: "file", Handler: slog.NewTextHandler(file, opts(lvl))}
	}
	sinks := []Sink{primary}
	if m.graylog != nil {
		sinks = append(sinks, Sink{Name: "graylog", Handler: slog.NewJSONHandler(m.graylog, opts(m.graylogLevel))})
	}
	if provider != nil {
		sinks = append(sinks, Sink{Name: "otel", Handler: otelslog.NewHandler(m.name, otelslog.WithLoggerProvider(provider))})
	}

	multi := NewMultiHandler(sinks...)
	m.sinks = multi.Names()

	var handler slog.Handler = multi
	if m.context != nil {
		handler = NewContextHandler(handler, m.context)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", level, "sinks", m.sinks)
}

// utcTime renders record times as RFC3339 in UTC.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
		}
	}
	return a
}

// Sinks lists the outputs configured by the last Setup.
func (m *SlogManager) Sinks() []string {
	return m.sinks
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Close releases the Graylog connection, if any.
func (m *SlogManager) Close() error {
	if m.graylog != nil {
		err := m.graylog.Close()
		m.graylog = nil
		return err
	}
	return nil
}
