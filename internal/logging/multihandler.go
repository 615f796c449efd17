package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Sink is one named output of a MultiHandler.
type Sink struct {
	Name    string
	Handler slog.Handler
}

// MultiHandler sends each record to every sink that accepts its level.
// Sink errors are tagged with the sink name and joined.
type MultiHandler struct {
	sinks []Sink
}

// NewMultiHandler drops sinks without a handler.
func NewMultiHandler(sinks ...Sink) *MultiHandler {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s.Handler != nil {
			kept = append(kept, s)
		}
	}
	return &MultiHandler{sinks: kept}
}

// Names lists the sinks in order.
func (m *MultiHandler) Names() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name
	}
	return names
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range m.sinks {
		if s.Handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if !s.Handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) derive(f func(slog.Handler) slog.Handler) *MultiHandler {
	sinks := make([]Sink, len(m.sinks))
	for i, s := range m.sinks {
		sinks[i] = Sink{Name: s.Name, Handler: f(s.Handler)}
	}
	return &MultiHandler{sinks: sinks}
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}
