package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes describing the current run, such as
// its id and step number. It is called once per record.
type ContextProvider func() []slog.Attr

// ContextHandler appends the provider's attributes to every record. An
// attribute is skipped when the record or a WithAttrs call already set the
// same top-level key, so an explicit step=... wins over the current step.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
	bound    map[string]bool // top-level keys set via WithAttrs
	grouped  bool
}

// NewContextHandler wraps inner with run context from provider.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider == nil {
		return h.inner.Handle(ctx, r)
	}
	extra := h.provider()
	if len(extra) == 0 {
		return h.inner.Handle(ctx, r)
	}

	present := make(map[string]bool, r.NumAttrs())
	if !h.grouped {
		r.Attrs(func(a slog.Attr) bool {
			present[a.Key] = true
			return true
		})
	}
	for _, a := range extra {
		if present[a.Key] || h.bound[a.Key] {
			continue
		}
		r.AddAttrs(a)
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := h.bound
	if !h.grouped {
		bound = make(map[string]bool, len(h.bound)+len(attrs))
		for k := range h.bound {
			bound[k] = true
		}
		for _, a := range attrs {
			bound[a.Key] = true
		}
	}
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
		bound:    bound,
		grouped:  h.grouped,
	}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
		bound:    h.bound,
		grouped:  true,
	}
}
