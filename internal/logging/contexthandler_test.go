package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runContext(step *int) ContextProvider {
	return func() []slog.Attr {
		return []slog.Attr{slog.String("run", "abc"), slog.Int("step", *step)}
	}
}

func TestContextHandler_ReadsProviderPerRecord(t *testing.T) {
	var buf bytes.Buffer
	step := 1
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), runContext(&step)))

	logger.Info("first")
	step = 2
	logger.Info("second")

	assert.Contains(t, buf.String(), "msg=first run=abc step=1")
	assert.Contains(t, buf.String(), "msg=second run=abc step=2")
}

func TestContextHandler_NoProviderOrNoRun(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), nil)).Info("plain")
	slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr { return nil })).Info("idle")

	assert.NotContains(t, buf.String(), "run=")
	assert.Contains(t, buf.String(), "msg=idle")
}

func TestContextHandler_ExplicitKeysWin(t *testing.T) {
	var buf bytes.Buffer
	step := 9
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), runContext(&step))

	slog.New(h).Info("record attr", "step", 4)
	assert.Contains(t, buf.String(), "msg=\"record attr\" step=4 run=abc\n")

	buf.Reset()
	slog.New(h.WithAttrs([]slog.Attr{slog.String("run", "other")})).Info("bound attr")
	assert.Contains(t, buf.String(), "msg=\"bound attr\" run=other step=9")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("run=")))
}

func TestContextHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	step := 3
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), runContext(&step))

	assert.Same(t, h, h.WithGroup(""))

	slog.New(h.WithGroup("unit")).Info("moved", "step", 1)
	// keys inside a group do not shadow the run context
	assert.Contains(t, buf.String(), "unit.step=1")
	assert.Contains(t, buf.String(), "unit.step=3")
}
