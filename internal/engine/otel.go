package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/OCAP2/combatsim/pkg/core"
)

const instrumentationName = "github.com/OCAP2/combatsim/internal/engine"

func defaultMeter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	engagements metric.Int64Counter
	destroyed   metric.Int64Counter
	removed     metric.Int64Counter
	active      metric.Int64Gauge
}

func newInstruments(m metric.Meter) (*instruments, error) {
	var (
		ins instruments
		err error
	)

	ins.engagements, err = m.Int64Counter(
		"combatsim.engagements",
		metric.WithDescription("Resolved engagements"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating engagements counter: %w", err)
	}

	ins.destroyed, err = m.Int64Counter(
		"combatsim.units.destroyed",
		metric.WithDescription("Engagements that were not a stalemate"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating destroyed counter: %w", err)
	}

	ins.removed, err = m.Int64Counter(
		"combatsim.units.removed",
		metric.WithDescription("Units removed from the registry"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating removed counter: %w", err)
	}

	ins.active, err = m.Int64Gauge(
		"combatsim.units.active",
		metric.WithDescription("Live units at the start of a step"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating active gauge: %w", err)
	}

	return &ins, nil
}

func (ins *instruments) recordEngagement(e core.Engagement) {
	if ins == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("attacker_type", e.AttackerType.String()),
		attribute.String("result", e.Result.String()),
	)
	ctx := context.Background()
	ins.engagements.Add(ctx, 1, attrs)
	if e.Result.Decisive() {
		ins.destroyed.Add(ctx, 1, attrs)
	}
}

func (ins *instruments) recordRemoval(u core.Unit) {
	if ins == nil {
		return
	}
	ins.removed.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("unit_type", u.Type.String())))
}

func (ins *instruments) recordActive(n int) {
	if ins == nil {
		return
	}
	ins.active.Record(context.Background(), int64(n))
}
