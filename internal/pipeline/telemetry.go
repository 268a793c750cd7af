package pipeline

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/go-faster/measured/internal/semconv"
)

type telemetry struct {
	ticks    otelmetric.Int64Counter
	points   otelmetric.Int64Counter
	failures otelmetric.Int64Counter
	dropped  otelmetric.Int64Counter
	duration otelmetric.Float64Histogram
}

func newTelemetry(mp otelmetric.MeterProvider) (t telemetry, err error) {
	meter := mp.Meter("measured.pipeline")

	if t.ticks, err = meter.Int64Counter("measured.pipeline.ticks",
		otelmetric.WithDescription("Number of collection ticks"),
	); err != nil {
		return t, errors.Wrap(err, "create ticks counter")
	}
	if t.points, err = meter.Int64Counter("measured.pipeline.points",
		otelmetric.WithDescription("Number of points handed to outputs"),
	); err != nil {
		return t, errors.Wrap(err, "create points counter")
	}
	if t.failures, err = meter.Int64Counter("measured.pipeline.element.failures",
		otelmetric.WithDescription("Number of failed element invocations"),
	); err != nil {
		return t, errors.Wrap(err, "create failures counter")
	}
	if t.dropped, err = meter.Int64Counter("measured.pipeline.output.dropped",
		otelmetric.WithDescription("Number of batches an output lost for being too slow"),
	); err != nil {
		return t, errors.Wrap(err, "create dropped counter")
	}
	if t.duration, err = meter.Float64Histogram("measured.pipeline.tick.duration",
		otelmetric.WithUnit("s"),
		otelmetric.WithDescription("Collection tick duration in seconds"),
	); err != nil {
		return t, errors.Wrap(err, "create tick duration histogram")
	}
	return t, nil
}

func (t telemetry) recordFailure(ctx context.Context, e *element) {
	t.failures.Add(ctx, 1, otelmetric.WithAttributes(e.info.attributes()...))
}

func (t telemetry) recordDropped(ctx context.Context, e *element) {
	t.dropped.Add(ctx, 1, otelmetric.WithAttributes(e.info.attributes()...))
}

func (t telemetry) recordPoints(ctx context.Context, points int) {
	t.points.Add(ctx, int64(points))
}

func (t telemetry) recordTick(ctx context.Context, start time.Time, points int, failed bool) {
	attrs := otelmetric.WithAttributes(semconv.TickFailed(failed))
	t.ticks.Add(ctx, 1, attrs)
	t.points.Add(ctx, int64(points))
	t.duration.Record(ctx, time.Since(start).Seconds(), attrs)
}
