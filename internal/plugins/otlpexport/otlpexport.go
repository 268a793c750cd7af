// Package otlpexport implements output sending measurements as OTLP metrics.
package otlpexport

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/collector/consumer"
	"go.uber.org/zap"

	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/pipeline"
)

// Options is [Exporter] options.
type Options struct {
	// Resource attributes of exported metrics.
	Resource map[string]string
	// InitialInterval is an initial retry interval.
	InitialInterval time.Duration
	// MaxElapsedTime limits total time spent on retries of one batch.
	MaxElapsedTime time.Duration
}

func (opts *Options) setDefaults() {
	if opts.InitialInterval == 0 {
		opts.InitialInterval = 500 * time.Millisecond
	}
	if opts.MaxElapsedTime == 0 {
		opts.MaxElapsedTime = 30 * time.Second
	}
}

// Exporter converts points to OTLP and passes them to consumer.
type Exporter struct {
	next consumer.Metrics
	opts Options
}

var _ pipeline.Output = (*Exporter)(nil)

// NewExporter creates new Exporter.
func NewExporter(next consumer.Metrics, opts Options) *Exporter {
	opts.setDefaults()
	return &Exporter{
		next: next,
		opts: opts,
	}
}

// Write implements [pipeline.Output].
func (e *Exporter) Write(ctx context.Context, view measurement.View, reg *metric.Frozen) error {
	if view.Len() == 0 {
		return nil
	}
	md := Convert(view, reg, e.opts.Resource)

	lg := zctx.From(ctx)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.opts.InitialInterval
	b.MaxElapsedTime = e.opts.MaxElapsedTime
	if err := backoff.RetryNotify(
		func() error {
			return e.next.ConsumeMetrics(ctx, md)
		},
		backoff.WithContext(b, ctx),
		func(err error, d time.Duration) {
			lg.Warn("Export failed",
				zap.Error(err),
				zap.Duration("retry_after", d),
			)
		},
	); err != nil {
		return errors.Wrap(err, "consume metrics")
	}
	lg.Debug("Exported", zap.Int("data_points", md.DataPointCount()))
	return nil
}
