package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/xsync"
)

// ErrClosed is returned by [Pipeline.Tick] and [Pipeline.Run] after [Pipeline.Close].
var ErrClosed = errors.New("pipeline is closed")

// Pipeline is a built measurement pipeline.
//
// Pipeline is driven either by [Pipeline.Tick], where each tick polls
// all sources, merges their points in registration order, applies
// transforms in registration order and hands resulting buffer to all
// outputs, or by [Pipeline.Run], where sources, transforms and outputs
// run independently of each other.
//
// Sources and outputs can be paused, resumed and stopped at any time.
type Pipeline struct {
	reg *metric.Frozen
	lg  *zap.Logger

	tracer    trace.Tracer
	telemetry telemetry

	limit      int
	sources    []*element
	transforms []*element
	outputs    []*element

	buffers  *xsync.Pool[*measurement.Buffer]
	queue    int
	outQueue int

	// tickMux serializes ticks and close.
	tickMux   sync.Mutex
	running   atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Metrics returns frozen metric registry.
func (p *Pipeline) Metrics() *metric.Frozen {
	return p.reg
}

// Elements returns registered elements: sources, then transforms, then outputs,
// each in registration order.
func (p *Pipeline) Elements() []ElementInfo {
	out := make([]ElementInfo, 0, len(p.sources)+len(p.transforms)+len(p.outputs))
	for _, list := range [][]*element{p.sources, p.transforms, p.outputs} {
		for _, e := range list {
			out = append(out, e.info)
		}
	}
	return out
}

// Tick runs one collection cycle with given timestamp.
//
// Failed sources lose their points for this tick, other sources are not
// affected. A failed transform aborts the tick before any output is invoked.
// All element errors are returned as combined [*ElementError] list.
// Paused and stopped sources and outputs are skipped.
func (p *Pipeline) Tick(ctx context.Context, ts measurement.Timestamp) (rerr error) {
	if p.closed.Load() {
		return ErrClosed
	}
	p.tickMux.Lock()
	defer p.tickMux.Unlock()
	if p.closed.Load() {
		return ErrClosed
	}

	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.Tick",
		trace.WithAttributes(
			attribute.Int("measured.sources", len(p.sources)),
			attribute.Int("measured.transforms", len(p.transforms)),
			attribute.Int("measured.outputs", len(p.outputs)),
		),
	)
	var points int
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, "tick failed")
		}
		span.SetAttributes(attribute.Int("measured.points", points))
		span.End()
		p.telemetry.recordTick(ctx, start, points, rerr != nil)
	}()

	buf, err := p.poll(ctx, ts)
	defer p.buffers.Put(buf)

	if terr := p.transform(ctx, buf); terr != nil {
		return multierr.Append(err, terr)
	}

	points = buf.Len()
	return multierr.Append(err, p.write(ctx, buf.View()))
}

// poll polls all sources and merges their points in registration order.
func (p *Pipeline) poll(ctx context.Context, ts measurement.Timestamp) (*measurement.Buffer, error) {
	var (
		bufs = make([]*measurement.Buffer, len(p.sources))
		errs = make([]error, len(p.sources))
		g    errgroup.Group
	)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for i, e := range p.sources {
		if !e.running() {
			continue
		}
		src := e.impl.(Source)
		g.Go(func() error {
			buf := p.buffers.Get()
			acc := buf.Accumulator()
			err := e.invoke(ctx, func(ctx context.Context) error {
				return src.Poll(ctx, acc, ts)
			})
			acc.Seal()
			if err != nil {
				p.buffers.Put(buf)
				errs[i] = err
				return nil
			}
			bufs[i] = buf
			return nil
		})
	}
	_ = g.Wait()

	out := p.buffers.Get()
	for i, b := range bufs {
		if err := errs[i]; err != nil {
			p.elementFailed(ctx, p.sources[i], err)
			continue
		}
		if b == nil {
			continue
		}
		out.Merge(b)
		p.buffers.Put(b)
	}
	return out, multierr.Combine(errs...)
}

// transform applies transforms sequentially, stopping on first failure.
func (p *Pipeline) transform(ctx context.Context, buf *measurement.Buffer) error {
	for _, e := range p.transforms {
		t := e.impl.(Transform)
		if err := e.invoke(ctx, func(ctx context.Context) error {
			return t.Apply(ctx, buf, p.reg)
		}); err != nil {
			p.elementFailed(ctx, e, err)
			return err
		}
	}
	return nil
}

// write hands read-only view to all outputs concurrently.
func (p *Pipeline) write(ctx context.Context, view measurement.View) error {
	var (
		errs = make([]error, len(p.outputs))
		wg   sync.WaitGroup
	)
	for i, e := range p.outputs {
		if !e.running() {
			continue
		}
		out := e.impl.(Output)
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = e.invoke(ctx, func(ctx context.Context) error {
				return out.Write(ctx, view, p.reg)
			})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			p.elementFailed(ctx, p.outputs[i], err)
		}
	}
	return multierr.Combine(errs...)
}

func (p *Pipeline) elementFailed(ctx context.Context, e *element, err error) {
	p.telemetry.recordFailure(ctx, e)
	e.lg.Warn("Element failed", zap.Error(err))
}

// Close drops all elements: sources, transforms, then outputs, each in
// registration order. Close waits for running tick, stops [Pipeline.Run]
// and is idempotent.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
		p.tickMux.Lock()
		defer p.tickMux.Unlock()

		for _, list := range [][]*element{p.sources, p.transforms, p.outputs} {
			for _, e := range list {
				p.closeErr = multierr.Append(p.closeErr, e.drop())
			}
		}
		p.lg.Info("Pipeline closed")
	})
	return p.closeErr
}
