package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/xsync"
)

// batch is a transformed buffer shared by output queues.
type batch struct {
	buf  *measurement.Buffer
	refs atomic.Int32
	pool *xsync.Pool[*measurement.Buffer]
}

func newBatch(buf *measurement.Buffer, pool *xsync.Pool[*measurement.Buffer]) *batch {
	b := &batch{buf: buf, pool: pool}
	b.refs.Store(1)
	return b
}

func (b *batch) retain() {
	b.refs.Inc()
}

func (b *batch) release() {
	if b.refs.Dec() == 0 {
		b.pool.Put(b.buf)
	}
}

// outputQueue is a bounded batch queue that drops the oldest batch on
// overflow.
type outputQueue struct {
	mux    sync.Mutex
	items  []*batch
	limit  int
	notify chan struct{}
}

func newOutputQueue(limit int) *outputQueue {
	return &outputQueue{
		limit:  limit,
		notify: make(chan struct{}, 1),
	}
}

// push appends batch, returning the dropped one, if any.
func (q *outputQueue) push(b *batch) (dropped *batch) {
	q.mux.Lock()
	if len(q.items) >= q.limit {
		dropped = q.items[0]
		n := copy(q.items, q.items[1:])
		q.items[n] = nil
		q.items = q.items[:n]
	}
	q.items = append(q.items, b)
	q.mux.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return dropped
}

func (q *outputQueue) pop() (*batch, bool) {
	q.mux.Lock()
	defer q.mux.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	b := q.items[0]
	n := copy(q.items, q.items[1:])
	q.items[n] = nil
	q.items = q.items[:n]
	return b, true
}

// drain releases all pending batches.
func (q *outputQueue) drain() {
	for {
		b, ok := q.pop()
		if !ok {
			return
		}
		b.release()
	}
}

// Run collects measurements until ctx is done or pipeline is closed.
//
// Every source is polled by its own goroutine according to its [Trigger],
// first poll happens immediately. Points are flushed to the transform
// stage every [Trigger.FlushInterval], transforms are applied to each
// flushed batch sequentially, and a failed transform discards the batch.
// Every output consumes transformed batches from its own queue, so a
// slow output does not delay sources or other outputs: once its queue
// is full, the output loses the oldest batch.
//
// Run returns nil when ctx is done and [ErrClosed] when pipeline is closed.
// Points not yet written by outputs when Run returns are lost.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.Errorf("invalid interval %s", interval)
	}
	if p.closed.Load() {
		return ErrClosed
	}
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("pipeline is already running")
	}
	defer p.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		batches = make(chan *measurement.Buffer, p.queue)
		queues  = make([]*outputQueue, len(p.outputs))
		outWG   sync.WaitGroup
		srcWG   sync.WaitGroup
	)
	for i, e := range p.outputs {
		q := newOutputQueue(p.outQueue)
		queues[i] = q
		outWG.Add(1)
		go func() {
			defer outWG.Done()
			p.runOutput(ctx, e, q)
		}()
	}
	transformed := make(chan struct{})
	go func() {
		defer close(transformed)
		p.runTransforms(ctx, batches, queues)
	}()
	for _, e := range p.sources {
		srcWG.Add(1)
		go func() {
			defer srcWG.Done()
			p.runSource(ctx, e, interval, batches)
		}()
	}
	p.lg.Debug("Running",
		zap.Duration("interval", interval),
		zap.Int("sources", len(p.sources)),
	)

	srcWG.Wait()
	close(batches)
	<-transformed
	outWG.Wait()

	if p.closed.Load() {
		return ErrClosed
	}
	return nil
}

// runSource polls source according to its trigger until ctx is done or
// source is stopped.
func (p *Pipeline) runSource(ctx context.Context, e *element, interval time.Duration, out chan<- *measurement.Buffer) {
	src := e.impl.(Source)

	state, trigger, changed := e.ctl.watch()
	trigger = trigger.withDefault(interval)
	ticker := time.NewTicker(trigger.Interval)
	defer ticker.Stop()

	var (
		pending = p.buffers.Get()
		rounds  int
	)
	defer func() { p.buffers.Put(pending) }()

	flush := func() bool {
		rounds = 0
		if pending.Len() == 0 {
			return true
		}
		select {
		case out <- pending:
			pending = p.buffers.Get()
			return true
		case <-ctx.Done():
			return false
		}
	}
	poll := func() bool {
		buf := p.buffers.Get()
		defer p.buffers.Put(buf)

		acc := buf.Accumulator()
		err := e.invoke(ctx, func(ctx context.Context) error {
			return src.Poll(ctx, acc, measurement.Now())
		})
		acc.Seal()
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return false
			}
			p.elementFailed(ctx, e, err)
			return true
		}
		pending.Merge(buf)
		return true
	}

	for {
		switch state {
		case StateStopped:
			flush()
			return
		case StatePaused:
			if !flush() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
		default:
			if !poll() {
				return
			}
			if rounds++; rounds >= trigger.flushRounds() {
				if !flush() {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-changed:
			case <-ticker.C:
				continue
			}
		}

		// State or trigger changed.
		var next Trigger
		state, next, changed = e.ctl.watch()
		if next = next.withDefault(interval); next != trigger {
			trigger = next
			ticker.Reset(trigger.Interval)
			if rounds >= trigger.flushRounds() && !flush() {
				return
			}
			e.lg.Debug("Trigger changed",
				zap.Duration("interval", trigger.Interval),
				zap.Duration("flush_interval", trigger.FlushInterval),
			)
		}
	}
}

// runTransforms applies transforms to every flushed batch and hands
// result to output queues.
func (p *Pipeline) runTransforms(ctx context.Context, in <-chan *measurement.Buffer, queues []*outputQueue) {
	for buf := range in {
		if ctx.Err() != nil {
			p.buffers.Put(buf)
			continue
		}
		if err := p.transform(ctx, buf); err != nil {
			p.buffers.Put(buf)
			continue
		}
		p.telemetry.recordPoints(ctx, buf.Len())

		b := newBatch(buf, p.buffers)
		for i, q := range queues {
			e := p.outputs[i]
			if e.ctl.State() == StateStopped {
				continue
			}
			b.retain()
			if dropped := q.push(b); dropped != nil {
				dropped.release()
				p.telemetry.recordDropped(ctx, e)
				e.lg.Warn("Output is too slow, dropped the oldest batch",
					zap.Int("queue_size", p.outQueue),
				)
			}
		}
		b.release()
	}
}

// runOutput writes queued batches to output until ctx is done or output
// is stopped.
func (p *Pipeline) runOutput(ctx context.Context, e *element, q *outputQueue) {
	defer q.drain()
	out := e.impl.(Output)

	for {
		state, _, changed := e.ctl.watch()
		switch state {
		case StateStopped:
			return
		case StatePaused:
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
			continue
		}

		b, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			case <-q.notify:
			}
			continue
		}
		err := e.invoke(ctx, func(ctx context.Context) error {
			return out.Write(ctx, b.buf.View(), p.reg)
		})
		b.release()
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			p.elementFailed(ctx, e, err)
		}
	}
}
