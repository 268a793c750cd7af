// Package pipeline implements measurement pipeline: extension points,
// their registration and the collection tick.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/semconv"
)

// Source produces measurement points.
//
// Poll must only push points into given accumulator and must not retain it.
type Source interface {
	Poll(ctx context.Context, acc *measurement.Accumulator, ts measurement.Timestamp) error
}

// Transform modifies buffer in place.
//
// Apply may add, remove or edit points, but must not retain the buffer.
type Transform interface {
	Apply(ctx context.Context, buf *measurement.Buffer, reg *metric.Frozen) error
}

// Output exports measurements.
//
// Write must not retain the view.
type Output interface {
	Write(ctx context.Context, view measurement.View, reg *metric.Frozen) error
}

// Dropper is an optional capability of elements that hold resources.
//
// Drop is called exactly once, when the element will no longer be invoked.
type Dropper interface {
	Drop() error
}

// SourceFunc is a functional [Source].
type SourceFunc func(ctx context.Context, acc *measurement.Accumulator, ts measurement.Timestamp) error

// Poll implements [Source].
func (f SourceFunc) Poll(ctx context.Context, acc *measurement.Accumulator, ts measurement.Timestamp) error {
	return f(ctx, acc, ts)
}

// TransformFunc is a functional [Transform].
type TransformFunc func(ctx context.Context, buf *measurement.Buffer, reg *metric.Frozen) error

// Apply implements [Transform].
func (f TransformFunc) Apply(ctx context.Context, buf *measurement.Buffer, reg *metric.Frozen) error {
	return f(ctx, buf, reg)
}

// OutputFunc is a functional [Output].
type OutputFunc func(ctx context.Context, view measurement.View, reg *metric.Frozen) error

// Write implements [Output].
func (f OutputFunc) Write(ctx context.Context, view measurement.View, reg *metric.Frozen) error {
	return f(ctx, view, reg)
}

// Kind is an element role.
type Kind uint8

const (
	KindSource Kind = iota + 1
	KindTransform
	KindOutput
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindTransform:
		return "transform"
	case KindOutput:
		return "output"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

func (k Kind) semconvKind() semconv.ElementKind {
	switch k {
	case KindSource:
		return semconv.ElementSource
	case KindTransform:
		return semconv.ElementTransform
	case KindOutput:
		return semconv.ElementOutput
	default:
		return semconv.ElementKind(k.String())
	}
}

// ElementInfo describes registered element.
type ElementInfo struct {
	ID     uuid.UUID
	Kind   Kind
	Name   string
	Plugin string
	// Droppable reports whether element has cleanup.
	Droppable bool
}

func (i ElementInfo) attributes() []attribute.KeyValue {
	return semconv.Element(i.Kind.semconvKind(), i.Plugin, i.Name)
}

// ElementError is an error or panic of a single element.
type ElementError struct {
	Kind   Kind
	Name   string
	Plugin string
	// Panic is recovered panic value, if any.
	Panic any
	Err   error
}

// Error implements error.
func (e *ElementError) Error() string {
	return fmt.Sprintf("%s %s/%s: %s", e.Kind, e.Plugin, e.Name, e.Err)
}

// Unwrap returns underlying error.
func (e *ElementError) Unwrap() error {
	return e.Err
}

type element struct {
	info ElementInfo
	lg   *zap.Logger

	// mu guarantees that element is never invoked concurrently.
	mu sync.Mutex

	// impl is Source, Transform or Output, according to kind.
	impl any
	// ctl is nil for transforms.
	ctl *control

	dropped  bool // guarded by mu
	dropOnce sync.Once
	dropErr  error
}

func newElement(lg *zap.Logger, kind Kind, plugin, name string, v any, tr Trigger) *element {
	e := &element{
		info: ElementInfo{
			ID:     uuid.New(),
			Kind:   kind,
			Name:   name,
			Plugin: plugin,
		},
		impl: v,
	}
	if kind != KindTransform {
		e.ctl = newControl(tr)
	}
	if _, ok := v.(Dropper); ok {
		e.info.Droppable = true
	}
	e.lg = lg.Named(plugin).With(
		zap.Stringer("element_kind", kind),
		zap.String("element", name),
		zap.Stringer("element_id", e.info.ID),
	)
	return e
}

func (e *element) wrap(err error, panicValue any) *ElementError {
	return &ElementError{
		Kind:   e.info.Kind,
		Name:   e.info.Name,
		Plugin: e.info.Plugin,
		Panic:  panicValue,
		Err:    err,
	}
}

// invoke calls fn under element lock, converting errors and panics to [*ElementError].
//
// Dropped element is never invoked, [ErrClosed] is returned instead.
func (e *element) invoke(ctx context.Context, fn func(ctx context.Context) error) (rerr error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dropped {
		return e.wrap(ErrClosed, nil)
	}

	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = errors.Errorf("panic: %v", r)
			} else {
				err = errors.Wrap(err, "panic")
			}
			rerr = e.wrap(err, r)
		}
	}()

	if err := fn(zctx.Base(ctx, e.lg)); err != nil {
		return e.wrap(err, nil)
	}
	return nil
}

// drop calls Drop of element at most once.
//
// Element is not invoked after drop, even if it has no Drop method.
func (e *element) drop() error {
	e.dropOnce.Do(func() {
		e.dropErr = e.invoke(context.Background(), func(context.Context) error {
			e.dropped = true
			if d, ok := e.impl.(Dropper); ok {
				return d.Drop()
			}
			return nil
		})
		if e.ctl != nil {
			e.ctl.stop()
		}
	})
	return e.dropErr
}

// running reports whether element should be invoked by the pipeline.
func (e *element) running() bool {
	return e.ctl == nil || e.ctl.State() == StateRunning
}
