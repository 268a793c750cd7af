package pipeline

import (
	"github.com/go-faster/errors"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/unit"
)

// Plugin registers metrics and elements during startup.
type Plugin interface {
	// Name returns unique plugin name.
	Name() string
	// Init registers plugin metrics and elements using given handle.
	//
	// The handle must not be retained: it is invalidated once Init returns.
	Init(s *Startup, cfg *configtree.Table) error
}

// Startup is a registration handle passed to [Plugin.Init].
type Startup struct {
	plugin string
	b      *Builder
	lg     *zap.Logger

	added []*element
	done  bool
}

func (s *Startup) check(op string) {
	if s == nil || s.done {
		panic(errors.Errorf("pipeline: %s on invalidated startup handle", op))
	}
}

// Plugin returns name of initialized plugin.
func (s *Startup) Plugin() string {
	s.check("plugin")
	return s.plugin
}

// Logger returns logger of initialized plugin.
func (s *Startup) Logger() *zap.Logger {
	s.check("logger")
	return s.lg
}

// MeterProvider returns meter provider of the pipeline.
func (s *Startup) MeterProvider() otelmetric.MeterProvider {
	s.check("meter provider")
	return s.b.opts.MeterProvider
}

// TracerProvider returns tracer provider of the pipeline.
func (s *Startup) TracerProvider() trace.TracerProvider {
	s.check("tracer provider")
	return s.b.opts.TracerProvider
}

// CreateMetric registers new metric.
func (s *Startup) CreateMetric(name string, typ metric.ValueType, u unit.Unit, description string) (metric.ID, error) {
	s.check("create metric")
	return s.b.reg.Create(name, typ, u, description)
}

// CreateUnit registers custom unit.
func (s *Startup) CreateUnit(name string) (unit.Unit, error) {
	s.check("create unit")
	return s.b.reg.CreateUnit(name)
}

// CreateTypedMetric registers new metric with value type defined by T.
func CreateTypedMetric[T metric.Numeric](s *Startup, name string, u unit.Unit, description string) (metric.TypedID[T], error) {
	s.check("create metric")
	return metric.Create[T](s.b.reg, name, u, description)
}

func (s *Startup) add(kind Kind, name string, v any, tr Trigger) {
	if name == "" {
		name = kind.String()
	}
	e := newElement(s.b.lg, kind, s.plugin, name, v, tr)
	s.added = append(s.added, e)
	switch kind {
	case KindSource:
		s.b.sources = append(s.b.sources, e)
	case KindTransform:
		s.b.transforms = append(s.b.transforms, e)
	case KindOutput:
		s.b.outputs = append(s.b.outputs, e)
	}
	e.lg.Debug("Element added")
}

// AddSource registers source polled at interval of [Pipeline.Run].
func (s *Startup) AddSource(name string, src Source) {
	s.AddTriggeredSource(name, src, Trigger{})
}

// AddTriggeredSource registers source polled according to given trigger.
//
// AddTriggeredSource panics if trigger is invalid.
func (s *Startup) AddTriggeredSource(name string, src Source, tr Trigger) {
	s.check("add source")
	if src == nil {
		panic("pipeline: nil source")
	}
	if err := tr.Validate(); err != nil {
		panic(errors.Wrap(err, "pipeline: invalid trigger"))
	}
	s.add(KindSource, name, src, tr)
}

// AddTransform registers transform.
//
// Transforms are applied in registration order.
func (s *Startup) AddTransform(name string, t Transform) {
	s.check("add transform")
	if t == nil {
		panic("pipeline: nil transform")
	}
	s.add(KindTransform, name, t, Trigger{})
}

// AddOutput registers output.
func (s *Startup) AddOutput(name string, o Output) {
	s.check("add output")
	if o == nil {
		panic("pipeline: nil output")
	}
	s.add(KindOutput, name, o, Trigger{})
}

// rollback removes and drops all elements added through this handle.
func (s *Startup) rollback() error {
	if len(s.added) == 0 {
		return nil
	}
	added := make(map[*element]struct{}, len(s.added))
	for _, e := range s.added {
		added[e] = struct{}{}
	}
	remove := func(list []*element) []*element {
		kept := list[:0]
		for _, e := range list {
			if _, ok := added[e]; !ok {
				kept = append(kept, e)
			}
		}
		return kept
	}
	s.b.sources = remove(s.b.sources)
	s.b.transforms = remove(s.b.transforms)
	s.b.outputs = remove(s.b.outputs)

	var err error
	for _, e := range s.added {
		err = multierr.Append(err, e.drop())
	}
	s.added = nil
	return err
}
