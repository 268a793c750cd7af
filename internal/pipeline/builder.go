package pipeline

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/go-faster/measured/internal/boundary"
	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/xsync"
)

// Options is [Builder] options.
type Options struct {
	// Logger is used for pipeline and element logs.
	//
	// Defaults to zap.NewNop.
	Logger *zap.Logger
	// MeterProvider provides OpenTelemetry meter for pipeline.
	MeterProvider otelmetric.MeterProvider
	// TracerProvider provides OpenTelemetry tracer for pipeline.
	TracerProvider trace.TracerProvider
	// SourceConcurrency limits number of sources polled concurrently.
	//
	// Zero or negative value means no limit.
	SourceConcurrency int
	// QueueSize is a number of flushed source batches waiting for
	// transforms in [Pipeline.Run]. Sources block when it is full.
	//
	// Defaults to 256.
	QueueSize int
	// OutputQueueSize is a number of batches waiting for each output in
	// [Pipeline.Run]. When it is full, the oldest batch is dropped.
	//
	// Defaults to 256.
	OutputQueueSize int
}

func (opts *Options) setDefaults() {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.OutputQueueSize <= 0 {
		opts.OutputQueueSize = 256
	}
}

// Builder initializes plugins and builds [Pipeline].
//
// Builder is not safe for concurrent use.
type Builder struct {
	opts Options
	lg   *zap.Logger
	reg  *metric.Registry

	plugins    map[string]struct{}
	sources    []*element
	transforms []*element
	outputs    []*element

	built bool
}

// NewBuilder creates new Builder.
func NewBuilder(opts Options) *Builder {
	opts.setDefaults()
	return &Builder{
		opts:    opts,
		lg:      opts.Logger,
		reg:     metric.NewRegistry(),
		plugins: map[string]struct{}{},
	}
}

// Registry returns metric registry being built.
func (b *Builder) Registry() *metric.Registry {
	return b.reg
}

// Init initializes plugin.
//
// If plugin fails, elements it added are removed and dropped. Metrics
// registered by failed plugin stay registered.
//
// Strings borrowed from cfg are valid only during Init: plugin must copy
// what it keeps.
func (b *Builder) Init(p Plugin, cfg *configtree.Table) (rerr error) {
	if b.built {
		return errors.New("pipeline is already built")
	}
	name := p.Name()
	if name == "" {
		return errors.New("empty plugin name")
	}
	if _, ok := b.plugins[name]; ok {
		return errors.Errorf("plugin %q is already initialized", name)
	}

	lg := b.lg.Named(name)
	s := &Startup{
		plugin: name,
		b:      b,
		lg:     lg,
	}
	defer func() {
		s.done = true
		if rerr != nil {
			lg.Error("Plugin initialization failed", zap.Error(rerr))
			rerr = multierr.Append(rerr, s.rollback())
			return
		}
		b.plugins[name] = struct{}{}
		lg.Info("Plugin initialized", zap.Int("elements", len(s.added)))
	}()
	defer func() {
		if r := recover(); r != nil {
			rerr = errors.Errorf("plugin %q: init panic: %v", name, r)
		}
	}()

	sc := boundary.NewScope()
	defer sc.Close()

	if err := p.Init(s, cfg.Scoped(sc)); err != nil {
		return errors.Wrapf(err, "plugin %q", name)
	}
	return nil
}

// Close drops elements of all initialized plugins: sources, transforms,
// then outputs, each in registration order.
//
// Close abandons a builder that will not be built. Builder can't be used
// after Close. Close is a no-op after Build, as pipeline owns the elements.
func (b *Builder) Close() error {
	if b.built {
		return nil
	}
	b.built = true

	var err error
	for _, list := range [][]*element{b.sources, b.transforms, b.outputs} {
		for _, e := range list {
			err = multierr.Append(err, e.drop())
		}
	}
	b.sources, b.transforms, b.outputs = nil, nil, nil
	b.lg.Debug("Builder closed")
	return err
}

// Build freezes metric registry and returns pipeline.
//
// Builder can't be used after successful Build.
func (b *Builder) Build() (*Pipeline, error) {
	if b.built {
		return nil, errors.New("pipeline is already built")
	}

	tm, err := newTelemetry(b.opts.MeterProvider)
	if err != nil {
		// Builder stays usable for Close.
		return nil, errors.Wrap(err, "create telemetry")
	}
	b.built = true
	p := &Pipeline{
		reg:        b.reg.Freeze(),
		lg:         b.lg,
		tracer:     b.opts.TracerProvider.Tracer("measured.pipeline"),
		telemetry:  tm,
		limit:      b.opts.SourceConcurrency,
		sources:    b.sources,
		transforms: b.transforms,
		outputs:    b.outputs,
		buffers:    xsync.NewPool(measurement.NewBuffer),
		queue:      b.opts.QueueSize,
		outQueue:   b.opts.OutputQueueSize,
		done:       make(chan struct{}),
	}
	b.lg.Info("Pipeline built",
		zap.Int("metrics", p.reg.Len()),
		zap.Int("sources", len(p.sources)),
		zap.Int("transforms", len(p.transforms)),
		zap.Int("outputs", len(p.outputs)),
	)
	return p, nil
}
