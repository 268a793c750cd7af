// Package promexport implements output exposing latest values as Prometheus metrics.
package promexport

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/pipeline"
	"github.com/go-faster/measured/internal/series"
)

// Name is a plugin name.
const Name = "prometheus"

// Config is a plugin configuration.
type Config struct {
	// Listen is an address of metrics HTTP server.
	Listen string
	// Path is an HTTP path of metrics handler.
	Path string
	// TTL is a time after which series that were not updated are removed.
	TTL time.Duration
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = ":9464"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
}

// ParseConfig parses plugin configuration.
func ParseConfig(t *configtree.Table) (c Config, _ error) {
	for _, key := range t.Keys() {
		switch key {
		case "listen":
			v, ok := t.String(key)
			if !ok {
				return c, errors.Errorf("%q: string expected", key)
			}
			c.Listen = v
		case "path":
			v, ok := t.String(key)
			if !ok {
				return c, errors.Errorf("%q: string expected", key)
			}
			c.Path = v
		case "ttl":
			v, ok := t.String(key)
			if !ok {
				return c, errors.Errorf("%q: duration string expected", key)
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return c, errors.Wrapf(err, "parse %q", key)
			}
			if d <= 0 {
				return c, errors.Errorf("%q: must be positive", key)
			}
			c.TTL = d
		default:
			return c, errors.Errorf("unknown key %q", key)
		}
	}
	c.setDefaults()
	return c, nil
}

// Plugin registers Prometheus output.
type Plugin struct {
	// Registerer overrides registry of exporter.
	//
	// If set, HTTP server is not started.
	Registerer prometheus.Registerer
}

var _ pipeline.Plugin = Plugin{}

// Name implements [pipeline.Plugin].
func (Plugin) Name() string { return Name }

// Init implements [pipeline.Plugin].
func (p Plugin) Init(s *pipeline.Startup, cfg *configtree.Table) error {
	c, err := ParseConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "parse config")
	}
	e := NewExporter(c.TTL)
	if p.Registerer != nil {
		if err := p.Registerer.Register(e); err != nil {
			return errors.Wrap(err, "register collector")
		}
		s.AddOutput("collector", e)
		return nil
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(e); err != nil {
		return errors.Wrap(err, "register collector")
	}
	ln, err := net.Listen("tcp", c.Listen)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	mux := http.NewServeMux()
	mux.Handle(c.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	srv := &http.Server{
		Handler: otelhttp.NewHandler(mux, "metrics",
			otelhttp.WithTracerProvider(s.TracerProvider()),
			otelhttp.WithMeterProvider(s.MeterProvider()),
		),
		ReadHeaderTimeout: time.Second,
	}
	lg := s.Logger()
	go func() {
		lg.Info("Metrics server listening", zap.Stringer("addr", ln.Addr()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("Metrics server failed", zap.Error(err))
		}
	}()
	s.AddOutput("server", &serverOutput{Exporter: e, srv: srv, ln: ln})
	return nil
}

type serverOutput struct {
	*Exporter
	srv *http.Server
	ln  net.Listener
}

// Drop shuts down metrics server.
func (o *serverOutput) Drop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := o.srv.Shutdown(ctx)
	// Serve may not have started yet, release the address anyway.
	if cerr := o.ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}

type sample struct {
	desc   *prometheus.Desc
	labels []string
	value  float64
	seen   time.Time
}

// exposed is a series as seen by Prometheus.
type exposed struct {
	key    series.Hash
	desc   *prometheus.Desc
	labels []string
	seen   time.Time
}

// Exporter is an output and a Prometheus collector that exposes latest
// value of each series as gauge.
//
// Distinct points may map to the same exposed series, e.g. when metric
// names or attribute keys differ only in characters that are invalid in
// Prometheus names. The latest written value of such series wins.
type Exporter struct {
	ttl time.Duration
	now func() time.Time

	mux sync.Mutex
	// points maps point series to exposed series.
	points map[series.Hash]*exposed
	series map[series.Hash]*sample
	descs  map[descKey]*prometheus.Desc
	// help of exposed metric name, first registered wins.
	help map[string]string
}

type descKey struct {
	name   string
	labels string
}

var (
	_ pipeline.Output      = (*Exporter)(nil)
	_ prometheus.Collector = (*Exporter)(nil)
)

// NewExporter creates new Exporter.
func NewExporter(ttl time.Duration) *Exporter {
	return &Exporter{
		ttl:    ttl,
		now:    time.Now,
		points: map[series.Hash]*exposed{},
		series: map[series.Hash]*sample{},
		descs:  map[descKey]*prometheus.Desc{},
		help:   map[string]string{},
	}
}

type label struct {
	name  string
	value string
}

// labels returns label names and values of point, sorted by name.
//
// Attributes which map to already used label name are skipped.
func labels(p measurement.PointRef) (names, values []string) {
	pairs := []label{
		{name: "resource_kind", value: p.ResourceKind()},
		{name: "resource_id", value: p.ResourceID()},
	}
	for _, a := range series.Attrs(p) {
		name := series.LabelName(a.Key)
		if name == "" {
			continue
		}
		if slices.ContainsFunc(pairs, func(l label) bool { return l.name == name }) {
			continue
		}
		pairs = append(pairs, label{name: name, value: a.Value.String()})
	}
	slices.SortFunc(pairs, func(a, b label) int {
		return strings.Compare(a.name, b.name)
	})
	names = make([]string, len(pairs))
	values = make([]string, len(pairs))
	for i, l := range pairs {
		names[i], values[i] = l.name, l.value
	}
	return names, values
}

func (e *Exporter) desc(name string, m metric.Metric, names []string, reg *metric.Frozen) *prometheus.Desc {
	k := descKey{name: name, labels: strings.Join(names, "\x00")}
	if d, ok := e.descs[k]; ok {
		return d
	}
	help, ok := e.help[name]
	if !ok {
		help = m.Description
		if help == "" {
			help = m.Name
		}
		if u := reg.UnitName(m.Unit); u != "" {
			help += " [" + u + "]"
		}
		e.help[name] = help
	}
	d := prometheus.NewDesc(name, help, names, nil)
	e.descs[k] = d
	return d
}

// Write implements [pipeline.Output].
func (e *Exporter) Write(_ context.Context, view measurement.View, reg *metric.Frozen) error {
	e.mux.Lock()
	defer e.mux.Unlock()

	now := e.now()
	for p := range view.All() {
		id := series.Of(p)
		x, ok := e.points[id]
		if !ok {
			m, ok := reg.Get(p.Metric())
			if !ok {
				return errors.Errorf("unknown %s", p.Metric())
			}
			name := series.LabelName(m.Name)
			names, values := labels(p)
			x = &exposed{
				key:    series.Labels(name, names, values),
				desc:   e.desc(name, m, names, reg),
				labels: values,
			}
			e.points[id] = x
		}
		x.seen = now

		s, ok := e.series[x.key]
		if !ok {
			s = &sample{desc: x.desc, labels: x.labels}
			e.series[x.key] = s
		}
		s.value = p.Value().Float()
		s.seen = now
	}
	for h, x := range e.points {
		if now.Sub(x.seen) > e.ttl {
			delete(e.points, h)
		}
	}
	for h, s := range e.series {
		if now.Sub(s.seen) > e.ttl {
			delete(e.series, h)
		}
	}
	return nil
}

// Describe implements [prometheus.Collector].
//
// Exporter is an unchecked collector: its metrics are only known after
// the first write.
func (e *Exporter) Describe(chan<- *prometheus.Desc) {}

// Collect implements [prometheus.Collector].
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mux.Lock()
	defer e.mux.Unlock()

	for _, s := range e.series {
		m, err := prometheus.NewConstMetric(s.desc, prometheus.GaugeValue, s.value, s.labels...)
		if err != nil {
			ch <- prometheus.NewInvalidMetric(s.desc, err)
			continue
		}
		ch <- m
	}
}
