// Package pipelinetest contains helpers for testing plugins.
package pipelinetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/pipeline"
	"github.com/go-faster/measured/internal/resource"
)

// Func is a functional plugin.
type Func struct {
	PluginName string
	InitFunc   func(s *pipeline.Startup, cfg *configtree.Table) error
}

// Name implements [pipeline.Plugin].
func (f Func) Name() string { return f.PluginName }

// Init implements [pipeline.Plugin].
func (f Func) Init(s *pipeline.Startup, cfg *configtree.Table) error { return f.InitFunc(s, cfg) }

// Entry is a plugin with its configuration.
type Entry struct {
	Plugin pipeline.Plugin
	Config *configtree.Table
}

// Build initializes given plugins and builds pipeline.
//
// Pipeline is closed on test cleanup.
func Build(t testing.TB, entries ...Entry) *pipeline.Pipeline {
	t.Helper()

	b := pipeline.NewBuilder(pipeline.Options{
		Logger: zaptest.NewLogger(t),
	})
	for _, e := range entries {
		require.NoError(t, b.Init(e.Plugin, e.Config))
	}
	p, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, p.Close())
	})
	return p
}

// Points returns plugin that registers source pushing points created by fn.
func Points(name string, fn func(s *pipeline.Startup) (func(ts measurement.Timestamp) []*measurement.Point, error)) Func {
	return Func{
		PluginName: name,
		InitFunc: func(s *pipeline.Startup, _ *configtree.Table) error {
			gen, err := fn(s)
			if err != nil {
				return err
			}
			s.AddSource(name, pipeline.SourceFunc(func(_ context.Context, acc *measurement.Accumulator, ts measurement.Timestamp) error {
				for _, p := range gen(ts) {
					acc.Push(p)
				}
				return nil
			}))
			return nil
		},
	}
}

// Point is a copy of point seen by [Recorder].
type Point struct {
	Metric    string
	Value     metric.Value
	Timestamp measurement.Timestamp
	Resource  resource.Resource
	Attrs     []measurement.Attribute
}

// Recorder is an output that copies every point it receives.
type Recorder struct {
	mux    sync.Mutex
	writes int
	points []Point
}

// Write implements [pipeline.Output].
func (r *Recorder) Write(_ context.Context, view measurement.View, reg *metric.Frozen) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	r.writes++
	for p := range view.All() {
		rp := Point{
			Metric:    reg.Name(p.Metric()),
			Value:     p.Value(),
			Timestamp: p.Timestamp(),
			Resource:  p.Resource(),
		}
		for k, v := range p.Attributes() {
			rp.Attrs = append(rp.Attrs, measurement.Attribute{Key: k, Value: v})
		}
		r.points = append(r.points, rp)
	}
	return nil
}

// Plugin returns plugin registering recorder as output.
func (r *Recorder) Plugin() Func {
	return Func{
		PluginName: "recorder",
		InitFunc: func(s *pipeline.Startup, _ *configtree.Table) error {
			s.AddOutput("recorder", r)
			return nil
		},
	}
}

// Writes returns number of Write calls.
func (r *Recorder) Writes() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return r.writes
}

// Points returns recorded points and resets recorder.
func (r *Recorder) Points() []Point {
	r.mux.Lock()
	defer r.mux.Unlock()
	points := r.points
	r.points = nil
	return points
}
