// Package filter implements transform that drops points by metric name.
package filter

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/pipeline"
)

// Name is a plugin name.
const Name = "filter"

// Config is a plugin configuration.
//
// If Include is not empty, only listed metrics are kept. Metrics listed in
// Exclude are always dropped.
type Config struct {
	Include []string
	Exclude []string
	// Resources lists resource kinds to keep, all if empty.
	Resources []string
}

// ParseConfig parses plugin configuration.
func ParseConfig(t *configtree.Table) (c Config, _ error) {
	for _, key := range t.Keys() {
		list := t.Array(key)
		if list == nil {
			return c, errors.Errorf("%q: array expected", key)
		}
		values := list.Strings()
		if len(values) != list.Len() {
			return c, errors.Errorf("%q: array of strings expected", key)
		}
		switch key {
		case "include":
			c.Include = values
		case "exclude":
			c.Exclude = values
		case "resources":
			c.Resources = values
		default:
			return c, errors.Errorf("unknown key %q", key)
		}
	}
	return c, nil
}

// Plugin registers filter transform.
type Plugin struct{}

var _ pipeline.Plugin = Plugin{}

// Name implements [pipeline.Plugin].
func (Plugin) Name() string { return Name }

// Init implements [pipeline.Plugin].
func (Plugin) Init(s *pipeline.Startup, cfg *configtree.Table) error {
	c, err := ParseConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "parse config")
	}
	s.AddTransform("metrics", NewTransform(c))
	return nil
}

// Transform removes points that do not match configuration.
type Transform struct {
	include   map[string]struct{}
	exclude   map[string]struct{}
	resources map[string]struct{}
}

func set(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// NewTransform creates new Transform.
func NewTransform(c Config) *Transform {
	return &Transform{
		include:   set(c.Include),
		exclude:   set(c.Exclude),
		resources: set(c.Resources),
	}
}

func (t *Transform) keep(p *measurement.Point, reg *metric.Frozen) bool {
	name := reg.Name(p.Metric())
	if _, ok := t.exclude[name]; ok {
		return false
	}
	if t.include != nil {
		if _, ok := t.include[name]; !ok {
			return false
		}
	}
	if t.resources != nil {
		if _, ok := t.resources[p.ResourceKind()]; !ok {
			return false
		}
	}
	return true
}

// Apply implements [pipeline.Transform].
func (t *Transform) Apply(ctx context.Context, buf *measurement.Buffer, reg *metric.Frozen) error {
	removed := buf.Retain(func(p *measurement.Point) bool {
		return t.keep(p, reg)
	})
	if removed > 0 {
		zctx.From(ctx).Debug("Points filtered",
			zap.Int("removed", removed),
			zap.Int("kept", buf.Len()),
		)
	}
	return nil
}
