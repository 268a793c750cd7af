// Package attrs implements transform that attaches static attributes to points.
package attrs

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/pipeline"
)

// Name is a plugin name.
const Name = "attrs"

// Config is a plugin configuration.
type Config struct {
	// Attributes to append, in configuration order.
	Attributes []measurement.Attribute
	// Replace removes existing attributes with the same key first.
	Replace bool
}

// ParseConfig parses plugin configuration.
func ParseConfig(t *configtree.Table) (c Config, _ error) {
	for _, key := range t.Keys() {
		switch key {
		case "replace":
			v, ok := t.Bool(key)
			if !ok {
				return c, errors.Errorf("%q: bool expected", key)
			}
			c.Replace = v
		case "attributes":
			attrs := t.Table(key)
			if attrs == nil {
				return c, errors.Errorf("%q: table expected", key)
			}
			for _, name := range attrs.Keys() {
				n, _ := attrs.Get(name)
				v, err := attrValue(n)
				if err != nil {
					return c, errors.Wrapf(err, "attribute %q", name)
				}
				c.Attributes = append(c.Attributes, measurement.Attribute{Key: name, Value: v})
			}
		default:
			return c, errors.Errorf("unknown key %q", key)
		}
	}
	return c, nil
}

func attrValue(n configtree.Node) (measurement.AttrValue, error) {
	switch n.Kind() {
	case configtree.KindString:
		v, _ := n.String()
		return measurement.StrAttr(v), nil
	case configtree.KindInt:
		v, _ := n.Int()
		if v < 0 {
			return measurement.AttrValue{}, errors.Errorf("negative integer %d", v)
		}
		return measurement.U64Attr(uint64(v)), nil
	case configtree.KindFloat:
		v, _ := n.Float()
		return measurement.F64Attr(v), nil
	case configtree.KindBool:
		v, _ := n.Bool()
		return measurement.BoolAttr(v), nil
	default:
		return measurement.AttrValue{}, errors.Errorf("unsupported value kind %s", n.Kind())
	}
}

// Plugin registers attrs transform.
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
	s.AddTransform("attributes", &Transform{cfg: c})
	return nil
}

// Transform appends configured attributes to every point.
type Transform struct {
	cfg Config
}

// NewTransform creates new Transform.
func NewTransform(cfg Config) *Transform {
	return &Transform{cfg: cfg}
}

// Apply implements [pipeline.Transform].
func (t *Transform) Apply(_ context.Context, buf *measurement.Buffer, _ *metric.Frozen) error {
	if len(t.cfg.Attributes) == 0 {
		return nil
	}
	buf.ForEach(func(p *measurement.Point) {
		if t.cfg.Replace {
			for _, a := range t.cfg.Attributes {
				p.RemoveAttr(a.Key)
			}
		}
		for _, a := range t.cfg.Attributes {
			p.SetAttr(a.Key, a.Value)
		}
	})
	return nil
}
