// Package jsonl implements output that writes measurements as JSON lines.
package jsonl

import (
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/pipeline"
)

// Name is a plugin name.
const Name = "jsonl"

// Config is a plugin configuration.
type Config struct {
	// Path to output file.
	Path string
	// Zstd enables zstd compression.
	Zstd bool
	// Append appends to existing file instead of truncating it.
	Append bool
}

// ParseConfig parses plugin configuration.
func ParseConfig(t *configtree.Table) (c Config, _ error) {
	for _, key := range t.Keys() {
		switch key {
		case "path":
			v, ok := t.String(key)
			if !ok {
				return c, errors.Errorf("%q: string expected", key)
			}
			c.Path = v
		case "zstd":
			v, ok := t.Bool(key)
			if !ok {
				return c, errors.Errorf("%q: bool expected", key)
			}
			c.Zstd = v
		case "append":
			v, ok := t.Bool(key)
			if !ok {
				return c, errors.Errorf("%q: bool expected", key)
			}
			c.Append = v
		default:
			return c, errors.Errorf("unknown key %q", key)
		}
	}
	if c.Path == "" {
		return c, errors.New("path is required")
	}
	return c, nil
}

// Plugin registers jsonl output.
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
	o, err := Open(c)
	if err != nil {
		return err
	}
	s.Logger().Info("Writing measurements", zap.String("path", c.Path), zap.Bool("zstd", c.Zstd))
	s.AddOutput("file", o)
	return nil
}

// Output writes points as JSON lines.
type Output struct {
	closer io.Closer
	zw     *zstd.Encoder
	w      *bufio.Writer
	e      jx.Encoder
}

var _ pipeline.Dropper = (*Output)(nil)

// Open opens file output.
func Open(c Config) (_ *Output, rerr error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if c.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(c.Path, flags, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	defer func() {
		if rerr != nil {
			_ = f.Close()
		}
	}()
	return NewOutput(f, c.Zstd)
}

// NewOutput creates new Output writing to w.
//
// If w is an [io.Closer], it is closed on Drop.
func NewOutput(w io.Writer, compress bool) (*Output, error) {
	o := &Output{}
	if c, ok := w.(io.Closer); ok {
		o.closer = c
	}
	if compress {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, errors.Wrap(err, "create encoder")
		}
		o.zw = zw
		w = zw
	}
	o.w = bufio.NewWriter(w)
	return o, nil
}

// Write implements [pipeline.Output].
func (o *Output) Write(ctx context.Context, view measurement.View, reg *metric.Frozen) error {
	for p := range view.All() {
		o.e.Reset()
		encodePoint(&o.e, p, reg)
		o.e.RawStr("\n")
		if _, err := o.w.Write(o.e.Bytes()); err != nil {
			return errors.Wrap(err, "write")
		}
	}
	if err := o.w.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	if o.zw != nil {
		if err := o.zw.Flush(); err != nil {
			return errors.Wrap(err, "flush encoder")
		}
	}
	zctx.From(ctx).Debug("Points written", zap.Int("points", view.Len()))
	return nil
}

// Drop implements [pipeline.Dropper].
func (o *Output) Drop() (rerr error) {
	if err := o.w.Flush(); err != nil {
		rerr = multierr.Append(rerr, errors.Wrap(err, "flush"))
	}
	if o.zw != nil {
		if err := o.zw.Close(); err != nil {
			rerr = multierr.Append(rerr, errors.Wrap(err, "close encoder"))
		}
	}
	if o.closer != nil {
		if err := o.closer.Close(); err != nil {
			rerr = multierr.Append(rerr, errors.Wrap(err, "close file"))
		}
	}
	return rerr
}

func encodeFloat(e *jx.Encoder, f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		// Not representable in JSON.
		e.Str(strconv.FormatFloat(f, 'g', -1, 64))
		return
	}
	e.Float64(f)
}

func encodeAttr(e *jx.Encoder, v measurement.AttrValue) {
	switch v.Kind() {
	case measurement.AttrU64:
		n, _ := v.U64()
		e.UInt64(n)
	case measurement.AttrF64:
		f, _ := v.F64()
		encodeFloat(e, f)
	case measurement.AttrBool:
		b, _ := v.Bool()
		e.Bool(b)
	case measurement.AttrStr:
		s, _ := v.Str()
		e.Str(s)
	default:
		e.Null()
	}
}

func encodePoint(e *jx.Encoder, p measurement.PointRef, reg *metric.Frozen) {
	m, _ := reg.Get(p.Metric())
	e.Obj(func(e *jx.Encoder) {
		e.Field("ts", func(e *jx.Encoder) {
			e.Str(p.Timestamp().Time().UTC().Format(time.RFC3339Nano))
		})
		e.Field("metric", func(e *jx.Encoder) {
			e.Str(m.Name)
		})
		if u := reg.UnitName(m.Unit); u != "" {
			e.Field("unit", func(e *jx.Encoder) {
				e.Str(u)
			})
		}
		e.Field("value", func(e *jx.Encoder) {
			v := p.Value()
			if n, ok := v.U64(); ok {
				e.UInt64(n)
				return
			}
			encodeFloat(e, v.Float())
		})
		e.Field("resource", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("kind", func(e *jx.Encoder) {
					e.Str(p.ResourceKind())
				})
				if id := p.ResourceID(); id != "" {
					e.Field("id", func(e *jx.Encoder) {
						e.Str(id)
					})
				}
			})
		})
		if p.AttrLen() > 0 {
			// Keys may repeat, so attributes are encoded as list.
			e.Field("attributes", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for k, v := range p.Attributes() {
						e.Obj(func(e *jx.Encoder) {
							e.Field("key", func(e *jx.Encoder) {
								e.Str(k)
							})
							e.Field("value", func(e *jx.Encoder) {
								encodeAttr(e, v)
							})
						})
					}
				})
			})
		}
	})
}
