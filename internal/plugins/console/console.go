// Package console implements output that prints measurements.
package console

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-faster/errors"
	"github.com/go-logfmt/logfmt"
	"github.com/mattn/go-isatty"

	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/pipeline"
	"github.com/go-faster/measured/internal/unit"
)

// Name is a plugin name.
const Name = "console"

// Format is an output format.
type Format string

const (
	FormatText   Format = "text"
	FormatLogfmt Format = "logfmt"
)

// Config is a plugin configuration.
type Config struct {
	Format Format
	// Color is "auto", "always" or "never".
	Color string
	// Stderr prints to stderr instead of stdout.
	Stderr bool
}

func (c *Config) setDefaults() {
	if c.Format == "" {
		c.Format = FormatText
	}
	if c.Color == "" {
		c.Color = "auto"
	}
}

// ParseConfig parses plugin configuration.
func ParseConfig(t *configtree.Table) (c Config, _ error) {
	for _, key := range t.Keys() {
		switch key {
		case "format":
			v, _ := t.String(key)
			switch f := Format(v); f {
			case FormatText, FormatLogfmt:
				c.Format = f
			default:
				return c, errors.Errorf("unknown format %q", v)
			}
		case "color":
			v, _ := t.String(key)
			switch v {
			case "auto", "always", "never":
				c.Color = v
			default:
				return c, errors.Errorf("invalid color mode %q", v)
			}
		case "stderr":
			v, ok := t.Bool(key)
			if !ok {
				return c, errors.Errorf("%q: bool expected", key)
			}
			c.Stderr = v
		default:
			return c, errors.Errorf("unknown key %q", key)
		}
	}
	c.setDefaults()
	return c, nil
}

// Plugin registers console output.
type Plugin struct {
	// Writer overrides output file.
	Writer io.Writer
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
	var w io.Writer = os.Stdout
	if c.Stderr {
		w = os.Stderr
	}
	if p.Writer != nil {
		w = p.Writer
	}
	s.AddOutput(string(c.Format), NewOutput(w, c))
	return nil
}

func useColor(w io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Output prints points to writer.
type Output struct {
	w      *bufio.Writer
	format Format

	name  *color.Color
	res   *color.Color
	attr  *color.Color
	value *color.Color
}

// NewOutput creates new Output.
func NewOutput(w io.Writer, c Config) *Output {
	c.setDefaults()
	o := &Output{
		w:      bufio.NewWriter(w),
		format: c.Format,
		name:   color.New(color.FgCyan, color.Bold),
		res:    color.New(color.FgBlue),
		attr:   color.New(color.Faint),
		value:  color.New(color.FgGreen),
	}
	enable := useColor(w, c.Color)
	for _, c := range []*color.Color{o.name, o.res, o.attr, o.value} {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return o
}

// Write implements [pipeline.Output].
func (o *Output) Write(_ context.Context, view measurement.View, reg *metric.Frozen) error {
	var err error
	switch o.format {
	case FormatLogfmt:
		err = o.writeLogfmt(view, reg)
	default:
		err = o.writeText(view, reg)
	}
	if err != nil {
		return errors.Wrap(err, "write")
	}
	return o.w.Flush()
}

func (o *Output) writeLogfmt(view measurement.View, reg *metric.Frozen) error {
	e := logfmt.NewEncoder(o.w)
	for p := range view.All() {
		m, _ := reg.Get(p.Metric())
		if err := e.EncodeKeyvals(
			"ts", p.Timestamp().Time().UTC().Format(time.RFC3339Nano),
			"metric", m.Name,
			"value", p.Value().String(),
			"unit", reg.UnitName(m.Unit),
			"resource_kind", p.ResourceKind(),
			"resource_id", p.ResourceID(),
		); err != nil {
			return err
		}
		for k, v := range p.Attributes() {
			if err := e.EncodeKeyval(k, v.String()); err != nil {
				return err
			}
		}
		if err := e.EndRecord(); err != nil {
			return err
		}
	}
	return nil
}

// formatValue renders value with SI prefix.
func formatValue(v metric.Value, u unit.Unit, unitName string) string {
	if u.Kind() == unit.KindCustom && unitName == "byte" {
		if n, ok := v.U64(); ok {
			return humanize.Bytes(n)
		}
	}
	if v.Type() == metric.U64 && (u == unit.Unity || u.Kind() == unit.KindCustom) {
		n, _ := v.U64()
		s := humanize.Comma(int64(n))
		if unitName != "" {
			s += " " + unitName
		}
		return s
	}
	return strings.TrimSpace(humanize.SIWithDigits(v.Float(), 2, unitName))
}

func (o *Output) writeText(view measurement.View, reg *metric.Frozen) error {
	var buf []byte
	for p := range view.All() {
		m, _ := reg.Get(p.Metric())

		buf = buf[:0]
		buf = p.Timestamp().Time().Local().AppendFormat(buf, time.TimeOnly)
		buf = append(buf, ' ')
		buf = append(buf, o.name.Sprint(m.Name)...)
		buf = append(buf, ' ')
		buf = append(buf, o.res.Sprint(p.Resource().String())...)
		for k, v := range p.Attributes() {
			buf = append(buf, ' ')
			buf = append(buf, o.attr.Sprint(k+"="+strconv.Quote(v.String()))...)
		}
		buf = append(buf, " = "...)
		buf = append(buf, o.value.Sprint(formatValue(p.Value(), m.Unit, reg.UnitName(m.Unit)))...)
		buf = append(buf, '\n')

		if _, err := o.w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
