// Package procstat implements source of host CPU and memory statistics.
package procstat

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/go-faster/measured/internal/autometric"
	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/pipeline"
	"github.com/go-faster/measured/internal/resource"
)

// Name is a plugin name.
const Name = "procstat"

type metrics struct {
	CPUTime     metric.TypedID[float64] `name:"cpu.time" unit:"s" description:"Time spent by CPU in each mode"`
	MemoryUsed  metric.TypedID[uint64]  `name:"memory.used" unit:"byte" description:"Used physical memory"`
	MemoryTotal metric.TypedID[uint64]  `name:"memory.total" unit:"byte" description:"Total physical memory"`
}

// Config is a plugin configuration.
type Config struct {
	// PerCPU reports CPU times per core instead of total.
	PerCPU bool
	// Memory enables memory statistics.
	Memory bool
	// Trigger of the source, zero polls at pipeline interval.
	Trigger pipeline.Trigger
}

func (c *Config) setDefaults() {
	c.PerCPU = true
	c.Memory = true
}

// ParseConfig parses plugin configuration.
func ParseConfig(t *configtree.Table) (c Config, _ error) {
	c.setDefaults()
	for _, key := range t.Keys() {
		switch key {
		case "per_cpu":
			v, ok := t.Bool(key)
			if !ok {
				return c, errors.Errorf("%q: bool expected", key)
			}
			c.PerCPU = v
		case "memory":
			v, ok := t.Bool(key)
			if !ok {
				return c, errors.Errorf("%q: bool expected", key)
			}
			c.Memory = v
		case "interval", "flush_interval":
			v, _ := t.String(key)
			d, err := time.ParseDuration(v)
			if err != nil {
				return c, errors.Wrapf(err, "parse %q", key)
			}
			if key == "interval" {
				c.Trigger.Interval = d
			} else {
				c.Trigger.FlushInterval = d
			}
		default:
			return c, errors.Errorf("unknown key %q", key)
		}
	}
	if err := c.Trigger.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Plugin registers procstat source.
type Plugin struct {
	times  func(ctx context.Context, percpu bool) ([]cpu.TimesStat, error)
	memory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

var _ pipeline.Plugin = (*Plugin)(nil)

// New creates new Plugin.
func New() *Plugin {
	return &Plugin{
		times:  cpu.TimesWithContext,
		memory: mem.VirtualMemoryWithContext,
	}
}

// Name implements [pipeline.Plugin].
func (p *Plugin) Name() string { return Name }

// Init implements [pipeline.Plugin].
func (p *Plugin) Init(s *pipeline.Startup, cfg *configtree.Table) error {
	c, err := ParseConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "parse config")
	}
	var m metrics
	if err := autometric.Init(s, &m, autometric.InitOptions{}); err != nil {
		return errors.Wrap(err, "init metrics")
	}
	s.AddTriggeredSource("host", &source{
		cfg:     c,
		metrics: m,
		times:   p.times,
		memory:  p.memory,
	}, c.Trigger)
	return nil
}

type source struct {
	cfg     Config
	metrics metrics
	times   func(ctx context.Context, percpu bool) ([]cpu.TimesStat, error)
	memory  func(ctx context.Context) (*mem.VirtualMemoryStat, error)
}

// cpuResource maps gopsutil CPU name ("cpu3" or "cpu-total") to resource.
func cpuResource(name string) (resource.Resource, error) {
	if name == "cpu-total" {
		return resource.LocalMachine(), nil
	}
	idx, err := strconv.ParseUint(strings.TrimPrefix(name, "cpu"), 10, 32)
	if err != nil {
		return resource.Resource{}, errors.Wrapf(err, "parse cpu name %q", name)
	}
	return resource.CPUCore(uint32(idx)), nil
}

func (s *source) Poll(ctx context.Context, acc *measurement.Accumulator, ts measurement.Timestamp) error {
	times, err := s.times(ctx, s.cfg.PerCPU)
	if err != nil {
		return errors.Wrap(err, "cpu times")
	}
	acc.Reserve(len(times) * 8)
	for _, t := range times {
		res, err := cpuResource(t.CPU)
		if err != nil {
			return err
		}
		for _, mode := range [...]struct {
			name  string
			value float64
		}{
			{"user", t.User},
			{"system", t.System},
			{"idle", t.Idle},
			{"nice", t.Nice},
			{"iowait", t.Iowait},
			{"irq", t.Irq},
			{"softirq", t.Softirq},
			{"steal", t.Steal},
		} {
			acc.Push(measurement.New(ts, s.metrics.CPUTime, res, mode.value).AttrStr("mode", mode.name))
		}
	}

	if !s.cfg.Memory {
		return nil
	}
	vm, err := s.memory(ctx)
	if err != nil {
		return errors.Wrap(err, "virtual memory")
	}
	acc.Push(measurement.New(ts, s.metrics.MemoryUsed, resource.LocalMachine(), vm.Used))
	acc.Push(measurement.New(ts, s.metrics.MemoryTotal, resource.LocalMachine(), vm.Total))
	return nil
}
