package main

import (
	"slices"

	"github.com/go-faster/errors"
	"go.uber.org/multierr"

	"github.com/go-faster/measured/internal/pipeline"
	"github.com/go-faster/measured/internal/plugins/attrs"
	"github.com/go-faster/measured/internal/plugins/console"
	"github.com/go-faster/measured/internal/plugins/filter"
	"github.com/go-faster/measured/internal/plugins/jsonl"
	"github.com/go-faster/measured/internal/plugins/otlpexport"
	"github.com/go-faster/measured/internal/plugins/procstat"
	"github.com/go-faster/measured/internal/plugins/promexport"
)

// catalog is a set of plugins compiled into binary.
var catalog = map[string]func() pipeline.Plugin{
	procstat.Name:   func() pipeline.Plugin { return procstat.New() },
	attrs.Name:      func() pipeline.Plugin { return attrs.Plugin{} },
	filter.Name:     func() pipeline.Plugin { return filter.Plugin{} },
	console.Name:    func() pipeline.Plugin { return console.Plugin{} },
	jsonl.Name:      func() pipeline.Plugin { return jsonl.Plugin{} },
	promexport.Name: func() pipeline.Plugin { return promexport.Plugin{} },
	otlpexport.Name: func() pipeline.Plugin { return otlpexport.Plugin{} },
}

func pluginNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func newBuilder(cfg Config, opts pipeline.Options) (*pipeline.Builder, error) {
	enabled, err := cfg.EnabledPlugins()
	if err != nil {
		return nil, errors.Wrap(err, "plugins")
	}
	if len(enabled) == 0 {
		return nil, errors.New("no plugins enabled")
	}

	opts.SourceConcurrency = cfg.SourceConcurrency
	opts.OutputQueueSize = cfg.OutputQueueSize
	b := pipeline.NewBuilder(opts)
	for _, pc := range enabled {
		newPlugin, ok := catalog[pc.Name]
		if !ok {
			err := errors.Errorf("unknown plugin %q (available: %v)", pc.Name, pluginNames())
			return nil, multierr.Append(err, b.Close())
		}
		if err := b.Init(newPlugin(), pc.Config); err != nil {
			// Release elements of already initialized plugins.
			return nil, multierr.Append(err, b.Close())
		}
	}
	return b, nil
}
