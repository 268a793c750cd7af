package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/yaml"

	"github.com/go-faster/measured/internal/configtree"
)

// defaultConfigName is a config file used if no path is given.
const defaultConfigName = "measured.yml"

func loadConfig(name string) (cfg Config, rerr error) {
	defer func() {
		if rerr != nil {
			return
		}
		// Environment variable has higher precedence.
		if v := os.Getenv("MEASURED_INTERVAL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				rerr = errors.Wrap(err, "parse MEASURED_INTERVAL")
				return
			}
			cfg.Interval = d
		}
		cfg.setDefaults()
	}()

	if name == "" {
		name = defaultConfigName
		if _, err := os.Stat(name); err != nil {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(filepath.Clean(name))
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Config is the measured config.
type Config struct {
	// Interval between collection ticks.
	Interval time.Duration `json:"interval" yaml:"interval"`
	// SourceConcurrency limits number of concurrently polled sources.
	SourceConcurrency int          `json:"source_concurrency" yaml:"source_concurrency"`
	// OutputQueueSize is a number of batches buffered for each output.
	OutputQueueSize   int          `json:"output_queue_size" yaml:"output_queue_size"`
	ZPages            ZPagesConfig `json:"zpages" yaml:"zpages"`

	// Plugins is a mapping of plugin name to its config.
	//
	// A null value enables plugin with default config, false disables it.
	Plugins yaml.Node `json:"plugins" yaml:"plugins"`
}

func (cfg *Config) setDefaults() {
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.Plugins.Kind == 0 {
		// Print host stats if nothing is configured.
		cfg.Plugins = yaml.Node{
			Kind: yaml.MappingNode,
			Content: []*yaml.Node{
				{Kind: yaml.ScalarNode, Value: "procstat"},
				{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"},
				{Kind: yaml.ScalarNode, Value: "console"},
				{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"},
			},
		}
	}
}

// ZPagesConfig is zPages server config.
type ZPagesConfig struct {
	// Bind is a listen address. zPages are disabled if empty.
	Bind string `json:"bind" yaml:"bind"`
}

// PluginConfig is a config of enabled plugin.
type PluginConfig struct {
	Name   string
	Config *configtree.Table
}

// EnabledPlugins returns enabled plugins in definition order.
func (cfg Config) EnabledPlugins() (r []PluginConfig, _ error) {
	node := &cfg.Plugins
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.Errorf("line %d: plugins must be a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		name := key.Value

		switch {
		case value.Kind == yaml.ScalarNode && value.ShortTag() == "!!null":
			r = append(r, PluginConfig{Name: name})
		case value.Kind == yaml.ScalarNode && value.ShortTag() == "!!bool":
			var enabled bool
			if err := value.Decode(&enabled); err != nil {
				return nil, errors.Wrapf(err, "plugin %q", name)
			}
			if enabled {
				r = append(r, PluginConfig{Name: name})
			}
		case value.Kind == yaml.MappingNode:
			t, err := configtree.FromYAML(value)
			if err != nil {
				return nil, errors.Wrapf(err, "plugin %q", name)
			}
			r = append(r, PluginConfig{Name: name, Config: t})
		default:
			return nil, errors.Errorf("line %d: plugin %q: mapping, boolean or null expected", value.Line, name)
		}
	}
	return r, nil
}
