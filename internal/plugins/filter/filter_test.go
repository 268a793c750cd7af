package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-faster/measured/internal/configtree"
	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/pipeline"
	"github.com/go-faster/measured/internal/pipeline/pipelinetest"
	"github.com/go-faster/measured/internal/resource"
	"github.com/go-faster/measured/internal/unit"
)

func source() pipelinetest.Func {
	return pipelinetest.Points("src", func(s *pipeline.Startup) (func(measurement.Timestamp) []*measurement.Point, error) {
		power, err := pipeline.CreateTypedMetric[float64](s, "cpu.power", unit.Watt, "")
		if err != nil {
			return nil, err
		}
		energy, err := pipeline.CreateTypedMetric[uint64](s, "cpu.energy", unit.Joule, "")
		if err != nil {
			return nil, err
		}
		temp, err := pipeline.CreateTypedMetric[float64](s, "cpu.temp", unit.DegreeCelsius, "")
		if err != nil {
			return nil, err
		}
		return func(ts measurement.Timestamp) []*measurement.Point {
			return []*measurement.Point{
				measurement.New(ts, power, resource.CPUPackage(0), 10),
				measurement.New(ts, energy, resource.CPUPackage(0), 100),
				measurement.New(ts, temp, resource.CPUCore(1), 50),
				measurement.New(ts, power, resource.LocalMachine(), 20),
			}
		}, nil
	})
}

func TestTransform(t *testing.T) {
	for _, tt := range []struct {
		name   string
		config string
		want   []string
	}{
		{
			"Empty",
			"",
			[]string{"cpu.power", "cpu.energy", "cpu.temp", "cpu.power"},
		},
		{
			"Include",
			"include: [cpu.power, cpu.temp]",
			[]string{"cpu.power", "cpu.temp", "cpu.power"},
		},
		{
			"Exclude",
			"exclude: [cpu.power]",
			[]string{"cpu.energy", "cpu.temp"},
		},
		{
			"IncludeExclude",
			"{include: [cpu.power, cpu.temp], exclude: [cpu.temp]}",
			[]string{"cpu.power", "cpu.power"},
		},
		{
			"Resources",
			"resources: [cpu_package]",
			[]string{"cpu.power", "cpu.energy"},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cfg, err := configtree.Parse([]byte(tt.config))
			require.NoError(t, err)

			rec := &pipelinetest.Recorder{}
			p := pipelinetest.Build(t,
				pipelinetest.Entry{Plugin: source()},
				pipelinetest.Entry{Plugin: Plugin{}, Config: cfg},
				pipelinetest.Entry{Plugin: rec.Plugin()},
			)
			require.NoError(t, p.Tick(ctx, measurement.Now()))

			var got []string
			for _, point := range rec.Points() {
				got = append(got, point.Metric)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseConfig(t *testing.T) {
	for _, input := range []string{
		"include: cpu.power",
		"include: [1, 2]",
		"other: [a]",
	} {
		cfg, err := configtree.Parse([]byte(input))
		require.NoError(t, err)
		_, err = ParseConfig(cfg)
		require.Error(t, err, input)
	}
}
