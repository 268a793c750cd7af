package autometric

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/unit"
)

type testCreator struct {
	metrics *metric.Registry
}

func newTestCreator() *testCreator {
	return &testCreator{
		metrics: metric.NewRegistry(),
	}
}

func (c *testCreator) CreateMetric(name string, typ metric.ValueType, u unit.Unit, description string) (metric.ID, error) {
	return c.metrics.Create(name, typ, u, description)
}

func (c *testCreator) CreateUnit(name string) (unit.Unit, error) {
	return c.metrics.CreateUnit(name)
}

func TestInit(t *testing.T) {
	a := require.New(t)
	c := newTestCreator()

	var test struct {
		// Ignored fields.
		_ int
		_ metric.ID
		// Embedded fields.
		fmt.Stringer
		// Private fields.
		private metric.TypedID[uint64]
		// Skip.
		SkipMe metric.TypedID[uint64] `autometric:"-"`

		PackagePower metric.TypedID[float64] `unit:"W" description:"Package power"`
		Energy       metric.TypedID[uint64]  `name:"energy_total" unit:"J"`
		Events       metric.ID               `type:"u64" unit:"event"`
		Temperature  metric.ID               `type:"f64" unit:"°C"`
		Counter      metric.TypedID[uint64]  `type:"u64"`
	}
	const prefix = "test."
	a.NoError(Init(c, &test, InitOptions{Prefix: prefix}))
	a.Zero(test.private)
	a.Zero(test.SkipMe)

	f := c.metrics.Freeze()
	type MetricInfo struct {
		Name        string
		Description string
		ValueType   metric.ValueType
		Unit        string
	}
	var infos []MetricInfo
	for m := range f.All() {
		infos = append(infos, MetricInfo{
			Name:        m.Name,
			Description: m.Description,
			ValueType:   m.ValueType,
			Unit:        f.UnitName(m.Unit),
		})
	}
	a.Equal([]MetricInfo{
		{Name: prefix + "package_power", Description: "Package power", ValueType: metric.F64, Unit: "W"},
		{Name: prefix + "energy_total", ValueType: metric.U64, Unit: "J"},
		{Name: prefix + "events", ValueType: metric.U64, Unit: "event"},
		{Name: prefix + "temperature", ValueType: metric.F64, Unit: "°C"},
		{Name: prefix + "counter", ValueType: metric.U64, Unit: ""},
	}, infos)

	a.Equal("test.package_power", f.Name(test.PackagePower.Untyped()))
	a.Equal("test.energy_total", f.Name(test.Energy.Untyped()))
	a.Equal("test.events", f.Name(test.Events))
	a.NoError(f.Check(test.Temperature, metric.F64))
}

func TestInitDelimiter(t *testing.T) {
	c := newTestCreator()

	var test struct {
		PackagePower metric.TypedID[float64] `unit:"W"`
	}
	require.NoError(t, Init(c, &test, InitOptions{Prefix: "rapl.", Delimiter: '.'}))
	require.Equal(t, "rapl.package.power", c.metrics.Freeze().Name(test.PackagePower.Untyped()))
}

func TestInitIdempotent(t *testing.T) {
	c := newTestCreator()

	type metrics struct {
		Power metric.TypedID[float64] `unit:"W"`
	}
	var first, second metrics
	require.NoError(t, Init(c, &first, InitOptions{}))
	require.NoError(t, Init(c, &second, InitOptions{}))
	require.Equal(t, first, second)
}

func TestInitErrors(t *testing.T) {
	type (
		JustStruct struct{}

		UnexpectedType struct {
			Foo int
		}
		MissingType struct {
			Foo metric.ID
		}
		UnknownType struct {
			Foo metric.ID `type:"i32"`
		}
		ConflictingType struct {
			Foo metric.TypedID[float64] `type:"u64"`
		}
		Conflict struct {
			A metric.TypedID[float64] `name:"same"`
			B metric.TypedID[uint64]  `name:"same"`
		}
	)

	for i, tt := range []struct {
		s   any
		err string
	}{
		{0, "a pointer-to-struct expected, got int"},
		{JustStruct{}, "a pointer-to-struct expected, got autometric.JustStruct"},

		{&UnexpectedType{}, "field (autometric.UnexpectedType).Foo: unexpected type int"},
		{&MissingType{}, "field (autometric.MissingType).Foo: type tag is required for untyped metric id"},
		{&UnknownType{}, `field (autometric.UnknownType).Foo: unknown value type "i32"`},
		{&ConflictingType{}, `field (autometric.ConflictingType).Foo: type tag "u64" conflicts with field type metric.TypedID[float64]`},
		{&Conflict{}, `field (autometric.Conflict).B: create metric "same": metric "same" is already registered as f64 [], requested u64 []`},
	} {
		t.Run(fmt.Sprintf("Test%d", i+1), func(t *testing.T) {
			require.EqualError(t, Init(newTestCreator(), tt.s, InitOptions{}), tt.err)
		})
	}
}
