package series

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/resource"
	"github.com/go-faster/measured/internal/unit"
)

func TestOf(t *testing.T) {
	reg := metric.NewRegistry()
	power, err := metric.Create[float64](reg, "cpu.power", unit.Watt, "")
	require.NoError(t, err)
	energy, err := metric.Create[float64](reg, "cpu.energy", unit.Joule, "")
	require.NoError(t, err)

	ts := measurement.Now()
	buf := measurement.NewBuffer()
	// 0, 1: same series, different attribute order and value.
	buf.Push(measurement.New(ts, power, resource.CPUPackage(0), 10).AttrStr("a", "1").AttrU64("b", 2))
	buf.Push(measurement.New(ts, power, resource.CPUPackage(0), 20).AttrU64("b", 2).AttrStr("a", "1"))
	// 2: other resource.
	buf.Push(measurement.New(ts, power, resource.CPUPackage(1), 10).AttrStr("a", "1").AttrU64("b", 2))
	// 3: other metric.
	buf.Push(measurement.New(ts, energy, resource.CPUPackage(0), 10).AttrStr("a", "1").AttrU64("b", 2))
	// 4: attribute kind differs.
	buf.Push(measurement.New(ts, power, resource.CPUPackage(0), 10).AttrStr("a", "1").AttrStr("b", "2"))
	// 5: no attributes.
	buf.Push(measurement.New(ts, power, resource.CPUPackage(0), 10))

	view := buf.View()
	hashes := make([]Hash, view.Len())
	for i := range hashes {
		hashes[i] = Of(view.At(i))
		require.NotEqual(t, Hash{}, hashes[i])
	}
	require.Equal(t, hashes[0], hashes[1])
	for i := 2; i < len(hashes); i++ {
		require.NotEqual(t, hashes[0], hashes[i], "point %d", i)
	}
	require.Len(t, hashes[0].String(), 32)
}

func TestOfKeyBoundaries(t *testing.T) {
	reg := metric.NewRegistry()
	id, err := metric.Create[uint64](reg, "events", unit.Unity, "")
	require.NoError(t, err)

	ts := measurement.Now()
	buf := measurement.NewBuffer()
	// Key bytes followed by bool kind and value of the first set are
	// the key of the second one.
	buf.Push(measurement.New(ts, id, resource.LocalMachine(), 1).AttrBool("a", true).AttrStr("b", "x"))
	buf.Push(measurement.New(ts, id, resource.LocalMachine(), 1).AttrStr("a\x03\x01b", "x"))
	// Value bytes moved into key.
	buf.Push(measurement.New(ts, id, resource.LocalMachine(), 1).AttrStr("ab", "c"))
	buf.Push(measurement.New(ts, id, resource.LocalMachine(), 1).AttrStr("a", "bc"))

	view := buf.View()
	require.NotEqual(t, Of(view.At(0)), Of(view.At(1)))
	require.NotEqual(t, Of(view.At(2)), Of(view.At(3)))
}

func TestLabels(t *testing.T) {
	base := Labels("cpu_power", []string{"mode", "resource_id"}, []string{"user", "0"})
	require.Equal(t, base, Labels("cpu_power", []string{"mode", "resource_id"}, []string{"user", "0"}))

	for _, h := range []Hash{
		Labels("cpu_powe", []string{"rmode", "resource_id"}, []string{"user", "0"}),
		Labels("cpu_power", []string{"mod", "resource_id"}, []string{"euser", "0"}),
		Labels("cpu_power", []string{"mode", "resource_id"}, []string{"user", "1"}),
		Labels("cpu_power", []string{"mode"}, []string{"user"}),
		Labels("cpu_power", nil, nil),
	} {
		require.NotEqual(t, base, h)
	}
}

func TestAttrs(t *testing.T) {
	reg := metric.NewRegistry()
	id, err := metric.Create[uint64](reg, "events", unit.Unity, "")
	require.NoError(t, err)

	buf := measurement.NewBuffer()
	buf.Push(measurement.New(measurement.Now(), id, resource.LocalMachine(), 1).
		AttrStr("z", "last").
		AttrU64("a", 1).
		AttrU64("a", 2))

	var keys []string
	var values []string
	for _, a := range Attrs(buf.View().At(0)) {
		keys = append(keys, a.Key)
		values = append(values, a.Value.String())
	}
	require.Equal(t, []string{"a", "a", "z"}, keys)
	require.Equal(t, []string{"1", "2", "last"}, values)
}

func BenchmarkOf(b *testing.B) {
	reg := metric.NewRegistry()
	id, err := metric.Create[float64](reg, "cpu.time", unit.Second, "")
	if err != nil {
		b.Fatal(err)
	}
	buf := measurement.NewBuffer()
	buf.Push(measurement.New(measurement.Now(), id, resource.CPUCore(3), 1).
		AttrStr("mode", "user").
		AttrStr("host", "node-1").
		AttrU64("socket", 0).
		AttrBool("smt", true))
	p := buf.View().At(0)

	var sink Hash
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sink = Of(p)
	}

	if sink == (Hash{}) {
		b.Fatal("hash is zero")
	}
}
