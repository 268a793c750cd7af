package measurement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/resource"
	"github.com/go-faster/measured/internal/unit"
)

func testRegistry(t *testing.T) (*metric.Frozen, metric.TypedID[uint64], metric.TypedID[float64]) {
	t.Helper()

	r := metric.NewRegistry()
	counter, err := metric.Create[uint64](r, "test.counter", unit.Unity, "")
	require.NoError(t, err)
	power, err := metric.Create[float64](r, "test.power", unit.Watt, "")
	require.NoError(t, err)
	return r.Freeze(), counter, power
}

func requireOwnershipPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic")
		_, ok := r.(*OwnershipError)
		require.True(t, ok, "expected *OwnershipError, got %T: %v", r, r)
	}()
	f()
}

func TestTimestamp(t *testing.T) {
	now := time.Unix(1700000000, 123456789)
	ts := FromTime(now)
	require.Equal(t, Timestamp{Secs: 1700000000, Nanos: 123456789}, ts)
	require.True(t, now.Equal(ts.Time()))
	require.Equal(t, uint64(now.UnixNano()), ts.UnixNano())

	require.True(t, FromTime(time.Unix(-1, 0)).IsZero())
	require.False(t, Now().IsZero())
}

func TestPointTyped(t *testing.T) {
	a := require.New(t)
	_, counter, power := testRegistry(t)
	ts := Timestamp{Secs: 10, Nanos: 5}

	p := New(ts, counter, resource.CPUPackage(0), uint64(42))
	a.Equal(counter.Untyped(), p.Metric())
	a.Equal(metric.NewU64(42), p.Value())
	a.Equal(ts, p.Timestamp())
	a.Equal(resource.CPUPackage(0), p.Resource())
	a.Equal("cpu_package", p.ResourceKind())
	a.Equal("0", p.ResourceID())
	p.Release()

	p = New(ts, power, resource.LocalMachine(), 12.5)
	v, ok := p.Value().F64()
	a.True(ok)
	a.Equal(12.5, v)
	a.Equal("local_machine", p.ResourceKind())
	a.Equal("", p.ResourceID())
	p.Release()
}

func TestPointChecked(t *testing.T) {
	a := require.New(t)
	reg, counter, power := testRegistry(t)
	ts := Now()

	p, err := NewU64(reg, ts, counter.Untyped(), resource.LocalMachine(), 1)
	a.NoError(err)
	p.Release()

	p, err = NewF64(reg, ts, power.Untyped(), resource.LocalMachine(), 1)
	a.NoError(err)
	p.Release()

	_, err = NewF64(reg, ts, counter.Untyped(), resource.LocalMachine(), 1)
	a.ErrorIs(err, metric.ErrValueType)
	_, err = NewU64(reg, ts, power.Untyped(), resource.LocalMachine(), 1)
	a.ErrorIs(err, metric.ErrValueType)
	_, err = NewU64(reg, ts, metric.ID(99), resource.LocalMachine(), 1)
	a.Error(err)
}

func TestPointAttributes(t *testing.T) {
	a := require.New(t)
	_, counter, _ := testRegistry(t)

	p := New(Now(), counter, resource.LocalMachine(), uint64(1)).
		AttrU64("core", 3).
		AttrF64("ratio", 0.5).
		AttrBool("turbo", true).
		AttrStr("domain", "pkg").
		AttrStr("domain", "dram")
	a.Equal(5, p.AttrLen())

	type kv struct {
		key   string
		value string
	}
	var got []kv
	for k, v := range p.Attributes() {
		got = append(got, kv{k, v.String()})
	}
	a.Equal([]kv{
		{"core", "3"},
		{"ratio", "0.5"},
		{"turbo", "true"},
		{"domain", "pkg"},
		{"domain", "dram"},
	}, got)

	v, ok := p.Attr("domain")
	a.True(ok)
	s, ok := v.Str()
	a.True(ok)
	a.Equal("pkg", s, "first attribute wins")

	_, ok = p.Attr("missing")
	a.False(ok)

	a.Equal(2, p.RemoveAttr("domain"))
	a.Equal(3, p.AttrLen())
	a.Zero(p.RemoveAttr("domain"))
	p.Release()
}

func TestPointSetters(t *testing.T) {
	a := require.New(t)
	_, counter, _ := testRegistry(t)

	p := New(Now(), counter, resource.LocalMachine(), uint64(1))
	a.NoError(p.SetValue(metric.NewU64(2)))
	a.ErrorIs(p.SetValue(metric.NewF64(2)), metric.ErrValueType)
	a.Equal(metric.NewU64(2), p.Value())

	p.SetResource(resource.CPUCore(1))
	a.Equal(resource.CPUCore(1), p.Resource())
	p.SetTimestamp(Timestamp{Secs: 1})
	a.Equal(Timestamp{Secs: 1}, p.Timestamp())
	p.Release()
}

func TestPointOwnership(t *testing.T) {
	_, counter, _ := testRegistry(t)

	t.Run("UseAfterPush", func(t *testing.T) {
		b := NewBuffer()
		p := New(Now(), counter, resource.LocalMachine(), uint64(1))
		b.Push(p)

		requireOwnershipPanic(t, func() { b.Push(p) })
		requireOwnershipPanic(t, func() { _ = p.Value() })
		requireOwnershipPanic(t, func() { p.AttrStr("k", "v") })
		requireOwnershipPanic(t, func() { p.Release() })
		require.Equal(t, 1, b.Len())
	})
	t.Run("UseAfterRelease", func(t *testing.T) {
		p := New(Now(), counter, resource.LocalMachine(), uint64(1))
		p.Release()

		requireOwnershipPanic(t, func() { p.Release() })
		requireOwnershipPanic(t, func() { NewBuffer().Push(p) })
		requireOwnershipPanic(t, func() { _ = p.Metric() })
	})
	t.Run("PushBorrowed", func(t *testing.T) {
		b := NewBuffer()
		b.Push(New(Now(), counter, resource.LocalMachine(), uint64(1)))

		other := NewBuffer()
		b.ForEach(func(p *Point) {
			requireOwnershipPanic(t, func() { other.Push(p) })
			requireOwnershipPanic(t, func() { p.Release() })
		})
		require.Zero(t, other.Len())
	})
	t.Run("Uninitialized", func(t *testing.T) {
		requireOwnershipPanic(t, func() { NewBuffer().Push(&Point{}) })
	})
}
