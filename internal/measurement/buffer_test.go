package measurement

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/resource"
)

func TestBufferOrder(t *testing.T) {
	a := require.New(t)
	_, counter, _ := testRegistry(t)

	const n = 100
	b := NewBuffer()
	b.Reserve(n)
	for i := 0; i < n; i++ {
		b.Push(New(Timestamp{Secs: uint64(i)}, counter, resource.CPUCore(uint32(i)), uint64(i)))
	}
	a.Equal(n, b.Len())

	var i uint64
	b.ForEach(func(p *Point) {
		v, ok := p.Value().U64()
		a.True(ok)
		a.Equal(i, v)
		a.Equal(Timestamp{Secs: i}, p.Timestamp())
		i++
	})
	a.Equal(uint64(n), i)

	i = 0
	b.View().ForEach(func(p PointRef) {
		a.Equal(resource.CPUCore(uint32(i)), p.Resource())
		i++
	})
	a.Equal(uint64(n), i)
}

func TestBufferRoundTrip(t *testing.T) {
	a := require.New(t)
	_, counter, _ := testRegistry(t)

	ts := Timestamp{Secs: 1700000000, Nanos: 999999999}
	b := NewBuffer()
	b.Push(New(ts, counter, resource.CPUPackage(0), uint64(42)).AttrStr("domain", "package"))

	v := b.View()
	a.Equal(1, v.Len())
	p := v.At(0)
	a.Equal(counter.Untyped(), p.Metric())
	a.Equal(resource.CPUPackage(0), p.Resource())
	a.Equal(resource.CPUPackage(0).Encode(), p.Resource().Encode())
	a.Equal(ts, p.Timestamp())
	a.Equal(metric.NewU64(42), p.Value())
	a.Equal(1, p.AttrLen())
	attr, ok := p.Attr("domain")
	a.True(ok)
	a.Equal(StrAttr("package"), attr)
}

func TestBufferRetain(t *testing.T) {
	a := require.New(t)
	_, counter, _ := testRegistry(t)

	b := NewBuffer()
	for i := 0; i < 10; i++ {
		b.Push(New(Now(), counter, resource.LocalMachine(), uint64(i)))
	}
	removed := b.Retain(func(p *Point) bool {
		v, _ := p.Value().U64()
		return v%2 == 0
	})
	a.Equal(5, removed)
	a.Equal(5, b.Len())

	var got []uint64
	for p := range b.View().All() {
		v, _ := p.Value().U64()
		got = append(got, v)
	}
	a.Equal([]uint64{0, 2, 4, 6, 8}, got)
}

func TestBufferRetainPanic(t *testing.T) {
	a := require.New(t)
	_, counter, _ := testRegistry(t)

	b := NewBuffer()
	for i := 0; i < 6; i++ {
		b.Push(New(Now(), counter, resource.LocalMachine(), uint64(i)))
	}
	a.PanicsWithValue("boom", func() {
		b.Retain(func(p *Point) bool {
			v, _ := p.Value().U64()
			if v == 3 {
				panic("boom")
			}
			return v%2 == 0
		})
	})

	// Visited points are filtered, the rest is kept as is.
	var got []uint64
	for p := range b.View().All() {
		v, _ := p.Value().U64()
		got = append(got, v)
	}
	a.Equal([]uint64{0, 2, 3, 4, 5}, got)

	// Buffer is still mutable.
	b.Push(New(Now(), counter, resource.LocalMachine(), uint64(6)))
	a.Equal(6, b.Len())
	removed := b.Retain(func(p *Point) bool {
		v, _ := p.Value().U64()
		return v < 4
	})
	a.Equal(3, removed)
	a.Equal(3, b.Len())
}

func TestBufferMutateInPlace(t *testing.T) {
	_, counter, _ := testRegistry(t)

	b := NewBuffer()
	b.Push(New(Now(), counter, resource.LocalMachine(), uint64(1)))
	b.ForEach(func(p *Point) {
		p.AttrStr("marker", "a")
	})
	b.ForEach(func(p *Point) {
		p.AttrStr("marker", "b")
	})

	var markers []string
	for _, v := range b.View().At(0).Attributes() {
		s, _ := v.Str()
		markers = append(markers, s)
	}
	require.Equal(t, []string{"a", "b"}, markers)
}

func TestBufferPushDuringIteration(t *testing.T) {
	_, counter, _ := testRegistry(t)

	b := NewBuffer()
	b.Push(New(Now(), counter, resource.LocalMachine(), uint64(1)))
	b.ForEach(func(*Point) {
		requireOwnershipPanic(t, func() {
			b.Push(New(Now(), counter, resource.LocalMachine(), uint64(2)))
		})
	})
	require.Equal(t, 1, b.Len())

	// The buffer is usable after iteration.
	b.Push(New(Now(), counter, resource.LocalMachine(), uint64(3)))
	require.Equal(t, 2, b.Len())
}

func TestBufferMerge(t *testing.T) {
	a := require.New(t)
	_, counter, _ := testRegistry(t)

	first, second := NewBuffer(), NewBuffer()
	first.Push(New(Now(), counter, resource.LocalMachine(), uint64(1)))
	second.Push(New(Now(), counter, resource.LocalMachine(), uint64(2)))
	second.Push(New(Now(), counter, resource.LocalMachine(), uint64(3)))

	first.Merge(second)
	first.Merge(first)
	a.Equal(3, first.Len())
	a.Zero(second.Len())

	var got []uint64
	first.View().ForEach(func(p PointRef) {
		v, _ := p.Value().U64()
		got = append(got, v)
	})
	a.Equal([]uint64{1, 2, 3}, got)

	first.Clear()
	a.Zero(first.Len())
}

func TestAccumulator(t *testing.T) {
	a := require.New(t)
	_, counter, _ := testRegistry(t)

	b := NewBuffer()
	acc := b.Accumulator()
	acc.Reserve(2)
	acc.Push(New(Now(), counter, resource.LocalMachine(), uint64(1)))
	acc.Push(New(Now(), counter, resource.LocalMachine(), uint64(2)))
	a.Equal(2, acc.Len())
	a.Equal(2, b.Len(), "accumulator shares buffer storage")

	acc.Seal()
	p := New(Now(), counter, resource.LocalMachine(), uint64(3))
	requireOwnershipPanic(t, func() { acc.Push(p) })
	// Push on sealed accumulator does not consume the point.
	p.Release()
	a.Equal(2, b.Len())
}

func TestViewEmpty(t *testing.T) {
	var v View
	require.Zero(t, v.Len())
	v.ForEach(func(PointRef) { t.Fatal("unexpected point") })
	for range v.All() {
		t.Fatal("unexpected point")
	}
}
