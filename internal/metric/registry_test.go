package metric

import (
	"math"
	"slices"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-faster/measured/internal/unit"
)

func TestRegistryCreate(t *testing.T) {
	a := require.New(t)
	r := NewRegistry()

	power, err := r.Create("cpu.power", F64, unit.Watt, "CPU package power")
	a.NoError(err)
	energy, err := r.Create("cpu.energy", U64, unit.Joule, "")
	a.NoError(err)
	a.NotEqual(power, energy)

	again, err := r.Create("cpu.power", F64, unit.Watt, "description may differ")
	a.NoError(err)
	a.Equal(power, again, "identical registration must be idempotent")
	a.Equal(2, r.Len())

	f := r.Freeze()
	a.Equal("cpu.power", f.Name(power))
	a.Equal("cpu.energy", f.Name(energy))

	m, ok := f.Get(power)
	a.True(ok)
	a.Equal(Metric{
		ID:          power,
		Name:        "cpu.power",
		Description: "CPU package power",
		ValueType:   F64,
		Unit:        unit.Watt,
	}, m)

	m, ok = f.ByName("cpu.energy")
	a.True(ok)
	a.Equal(energy, m.ID)
	_, ok = f.ByName("gpu.power")
	a.False(ok)
}

func TestRegistryConflict(t *testing.T) {
	a := require.New(t)
	r := NewRegistry()

	id, err := r.Create("x", U64, unit.Watt, "")
	a.NoError(err)

	_, err = r.Create("x", F64, unit.Watt, "")
	a.ErrorIs(err, ErrConflict)
	var ce *ConflictError
	a.True(errors.As(err, &ce))
	a.Equal(U64, ce.Existing.ValueType)

	_, err = r.Create("x", U64, unit.Joule, "")
	a.ErrorIs(err, ErrConflict)

	f := r.Freeze()
	m, ok := f.Get(id)
	a.True(ok)
	a.Equal(U64, m.ValueType, "conflict must not change existing metric")
	a.Equal(unit.Watt, m.Unit)
	a.Equal(1, f.Len())
}

func TestRegistryInvalid(t *testing.T) {
	r := NewRegistry()

	_, err := r.Create("", U64, unit.Unity, "")
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = r.Create("\xff", U64, unit.Unity, "")
	require.ErrorIs(t, err, ErrInvalidName)
	_, err = r.Create("ok", U64, unit.Unity, "\xff")
	require.Error(t, err)
	_, err = r.Create("ok", ValueType(0), unit.Unity, "")
	require.Error(t, err)
	require.Zero(t, r.Len())
}

func TestRegistryFrozen(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create("a", U64, unit.Unity, "")
	require.NoError(t, err)

	f := r.Freeze()
	_, err = r.Create("b", U64, unit.Unity, "")
	require.ErrorIs(t, err, ErrFrozen)
	require.Equal(t, 1, f.Len())
}

func TestRegistryTyped(t *testing.T) {
	a := require.New(t)
	r := NewRegistry()

	counter, err := Create[uint64](r, "packets", unit.Unity, "")
	a.NoError(err)
	temp, err := Create[float64](r, "temperature", unit.DegreeCelsius, "")
	a.NoError(err)

	_, err = Create[float64](r, "packets", unit.Unity, "")
	a.ErrorIs(err, ErrConflict)

	f := r.Freeze()
	a.NoError(f.Check(counter.Untyped(), U64))
	a.NoError(f.Check(temp.Untyped(), F64))
	a.ErrorIs(f.Check(counter.Untyped(), F64), ErrValueType)
	a.Error(f.Check(ID(100), F64))

	names := slices.Collect(func(yield func(string) bool) {
		for m := range f.All() {
			if !yield(m.Name) {
				return
			}
		}
	})
	a.Equal([]string{"packets", "temperature"}, names)
}

func TestFrozenNameUnknown(t *testing.T) {
	f := NewRegistry().Freeze()
	require.Panics(t, func() {
		_ = f.Name(ID(1))
	})
}

func TestValue(t *testing.T) {
	a := require.New(t)

	v := NewU64(42)
	a.Equal(U64, v.Type())
	u, ok := v.U64()
	a.True(ok)
	a.Equal(uint64(42), u)
	_, ok = v.F64()
	a.False(ok)
	a.Equal(42.0, v.Float())
	a.Equal("42", v.String())

	v = NewF64(math.Pi)
	a.Equal(F64, v.Type())
	f, ok := v.F64()
	a.True(ok)
	a.Equal(math.Pi, f)
	_, ok = v.U64()
	a.False(ok)

	a.Equal(NewU64(7), ValueOf[uint64](7))
	a.Equal(NewF64(0.5), ValueOf(0.5))
	a.Equal(U64, TypeOf[uint64]())
	a.Equal(F64, TypeOf[float64]())

	a.True(Value{}.IsZero())
	a.Equal("<empty>", Value{}.String())
	a.Equal("u64", U64.String())
	a.Equal("f64", F64.String())
}

func TestTyped(t *testing.T) {
	id, err := Typed[uint64](ID(1), U64)
	require.NoError(t, err)
	require.Equal(t, ID(1), id.Untyped())

	_, err = Typed[float64](ID(1), U64)
	require.ErrorIs(t, err, ErrValueType)
}

func TestRegistryUnits(t *testing.T) {
	a := require.New(t)
	r := NewRegistry()

	bytes, err := r.CreateUnit("byte")
	a.NoError(err)
	again, err := r.CreateUnit("byte")
	a.NoError(err)
	a.Equal(bytes, again)

	_, err = r.CreateUnit("")
	a.Error(err)

	_, err = r.Create("mem.used", U64, bytes, "")
	a.NoError(err)
	_, err = r.Create("mem.free", U64, unit.Custom(100), "")
	a.Error(err, "unknown custom unit")

	_, err = r.Create("mem.used", U64, unit.Joule, "")
	a.EqualError(err, `metric "mem.used" is already registered as u64 [byte], requested u64 [J]`)

	f := r.Freeze()
	a.Equal("byte", f.UnitName(bytes))
	a.Equal("W", f.UnitName(unit.Watt))

	_, err = r.CreateUnit("packet")
	a.ErrorIs(err, ErrFrozen)
}
