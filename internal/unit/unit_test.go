package unit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnit(t *testing.T) {
	for _, tt := range []struct {
		unit   Unit
		symbol string
		ucum   string
	}{
		{Unity, "", "1"},
		{Second, "s", "s"},
		{Watt, "W", "W"},
		{Joule, "J", "J"},
		{DegreeCelsius, "°C", "Cel"},
		{DegreeFahrenheit, "°F", "[degF]"},
		{WattHour, "Wh", "W.h"},
		{Custom(3), "custom#3", ""},
	} {
		t.Run(tt.symbol, func(t *testing.T) {
			require.Equal(t, tt.symbol, tt.unit.String())
			require.Equal(t, tt.ucum, tt.unit.UCUM())

			if tt.unit.Kind() == KindCustom {
				return
			}
			parsed, ok := Parse(tt.symbol)
			require.True(t, ok)
			require.Equal(t, tt.unit, parsed)

			parsed, ok = Parse(tt.ucum)
			require.True(t, ok)
			require.Equal(t, tt.unit, parsed)
		})
	}

	_, ok := Parse("furlong")
	require.False(t, ok)
}

func TestUnitEquality(t *testing.T) {
	require.Equal(t, Watt, Unit{kind: KindWatt})
	require.NotEqual(t, Watt, Joule)
	require.NotEqual(t, Custom(1), Custom(2))
	require.Equal(t, Custom(1), Custom(1))

	id, ok := Custom(7).CustomID()
	require.True(t, ok)
	require.Equal(t, CustomID(7), id)

	_, ok = Watt.CustomID()
	require.False(t, ok)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	bytes := r.Create("byte")
	require.Equal(t, bytes, r.Create("byte"), "registration must be idempotent")

	packets := r.Create("packet")
	require.NotEqual(t, bytes, packets)
	require.Equal(t, 2, r.Len())

	id, ok := packets.CustomID()
	require.True(t, ok)
	name, ok := r.Name(id)
	require.True(t, ok)
	require.Equal(t, "packet", name)

	got, ok := r.Lookup("byte")
	require.True(t, ok)
	require.Equal(t, bytes, got)
	_, ok = r.Lookup("bit")
	require.False(t, ok)

	require.Equal(t, "byte", r.Display(bytes))
	require.Equal(t, "W", r.Display(Watt))
	require.Equal(t, "custom#42", r.Display(Custom(42)))
}
