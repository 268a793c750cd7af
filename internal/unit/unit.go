// Package unit defines units of measurement.
package unit

import (
	"strconv"
	"strings"
)

// Kind is a unit discriminant.
type Kind uint8

const (
	KindUnity Kind = iota
	KindSecond
	KindWatt
	KindJoule
	KindVolt
	KindAmpere
	KindHertz
	KindDegreeCelsius
	KindDegreeFahrenheit
	KindWattHour
	KindCustom
)

// CustomID is an id of a custom unit issued by [Registry].
//
// The id is valid only for the registry (and process) that issued it.
type CustomID uint32

// Unit is a unit of measurement.
//
// Units are compared for equality only.
type Unit struct {
	kind   Kind
	custom CustomID
}

var (
	// Unity is a dimensionless value, suitable for counters.
	Unity = Unit{kind: KindUnity}
	// Second is the standard unit of time.
	Second = Unit{kind: KindSecond}
	// Watt is the standard unit of power.
	Watt = Unit{kind: KindWatt}
	// Joule is the standard unit of energy.
	Joule = Unit{kind: KindJoule}
	// Volt is the unit of electric tension.
	Volt = Unit{kind: KindVolt}
	// Ampere is the unit of electric current.
	Ampere = Unit{kind: KindAmpere}
	// Hertz is the unit of frequency.
	Hertz = Unit{kind: KindHertz}
	// DegreeCelsius is temperature in °C.
	DegreeCelsius = Unit{kind: KindDegreeCelsius}
	// DegreeFahrenheit is temperature in °F.
	DegreeFahrenheit = Unit{kind: KindDegreeFahrenheit}
	// WattHour is energy in W⋅h (3600 J).
	WattHour = Unit{kind: KindWattHour}
)

// Custom returns a custom unit with given id.
func Custom(id CustomID) Unit {
	return Unit{kind: KindCustom, custom: id}
}

// Kind returns unit kind.
func (u Unit) Kind() Kind {
	return u.kind
}

// CustomID returns id of custom unit.
func (u Unit) CustomID() (CustomID, bool) {
	if u.kind != KindCustom {
		return 0, false
	}
	return u.custom, true
}

type unitInfo struct {
	symbol string
	ucum   string
}

var units = [...]unitInfo{
	KindUnity:            {"", "1"},
	KindSecond:           {"s", "s"},
	KindWatt:             {"W", "W"},
	KindJoule:            {"J", "J"},
	KindVolt:             {"V", "V"},
	KindAmpere:           {"A", "A"},
	KindHertz:            {"Hz", "Hz"},
	KindDegreeCelsius:    {"°C", "Cel"},
	KindDegreeFahrenheit: {"°F", "[degF]"},
	KindWattHour:         {"Wh", "W.h"},
}

// String returns unit display symbol.
//
// Custom units are rendered by id, use [Registry.Display] to render them by name.
func (u Unit) String() string {
	if u.kind == KindCustom {
		return "custom#" + strconv.FormatUint(uint64(u.custom), 10)
	}
	if int(u.kind) < len(units) {
		return units[u.kind].symbol
	}
	return "unknown"
}

// UCUM returns unit in UCUM notation, as expected by OpenTelemetry.
func (u Unit) UCUM() string {
	if u.kind == KindCustom || int(u.kind) >= len(units) {
		return ""
	}
	return units[u.kind].ucum
}

// Parse parses predefined unit from display symbol or UCUM notation.
func Parse(s string) (Unit, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "1":
		return Unity, true
	case "degC":
		return DegreeCelsius, true
	case "degF":
		return DegreeFahrenheit, true
	}
	for kind, info := range units {
		if s == info.symbol || s == info.ucum {
			return Unit{kind: Kind(kind)}, true
		}
	}
	return Unit{}, false
}
