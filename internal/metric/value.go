package metric

import (
	"math"
	"strconv"
)

// ValueType is a type of measured values.
type ValueType uint8

const (
	// U64 is an unsigned 64-bit integer.
	U64 ValueType = iota + 1
	// F64 is a 64-bit floating point number.
	F64
)

// String implements [fmt.Stringer].
func (t ValueType) String() string {
	switch t {
	case U64:
		return "u64"
	case F64:
		return "f64"
	default:
		return "ValueType(" + strconv.Itoa(int(t)) + ")"
	}
}

// Valid whether t is a known value type.
func (t ValueType) Valid() bool {
	return t == U64 || t == F64
}

// Numeric is a Go type of measured values.
type Numeric interface {
	uint64 | float64
}

// TypeOf returns ValueType of T.
func TypeOf[T Numeric]() ValueType {
	var zero T
	switch any(zero).(type) {
	case uint64:
		return U64
	default:
		return F64
	}
}

// Value is a measured value.
type Value struct {
	typ  ValueType
	bits uint64
}

// NewU64 creates new u64 Value.
func NewU64(v uint64) Value {
	return Value{typ: U64, bits: v}
}

// NewF64 creates new f64 Value.
func NewF64(v float64) Value {
	return Value{typ: F64, bits: math.Float64bits(v)}
}

// ValueOf creates Value from numeric value.
func ValueOf[T Numeric](v T) Value {
	switch v := any(v).(type) {
	case uint64:
		return NewU64(v)
	case float64:
		return NewF64(v)
	default:
		panic("unreachable")
	}
}

// Type returns value type.
func (v Value) Type() ValueType {
	return v.typ
}

// IsZero whether v is zero Value (has no type).
func (v Value) IsZero() bool {
	return v.typ == 0
}

// U64 returns value as uint64, if value type is [U64].
func (v Value) U64() (uint64, bool) {
	return v.bits, v.typ == U64
}

// F64 returns value as float64, if value type is [F64].
func (v Value) F64() (float64, bool) {
	return math.Float64frombits(v.bits), v.typ == F64
}

// Float returns value as float64, converting integers.
func (v Value) Float() float64 {
	if v.typ == U64 {
		return float64(v.bits)
	}
	return math.Float64frombits(v.bits)
}

// String implements [fmt.Stringer].
func (v Value) String() string {
	switch v.typ {
	case U64:
		return strconv.FormatUint(v.bits, 10)
	case F64:
		return strconv.FormatFloat(math.Float64frombits(v.bits), 'g', -1, 64)
	default:
		return "<empty>"
	}
}
