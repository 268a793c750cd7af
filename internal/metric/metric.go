// Package metric defines measured values and the metric registry.
package metric

import (
	"strconv"

	"github.com/go-faster/errors"

	"github.com/go-faster/measured/internal/unit"
)

// ID is a metric handle.
//
// IDs are issued by [Registry] and never reused within a process run.
type ID uint32

// String implements [fmt.Stringer].
func (id ID) String() string {
	return "metric#" + strconv.FormatUint(uint64(id), 10)
}

// TypedID is an ID that carries its value type statically.
type TypedID[T Numeric] struct {
	id ID
}

// Untyped returns underlying ID.
func (t TypedID[T]) Untyped() ID {
	return t.id
}

// Metric describes a registered metric.
type Metric struct {
	ID          ID
	Name        string
	Description string
	ValueType   ValueType
	Unit        unit.Unit
}

// Typed converts ID registered with given value type to TypedID.
//
// Returns [ErrValueType] if typ does not match T.
func Typed[T Numeric](id ID, typ ValueType) (TypedID[T], error) {
	if want := TypeOf[T](); typ != want {
		return TypedID[T]{}, errors.Wrapf(ErrValueType, "%s is %s, want %s", id, typ, want)
	}
	return TypedID[T]{id: id}, nil
}
