package metric

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrConflict reports that metric name is already registered with different definition.
	ErrConflict = errors.New("metric conflict")
	// ErrInvalidName reports invalid metric name.
	ErrInvalidName = errors.New("invalid metric name")
	// ErrFrozen reports registration after startup.
	ErrFrozen = errors.New("registry is frozen")
	// ErrValueType reports mismatch between value type and registered metric type.
	ErrValueType = errors.New("value type mismatch")
)

// ConflictError is returned when metric name is reused with different type or unit.
type ConflictError struct {
	Existing     Metric
	ExistingUnit string
	ValueType    ValueType
	Unit         string
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("metric %q is already registered as %s [%s], requested %s [%s]",
		e.Existing.Name,
		e.Existing.ValueType, e.ExistingUnit,
		e.ValueType, e.Unit,
	)
}

// Is reports whether target is [ErrConflict].
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
