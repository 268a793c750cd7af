package metric

import (
	"iter"
	"unicode/utf8"

	"github.com/go-faster/errors"

	"github.com/go-faster/measured/internal/unit"
)

// Registry registers metrics during startup.
//
// Registry is not safe for concurrent use. Call [Registry.Freeze] once
// startup is done to get an immutable [Frozen] registry.
type Registry struct {
	metrics []Metric
	byName  map[string]ID
	units   *unit.Registry
	frozen  bool
}

// NewRegistry creates new Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: map[string]ID{},
		units:  unit.NewRegistry(),
	}
}

// CreateUnit registers custom unit with given name.
//
// Registering the same name twice returns the same unit.
func (r *Registry) CreateUnit(name string) (unit.Unit, error) {
	if r.frozen {
		return unit.Unit{}, ErrFrozen
	}
	if name == "" || !utf8.ValidString(name) {
		return unit.Unit{}, errors.Errorf("invalid unit name %q", name)
	}
	return r.units.Create(name), nil
}

// Create registers new metric.
//
// Registering the same name with the same value type and unit returns
// existing ID. If name is registered with different value type or unit,
// Create returns [*ConflictError].
func (r *Registry) Create(name string, typ ValueType, u unit.Unit, description string) (ID, error) {
	if r.frozen {
		return 0, ErrFrozen
	}
	if name == "" || !utf8.ValidString(name) {
		return 0, errors.Wrapf(ErrInvalidName, "%q", name)
	}
	if !utf8.ValidString(description) {
		return 0, errors.Errorf("metric %q: description is not valid UTF-8", name)
	}
	if !typ.Valid() {
		return 0, errors.Errorf("metric %q: invalid value type %s", name, typ)
	}
	if cid, ok := u.CustomID(); ok {
		if _, ok := r.units.Name(cid); !ok {
			return 0, errors.Errorf("metric %q: unknown custom unit %d", name, cid)
		}
	}

	if id, ok := r.byName[name]; ok {
		existing := r.metrics[id]
		if existing.ValueType != typ || existing.Unit != u {
			return 0, &ConflictError{
				Existing:     existing,
				ExistingUnit: r.units.Display(existing.Unit),
				ValueType:    typ,
				Unit:         r.units.Display(u),
			}
		}
		return id, nil
	}

	id := ID(len(r.metrics))
	r.metrics = append(r.metrics, Metric{
		ID:          id,
		Name:        name,
		Description: description,
		ValueType:   typ,
		Unit:        u,
	})
	r.byName[name] = id
	return id, nil
}

// Create registers new metric with value type defined by T.
func Create[T Numeric](r *Registry, name string, u unit.Unit, description string) (TypedID[T], error) {
	id, err := r.Create(name, TypeOf[T](), u, description)
	if err != nil {
		return TypedID[T]{}, err
	}
	return TypedID[T]{id: id}, nil
}

// Len returns number of registered metrics.
func (r *Registry) Len() int {
	return len(r.metrics)
}

// Freeze finishes registration and returns immutable view of registry.
//
// Any further registration fails with [ErrFrozen].
func (r *Registry) Freeze() *Frozen {
	r.frozen = true
	return &Frozen{
		metrics: r.metrics,
		byName:  r.byName,
		units:   r.units,
	}
}

// Frozen is an immutable metric registry.
//
// Frozen is safe for concurrent use.
type Frozen struct {
	metrics []Metric
	byName  map[string]ID
	units   *unit.Registry
}

// UnitName returns display name of unit, resolving custom units.
func (f *Frozen) UnitName(u unit.Unit) string {
	return f.units.Display(u)
}

// Get returns metric by id.
func (f *Frozen) Get(id ID) (Metric, bool) {
	if int(id) >= len(f.metrics) {
		return Metric{}, false
	}
	return f.metrics[id], true
}

// Name returns name of metric.
//
// Name panics if id was not issued by this registry.
func (f *Frozen) Name(id ID) string {
	m, ok := f.Get(id)
	if !ok {
		panic(errors.Errorf("unknown %s", id))
	}
	return m.Name
}

// ByName finds metric by name.
func (f *Frozen) ByName(name string) (Metric, bool) {
	id, ok := f.byName[name]
	if !ok {
		return Metric{}, false
	}
	return f.metrics[id], true
}

// Len returns number of registered metrics.
func (f *Frozen) Len() int {
	return len(f.metrics)
}

// All iterates over all metrics in registration order.
func (f *Frozen) All() iter.Seq[Metric] {
	return func(yield func(Metric) bool) {
		for _, m := range f.metrics {
			if !yield(m) {
				return
			}
		}
	}
}

// Check checks that value type matches registered metric type.
func (f *Frozen) Check(id ID, typ ValueType) error {
	m, ok := f.Get(id)
	if !ok {
		return errors.Errorf("unknown %s", id)
	}
	if m.ValueType != typ {
		return errors.Wrapf(ErrValueType, "metric %q is %s, got %s", m.Name, m.ValueType, typ)
	}
	return nil
}
