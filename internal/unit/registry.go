package unit

// CustomUnit describes a registered custom unit.
type CustomUnit struct {
	ID   CustomID
	Name string
}

// Registry issues custom unit ids.
//
// Registry is not safe for concurrent registration, but concurrent
// lookups are safe once registration is done.
type Registry struct {
	byName map[string]CustomID
	units  []CustomUnit
}

// NewRegistry creates new Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: map[string]CustomID{},
	}
}

// Create registers custom unit with given name.
//
// Registering the same name twice returns the same id.
func (r *Registry) Create(name string) Unit {
	if id, ok := r.byName[name]; ok {
		return Custom(id)
	}
	id := CustomID(len(r.units))
	r.units = append(r.units, CustomUnit{ID: id, Name: name})
	r.byName[name] = id
	return Custom(id)
}

// Lookup returns custom unit by name.
func (r *Registry) Lookup(name string) (Unit, bool) {
	id, ok := r.byName[name]
	if !ok {
		return Unit{}, false
	}
	return Custom(id), true
}

// Name returns name of custom unit.
func (r *Registry) Name(id CustomID) (string, bool) {
	if int(id) >= len(r.units) {
		return "", false
	}
	return r.units[id].Name, true
}

// Display returns display string of unit, resolving custom unit names.
func (r *Registry) Display(u Unit) string {
	if id, ok := u.CustomID(); ok {
		if name, ok := r.Name(id); ok {
			return name
		}
	}
	return u.String()
}

// Len returns number of registered units.
func (r *Registry) Len() int {
	return len(r.units)
}
