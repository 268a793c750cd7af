// Package autometric contains a simple reflect-based metric declaration helper.
//
// Extensions describe their metrics as struct fields and register all of
// them with a single [Init] call:
//
//	var m struct {
//		Power  metric.TypedID[float64] `name:"power" unit:"W" description:"Package power"`
//		Energy metric.TypedID[uint64]  `unit:"J"`
//		Events metric.ID               `type:"u64" unit:"event"`
//	}
//	err := autometric.Init(startup, &m, autometric.InitOptions{Prefix: "rapl."})
//
// The unit tag accepts predefined unit symbols, any other value registers a
// custom unit with that name.
package autometric

import (
	"reflect"

	"github.com/go-faster/errors"

	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/unit"
)

// Creator registers metrics and custom units.
type Creator interface {
	CreateMetric(name string, typ metric.ValueType, u unit.Unit, description string) (metric.ID, error)
	CreateUnit(name string) (unit.Unit, error)
}

var (
	u64IDType = reflect.TypeOf(metric.TypedID[uint64]{})
	f64IDType = reflect.TypeOf(metric.TypedID[float64]{})
	rawIDType = reflect.TypeOf(metric.ID(0))
)

// InitOptions defines options for [Init].
type InitOptions struct {
	// Prefix defines common prefix for all metrics.
	Prefix string
	// Delimiter is used to split words of field names.
	//
	// Defaults to '_'.
	Delimiter rune
	// FieldName returns name for given field.
	FieldName func(prefix string, sf reflect.StructField) string
}

func (opts *InitOptions) setDefaults() {
	if opts.Delimiter == 0 {
		opts.Delimiter = '_'
	}
	if opts.FieldName == nil {
		delim := opts.Delimiter
		opts.FieldName = func(prefix string, sf reflect.StructField) string {
			return fieldName(prefix, delim, sf)
		}
	}
}

func fieldName(prefix string, delim rune, sf reflect.StructField) string {
	name := delimitedCase(sf.Name, delim)
	if tag, ok := sf.Tag.Lookup("name"); ok {
		name = tag
	}
	return prefix + name
}

// Init registers metrics for each exported field of struct s.
func Init(c Creator, s any, opts InitOptions) error {
	opts.setDefaults()

	ptr := reflect.ValueOf(s)
	if !isValidPtrStruct(ptr) {
		return errors.Errorf("a pointer-to-struct expected, got %T", s)
	}

	var (
		struct_    = ptr.Elem()
		structType = struct_.Type()
	)
	for i := 0; i < struct_.NumField(); i++ {
		fieldType := structType.Field(i)
		if fieldType.Anonymous || !fieldType.IsExported() {
			continue
		}
		if n, ok := fieldType.Tag.Lookup("autometric"); ok && n == "-" {
			continue
		}

		field := struct_.Field(i)
		if !field.CanSet() {
			continue
		}

		id, err := makeField(c, fieldType, opts)
		if err != nil {
			return errors.Wrapf(err, "field (%s).%s", structType, fieldType.Name)
		}
		field.Set(reflect.ValueOf(id))
	}

	return nil
}

func makeField(c Creator, sf reflect.StructField, opts InitOptions) (any, error) {
	var (
		name = opts.FieldName(opts.Prefix, sf)
		desc = sf.Tag.Get("description")
	)
	u, ok := unit.Parse(sf.Tag.Get("unit"))
	if !ok {
		custom, err := c.CreateUnit(sf.Tag.Get("unit"))
		if err != nil {
			return nil, errors.Wrap(err, "create unit")
		}
		u = custom
	}

	typ, err := fieldValueType(sf)
	if err != nil {
		return nil, err
	}

	id, err := c.CreateMetric(name, typ, u, desc)
	if err != nil {
		return nil, errors.Wrapf(err, "create metric %q", name)
	}

	switch sf.Type {
	case u64IDType:
		return metric.Typed[uint64](id, typ)
	case f64IDType:
		return metric.Typed[float64](id, typ)
	default:
		return id, nil
	}
}

func fieldValueType(sf reflect.StructField) (metric.ValueType, error) {
	tag, hasTag := sf.Tag.Lookup("type")
	switch ftyp := sf.Type; ftyp {
	case u64IDType, f64IDType:
		typ := metric.U64
		if ftyp == f64IDType {
			typ = metric.F64
		}
		if hasTag && tag != typ.String() {
			return 0, errors.Errorf("type tag %q conflicts with field type %v", tag, ftyp)
		}
		return typ, nil
	case rawIDType:
		switch tag {
		case "u64":
			return metric.U64, nil
		case "f64":
			return metric.F64, nil
		case "":
			return 0, errors.New("type tag is required for untyped metric id")
		default:
			return 0, errors.Errorf("unknown value type %q", tag)
		}
	default:
		return 0, errors.Errorf("unexpected type %v", ftyp)
	}
}

func isValidPtrStruct(ptr reflect.Value) bool {
	return ptr.Kind() == reflect.Pointer &&
		ptr.Elem().Kind() == reflect.Struct
}
