package measurement

import (
	"math"
	"strconv"
)

// AttrKind is a kind of attribute value.
type AttrKind uint8

const (
	AttrU64 AttrKind = iota + 1
	AttrF64
	AttrBool
	AttrStr
)

// String implements [fmt.Stringer].
func (k AttrKind) String() string {
	switch k {
	case AttrU64:
		return "u64"
	case AttrF64:
		return "f64"
	case AttrBool:
		return "bool"
	case AttrStr:
		return "str"
	default:
		return "AttrKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// AttrValue is an attribute value.
type AttrValue struct {
	kind AttrKind
	num  uint64
	str  string
}

// U64Attr creates u64 attribute value.
func U64Attr(v uint64) AttrValue { return AttrValue{kind: AttrU64, num: v} }

// F64Attr creates f64 attribute value.
func F64Attr(v float64) AttrValue { return AttrValue{kind: AttrF64, num: math.Float64bits(v)} }

// BoolAttr creates bool attribute value.
func BoolAttr(v bool) AttrValue {
	var n uint64
	if v {
		n = 1
	}
	return AttrValue{kind: AttrBool, num: n}
}

// StrAttr creates string attribute value.
func StrAttr(v string) AttrValue { return AttrValue{kind: AttrStr, str: v} }

// Kind returns value kind.
func (v AttrValue) Kind() AttrKind { return v.kind }

// U64 returns value as uint64.
func (v AttrValue) U64() (uint64, bool) { return v.num, v.kind == AttrU64 }

// F64 returns value as float64.
func (v AttrValue) F64() (float64, bool) { return math.Float64frombits(v.num), v.kind == AttrF64 }

// Bool returns value as bool.
func (v AttrValue) Bool() (bool, bool) { return v.num != 0, v.kind == AttrBool }

// Str returns value as string.
func (v AttrValue) Str() (string, bool) { return v.str, v.kind == AttrStr }

// String returns string representation of value.
func (v AttrValue) String() string {
	switch v.kind {
	case AttrU64:
		return strconv.FormatUint(v.num, 10)
	case AttrF64:
		return strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64)
	case AttrBool:
		return strconv.FormatBool(v.num != 0)
	case AttrStr:
		return v.str
	default:
		return ""
	}
}

// Attribute is a key-value pair attached to a point.
type Attribute struct {
	Key   string
	Value AttrValue
}
