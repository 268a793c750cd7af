// Package configtree provides read-only typed access to a parsed
// configuration tree.
//
// Every getter reports absence instead of failing: a missing key, an
// out-of-range index and a value of another type are all absent, and
// callers are expected to fall back to defaults.
//
// Borrowed string views of a table bound to [boundary.Scope] with
// [Table.Scoped] are invalidated when the scope is closed.
package configtree

import (
	"github.com/go-faster/measured/internal/boundary"
)

// Kind is a kind of configuration node.
type Kind uint8

const (
	KindTable Kind = iota + 1
	KindArray
	KindString
	KindInt
	KindFloat
	KindBool
)

// String implements [fmt.Stringer].
func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "boolean"
	default:
		return "invalid"
	}
}

// Node is a configuration value.
type Node struct {
	kind  Kind
	str   string
	i     int64
	f     float64
	b     bool
	array *Array
	table *Table
	scope *boundary.Scope
}

// Kind returns node kind.
func (n Node) Kind() Kind { return n.kind }

// String returns node as string.
func (n Node) String() (string, bool) { return n.str, n.kind == KindString }

// Int returns node as integer.
func (n Node) Int() (int64, bool) { return n.i, n.kind == KindInt }

// Float returns node as float.
func (n Node) Float() (float64, bool) { return n.f, n.kind == KindFloat }

// Bool returns node as boolean.
func (n Node) Bool() (bool, bool) { return n.b, n.kind == KindBool }

// Array returns node as array.
func (n Node) Array() *Array {
	if n.kind != KindArray {
		return nil
	}
	return n.array.scoped(n.scope)
}

// Table returns node as table.
func (n Node) Table() *Table {
	if n.kind != KindTable {
		return nil
	}
	return n.table.Scoped(n.scope)
}

// Str returns node as borrowed string view, or null.
//
// View of a scoped node is valid until the scope is closed.
func (n Node) Str() boundary.NullableStr {
	if n.kind != KindString {
		return boundary.Null()
	}
	if n.scope != nil {
		return n.scope.View(n.str).Nullable()
	}
	return boundary.StaticStr(n.str).Nullable()
}

// CString returns node as null-terminated string, or nil.
func (n Node) CString() boundary.CString {
	if n.kind != KindString {
		return nil
	}
	return boundary.StaticStr(n.str).CString()
}

// Table is an ordered mapping of keys to nodes.
//
// A nil *Table is a valid empty table.
type Table struct {
	keys   []string
	values map[string]Node
	scope  *boundary.Scope
}

func newTable() *Table {
	return &Table{values: map[string]Node{}}
}

// Scoped returns table sharing nodes with t, whose borrowed string views,
// including views of nested tables and arrays, are bound to sc.
//
// A nil sc returns t as is.
func (t *Table) Scoped(sc *boundary.Scope) *Table {
	if t == nil || sc == nil || t.scope == sc {
		return t
	}
	return &Table{keys: t.keys, values: t.values, scope: sc}
}

func (t *Table) set(key string, n Node) {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = n
}

// Len returns number of keys.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Keys returns keys in definition order.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.keys...)
}

// Get returns node by key.
func (t *Table) Get(key string) (Node, bool) {
	if t == nil {
		return Node{}, false
	}
	n, ok := t.values[key]
	n.scope = t.scope
	return n, ok
}

// String returns string by key.
func (t *Table) String(key string) (string, bool) {
	n, _ := t.Get(key)
	return n.String()
}

// Str returns borrowed string view by key, or null.
func (t *Table) Str(key string) boundary.NullableStr {
	n, _ := t.Get(key)
	return n.Str()
}

// CString returns null-terminated string by key, or nil.
func (t *Table) CString(key string) boundary.CString {
	n, _ := t.Get(key)
	return n.CString()
}

// Int returns integer by key.
func (t *Table) Int(key string) (int64, bool) {
	n, _ := t.Get(key)
	return n.Int()
}

// Float returns float by key.
func (t *Table) Float(key string) (float64, bool) {
	n, _ := t.Get(key)
	return n.Float()
}

// Bool returns boolean by key.
func (t *Table) Bool(key string) (bool, bool) {
	n, _ := t.Get(key)
	return n.Bool()
}

// Array returns array by key, or nil.
func (t *Table) Array(key string) *Array {
	n, _ := t.Get(key)
	return n.Array()
}

// Table returns nested table by key, or nil.
func (t *Table) Table(key string) *Table {
	n, _ := t.Get(key)
	return n.Table()
}

// Array is an ordered sequence of nodes.
//
// A nil *Array is a valid empty array.
type Array struct {
	items []Node
	scope *boundary.Scope
}

func (a *Array) scoped(sc *boundary.Scope) *Array {
	if a == nil || sc == nil || a.scope == sc {
		return a
	}
	return &Array{items: a.items, scope: sc}
}

// Len returns number of elements.
func (a *Array) Len() int {
	if a == nil {
		return 0
	}
	return len(a.items)
}

// At returns node by index.
func (a *Array) At(i int) (Node, bool) {
	if a == nil || i < 0 || i >= len(a.items) {
		return Node{}, false
	}
	n := a.items[i]
	n.scope = a.scope
	return n, true
}

// String returns string by index.
func (a *Array) String(i int) (string, bool) {
	n, _ := a.At(i)
	return n.String()
}

// Str returns borrowed string view by index, or null.
func (a *Array) Str(i int) boundary.NullableStr {
	n, _ := a.At(i)
	return n.Str()
}

// CString returns null-terminated string by index, or nil.
func (a *Array) CString(i int) boundary.CString {
	n, _ := a.At(i)
	return n.CString()
}

// Int returns integer by index.
func (a *Array) Int(i int) (int64, bool) {
	n, _ := a.At(i)
	return n.Int()
}

// Float returns float by index.
func (a *Array) Float(i int) (float64, bool) {
	n, _ := a.At(i)
	return n.Float()
}

// Bool returns boolean by index.
func (a *Array) Bool(i int) (bool, bool) {
	n, _ := a.At(i)
	return n.Bool()
}

// Array returns nested array by index, or nil.
func (a *Array) Array(i int) *Array {
	n, _ := a.At(i)
	return n.Array()
}

// Table returns table by index, or nil.
func (a *Array) Table(i int) *Table {
	n, _ := a.At(i)
	return n.Table()
}

// Strings returns all string elements, skipping other kinds.
func (a *Array) Strings() []string {
	var r []string
	for i := 0; i < a.Len(); i++ {
		if s, ok := a.String(i); ok {
			r = append(r, s)
		}
	}
	return r
}
