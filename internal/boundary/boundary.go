// Package boundary implements ownership rules for strings passed between
// the pipeline and its extensions.
//
// Two shapes exist: [Str] is a borrowed view that the receiver never frees,
// and [String] is an owned buffer that must be released exactly once with
// [String.Free]. The distinction is carried by the type: there is no way to
// free a [Str].
package boundary

import (
	"bytes"
	"unicode/utf8"

	"go.uber.org/atomic"
)

// ViolationError is a panic value raised on ownership protocol violation.
type ViolationError struct {
	Op     string
	Reason string
}

// Error implements error.
func (e *ViolationError) Error() string {
	return "boundary: " + e.Op + ": " + e.Reason
}

func violation(op, reason string) {
	panic(&ViolationError{Op: op, Reason: reason})
}

// Scope bounds the lifetime of borrowed views.
//
// Views issued by a Scope become invalid once the scope is closed.
type Scope struct {
	closed atomic.Bool
}

// NewScope creates new open Scope.
func NewScope() *Scope {
	return &Scope{}
}

// View borrows s for the lifetime of the scope.
func (sc *Scope) View(s string) Str {
	if sc.closed.Load() {
		violation("view", "scope is closed")
	}
	return Str{s: s, scope: sc}
}

// Close invalidates all views issued by the scope.
func (sc *Scope) Close() {
	sc.closed.Store(true)
}

// Borrow calls fn with a view of s that is valid only during the call.
func Borrow(s string, fn func(Str)) {
	sc := NewScope()
	defer sc.Close()
	fn(sc.View(s))
}

// Str is a borrowed string view.
//
// The receiver must not free it and must not retain it past the
// call that supplied it.
type Str struct {
	s     string
	scope *Scope
	owner *ownedBuf
}

// StaticStr returns a view that is always valid.
func StaticStr(s string) Str {
	return Str{s: s}
}

func (v Str) check(op string) {
	if v.scope != nil && v.scope.closed.Load() {
		violation(op, "view used after its scope was closed")
	}
	if v.owner != nil && v.owner.freed {
		violation(op, "view used after its string was freed")
	}
}

// Len returns length of the view in bytes.
func (v Str) Len() int {
	v.check("len")
	return len(v.s)
}

// String returns viewed string.
func (v Str) String() string {
	v.check("read")
	return v.s
}

// Nullable converts view to [NullableStr].
func (v Str) Nullable() NullableStr {
	v.check("nullable")
	return NullableStr{v: &v}
}

// CString returns a null-terminated copy of the view.
func (v Str) CString() CString {
	v.check("cstring")
	b := make([]byte, len(v.s)+1)
	copy(b, v.s)
	return b
}

// NullableStr is a borrowed view or absence.
//
// The zero value is absent.
type NullableStr struct {
	v *Str
}

// Null returns absent NullableStr.
func Null() NullableStr {
	return NullableStr{}
}

// IsNull whether string is absent.
func (n NullableStr) IsNull() bool {
	return n.v == nil
}

// Get returns view, if present.
func (n NullableStr) Get() (Str, bool) {
	if n.v == nil {
		return Str{}, false
	}
	return *n.v, true
}

// CString is a null-terminated byte string.
//
// A nil CString represents absence.
type CString []byte

// FromCString borrows a view of null-terminated string.
//
// FromCString panics if c is not null-terminated or is not valid UTF-8.
func FromCString(c CString) Str {
	i := bytes.IndexByte(c, 0)
	if i < 0 {
		violation("from cstring", "missing null terminator")
	}
	if !utf8.Valid(c[:i]) {
		violation("from cstring", "invalid UTF-8")
	}
	return Str{s: string(c[:i])}
}
