package boundary

import (
	"go.uber.org/atomic"

	"github.com/go-faster/measured/internal/measurement"
)

var live atomic.Int64

// Live returns number of owned strings that were not freed yet.
func Live() int64 {
	return live.Load()
}

type ownedBuf struct {
	data  []byte
	freed bool
}

// String is an owned string buffer.
//
// String must be released exactly once with [String.Free]. Using a
// String after Free, or freeing it twice, panics with [*ViolationError].
type String struct {
	buf *ownedBuf
}

func newString(data []byte) String {
	live.Inc()
	return String{buf: &ownedBuf{data: data}}
}

// Copy copies borrowed view into a new owned String.
func Copy(v Str) String {
	v.check("copy")
	data := make([]byte, len(v.s), len(v.s)+1)
	copy(data, v.s)
	return newString(data)
}

// CopyNonNull copies non-null view into a new owned String.
//
// CopyNonNull panics if n is null.
func CopyNonNull(n NullableStr) String {
	v, ok := n.Get()
	if !ok {
		violation("copy", "null string")
	}
	return Copy(v)
}

// NewString copies null-terminated string into a new owned String.
func NewString(c CString) String {
	return Copy(FromCString(c))
}

func (s String) check(op string) *ownedBuf {
	if s.buf == nil {
		violation(op, "uninitialized string")
	}
	if s.buf.freed {
		violation(op, "string is already freed")
	}
	return s.buf
}

// Len returns length of string in bytes.
func (s String) Len() int {
	return len(s.check("len").data)
}

// Cap returns capacity of string buffer.
func (s String) Cap() int {
	return cap(s.check("cap").data)
}

// Ref borrows a view of the owned string.
//
// The view is valid until the string is freed.
func (s String) Ref() Str {
	buf := s.check("ref")
	return Str{s: string(buf.data), owner: buf}
}

// String returns a copy of the string contents.
func (s String) String() string {
	return string(s.check("read").data)
}

// Free releases the string.
func (s String) Free() {
	buf := s.check("free")
	buf.freed = true
	buf.data = nil
	live.Dec()
}

// ResourceKind returns an owned copy of point resource kind.
func ResourceKind(p measurement.PointRef) String {
	return Copy(StaticStr(p.ResourceKind()))
}

// ResourceID returns an owned copy of point resource id.
func ResourceID(p measurement.PointRef) String {
	return Copy(StaticStr(p.ResourceID()))
}
