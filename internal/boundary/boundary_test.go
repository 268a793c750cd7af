package boundary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-faster/measured/internal/measurement"
	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/resource"
	"github.com/go-faster/measured/internal/unit"
)

func requireViolation(t *testing.T, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		require.NotNil(t, r, "expected panic")
		_, ok := r.(*ViolationError)
		require.True(t, ok, "expected *ViolationError, got %T: %v", r, r)
	}()
	f()
}

func TestScope(t *testing.T) {
	sc := NewScope()
	v := sc.View("hello")
	require.Equal(t, "hello", v.String())
	require.Equal(t, 5, v.Len())

	sc.Close()
	requireViolation(t, func() { _ = v.String() })
	requireViolation(t, func() { _ = v.Len() })
	requireViolation(t, func() { _ = sc.View("again") })
	requireViolation(t, func() { _ = Copy(v) })
}

func TestBorrow(t *testing.T) {
	var retained Str
	Borrow("key", func(v Str) {
		require.Equal(t, "key", v.String())
		retained = v
	})
	requireViolation(t, func() { _ = retained.String() })
}

func TestNullable(t *testing.T) {
	n := Null()
	require.True(t, n.IsNull())
	_, ok := n.Get()
	require.False(t, ok)
	require.True(t, NullableStr{}.IsNull())

	n = StaticStr("value").Nullable()
	require.False(t, n.IsNull())
	v, ok := n.Get()
	require.True(t, ok)
	require.Equal(t, "value", v.String())
}

func TestCString(t *testing.T) {
	c := StaticStr("abc").CString()
	require.Equal(t, CString("abc\x00"), c)
	require.Equal(t, "abc", FromCString(c).String())
	require.Equal(t, "ab", FromCString(CString("ab\x00cd\x00")).String())

	requireViolation(t, func() { _ = FromCString(CString("abc")) })
	requireViolation(t, func() { _ = FromCString(CString("\xff\x00")) })
}

func TestString(t *testing.T) {
	before := Live()

	s := Copy(StaticStr("owned"))
	require.Equal(t, before+1, Live())
	require.Equal(t, "owned", s.String())
	require.Equal(t, 5, s.Len())
	require.GreaterOrEqual(t, s.Cap(), s.Len())
	require.Equal(t, "owned", s.Ref().String())

	s.Free()
	require.Equal(t, before, Live())

	requireViolation(t, func() { s.Free() })
	requireViolation(t, func() { _ = s.String() })
	requireViolation(t, func() { _ = s.Ref() })
	requireViolation(t, func() { String{}.Free() })
}

func TestStringRefAfterFree(t *testing.T) {
	s := Copy(StaticStr("owned"))
	ref := s.Ref()
	nullable := ref.Nullable()
	require.Equal(t, "owned", ref.String())

	s.Free()
	requireViolation(t, func() { _ = ref.String() })
	requireViolation(t, func() { _ = ref.Len() })
	requireViolation(t, func() { _ = ref.CString() })
	requireViolation(t, func() { _ = Copy(ref) })

	v, ok := nullable.Get()
	require.True(t, ok)
	requireViolation(t, func() { _ = v.String() })
}

func TestStringConversions(t *testing.T) {
	before := Live()

	s := NewString(CString("from c\x00"))
	require.Equal(t, "from c", s.String())
	s.Free()

	s = CopyNonNull(StaticStr("non-null").Nullable())
	require.Equal(t, "non-null", s.String())
	s.Free()

	requireViolation(t, func() { _ = CopyNonNull(Null()) })
	require.Equal(t, before, Live())
}

func TestResourceStrings(t *testing.T) {
	r := metric.NewRegistry()
	id, err := metric.Create[uint64](r, "m", unit.Unity, "")
	require.NoError(t, err)

	b := measurement.NewBuffer()
	b.Push(measurement.New(measurement.Now(), id, resource.CPUPackage(1), uint64(1)))

	before := Live()
	kind := ResourceKind(b.View().At(0))
	rid := ResourceID(b.View().At(0))
	require.Equal(t, "cpu_package", kind.String())
	require.Equal(t, "1", rid.String())
	kind.Free()
	rid.Free()
	require.Equal(t, before, Live())
}
