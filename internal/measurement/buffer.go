package measurement

import (
	"iter"
	"slices"

	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/resource"
)

// Buffer is an ordered collection of points.
//
// Points are kept in insertion order, without deduplication or sorting.
// Buffer is not safe for concurrent use.
type Buffer struct {
	points    []Point
	iterating bool
}

// NewBuffer creates new empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// NewBufferWithCapacity creates new empty Buffer with given capacity.
func NewBufferWithCapacity(n int) *Buffer {
	return &Buffer{points: make([]Point, 0, n)}
}

// Len returns number of points.
func (b *Buffer) Len() int {
	return len(b.points)
}

// Reserve reserves capacity for at least additional points.
func (b *Buffer) Reserve(additional int) {
	b.points = slices.Grow(b.points, additional)
}

func (b *Buffer) checkMutable(op string) {
	if b.iterating {
		panic(&OwnershipError{Op: op, State: "iterated buffer's"})
	}
}

// Push moves point into the buffer.
//
// p must not be used after Push.
func (b *Buffer) Push(p *Point) {
	b.checkMutable("push")
	b.points = append(b.points, p.take("push"))
}

// ForEach calls fn for each point in insertion order.
//
// Points are borrowed: fn may modify them but must not retain them
// and must not push into the buffer.
func (b *Buffer) ForEach(fn func(p *Point)) {
	b.checkMutable("iterate")
	b.iterating = true
	defer func() { b.iterating = false }()

	for i := range b.points {
		fn(&b.points[i])
	}
}

// Retain removes all points for which keep returns false, keeping order.
//
// If keep panics, points that were not visited yet are kept and the
// buffer stays usable.
func (b *Buffer) Retain(keep func(p *Point) bool) (removed int) {
	b.checkMutable("retain")
	b.iterating = true

	var (
		n int // kept so far
		i int // next to visit
	)
	defer func() {
		// Shift unvisited tail, including the point keep panicked on.
		n += copy(b.points[n:], b.points[i:])
		removed = len(b.points) - n
		clear(b.points[n:])
		b.points = b.points[:n]
		b.iterating = false
	}()

	for ; i < len(b.points); i++ {
		if keep(&b.points[i]) {
			b.points[n] = b.points[i]
			n++
		}
	}
	return removed
}

// Merge moves all points from other to the end of b, leaving other empty.
func (b *Buffer) Merge(other *Buffer) {
	if b == other {
		return
	}
	b.checkMutable("merge")
	other.checkMutable("merge")
	b.points = append(b.points, other.points...)
	other.Clear()
}

// Clear removes all points, keeping allocated capacity.
func (b *Buffer) Clear() {
	b.checkMutable("clear")
	clear(b.points)
	b.points = b.points[:0]
}

// View returns read-only view of the buffer.
func (b *Buffer) View() View {
	return View{b: b}
}

// Accumulator returns push-only view of the buffer.
func (b *Buffer) Accumulator() *Accumulator {
	return &Accumulator{b: b}
}

// Accumulator is a push-only view of a [Buffer].
//
// Sources receive an Accumulator that is sealed when the poll call
// returns: any use after that panics.
type Accumulator struct {
	b      *Buffer
	sealed bool
}

func (a *Accumulator) check(op string) {
	if a.sealed {
		panic(&OwnershipError{Op: op, State: "sealed accumulator's"})
	}
}

// Push moves point into the accumulator.
//
// p must not be used after Push.
func (a *Accumulator) Push(p *Point) {
	a.check("push")
	a.b.Push(p)
}

// Len returns number of accumulated points.
func (a *Accumulator) Len() int {
	a.check("len")
	return a.b.Len()
}

// Reserve reserves capacity for at least additional points.
func (a *Accumulator) Reserve(additional int) {
	a.check("reserve")
	a.b.Reserve(additional)
}

// Seal invalidates accumulator.
func (a *Accumulator) Seal() {
	a.sealed = true
}

// View is a read-only view of a [Buffer].
type View struct {
	b *Buffer
}

// Len returns number of points.
func (v View) Len() int {
	if v.b == nil {
		return 0
	}
	return v.b.Len()
}

// At returns point at given index.
func (v View) At(i int) PointRef {
	return PointRef{p: &v.b.points[i]}
}

// ForEach calls fn for each point in insertion order.
func (v View) ForEach(fn func(p PointRef)) {
	if v.b == nil {
		return
	}
	for i := range v.b.points {
		fn(PointRef{p: &v.b.points[i]})
	}
}

// All iterates over points in insertion order.
func (v View) All() iter.Seq[PointRef] {
	return func(yield func(PointRef) bool) {
		if v.b == nil {
			return
		}
		for i := range v.b.points {
			if !yield(PointRef{p: &v.b.points[i]}) {
				return
			}
		}
	}
}

// PointRef is a read-only reference to a point stored in a buffer.
//
// PointRef must not be retained after the call that supplied it.
type PointRef struct {
	p *Point
}

// Metric returns metric id.
func (r PointRef) Metric() metric.ID { return r.p.Metric() }

// Value returns measured value.
func (r PointRef) Value() metric.Value { return r.p.Value() }

// Timestamp returns measurement timestamp.
func (r PointRef) Timestamp() Timestamp { return r.p.Timestamp() }

// Resource returns measured resource.
func (r PointRef) Resource() resource.Resource { return r.p.Resource() }

// ResourceKind returns resource kind as a display string.
func (r PointRef) ResourceKind() string { return r.p.ResourceKind() }

// ResourceID returns resource id as a display string.
func (r PointRef) ResourceID() string { return r.p.ResourceID() }

// AttrLen returns number of attributes.
func (r PointRef) AttrLen() int { return r.p.AttrLen() }

// Attributes iterates over attributes in insertion order.
func (r PointRef) Attributes() iter.Seq2[string, AttrValue] { return r.p.Attributes() }

// Attr returns value of the first attribute with given key.
func (r PointRef) Attr(key string) (AttrValue, bool) { return r.p.Attr(key) }
