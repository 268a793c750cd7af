// Package measurement defines measurement points and containers.
package measurement

import (
	"iter"

	"github.com/go-faster/errors"

	"github.com/go-faster/measured/internal/metric"
	"github.com/go-faster/measured/internal/resource"
)

type pointState uint8

const (
	// stateOwned is a point owned by its creator.
	stateOwned pointState = iota
	// stateStored is a point that lives inside a container.
	stateStored
	// stateConsumed is a point moved into a container.
	stateConsumed
	// stateReleased is a point explicitly released by its creator.
	stateReleased
)

func (s pointState) String() string {
	switch s {
	case stateOwned:
		return "owned"
	case stateStored:
		return "stored in a buffer"
	case stateConsumed:
		return "consumed"
	case stateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// OwnershipError is a panic value raised on use of a point that
// was already moved into a container or released.
type OwnershipError struct {
	Op    string
	State string
}

// Error implements error.
func (e *OwnershipError) Error() string {
	return "measurement: " + e.Op + " on " + e.State + " point"
}

// Point is a single measured value.
//
// A point created by [New], [NewU64] or [NewF64] is owned by the caller
// until it is pushed into a [Buffer] or an [Accumulator]. Pushing moves the
// point: any further use of the pushed *Point panics with [*OwnershipError].
// A point that is never pushed should be released with [Point.Release].
type Point struct {
	ts     Timestamp
	metric metric.ID
	res    resource.Resource
	value  metric.Value
	attrs  []Attribute
	state  pointState
}

// New creates new point of statically typed metric.
func New[T metric.Numeric](ts Timestamp, id metric.TypedID[T], res resource.Resource, v T) *Point {
	return &Point{
		ts:     ts,
		metric: id.Untyped(),
		res:    res,
		value:  metric.ValueOf(v),
	}
}

// NewU64 creates new point with u64 value.
//
// Returns [metric.ErrValueType] if metric is not registered as [metric.U64].
func NewU64(reg *metric.Frozen, ts Timestamp, id metric.ID, res resource.Resource, v uint64) (*Point, error) {
	return newChecked(reg, ts, id, res, metric.NewU64(v))
}

// NewF64 creates new point with f64 value.
//
// Returns [metric.ErrValueType] if metric is not registered as [metric.F64].
func NewF64(reg *metric.Frozen, ts Timestamp, id metric.ID, res resource.Resource, v float64) (*Point, error) {
	return newChecked(reg, ts, id, res, metric.NewF64(v))
}

func newChecked(reg *metric.Frozen, ts Timestamp, id metric.ID, res resource.Resource, v metric.Value) (*Point, error) {
	if err := reg.Check(id, v.Type()); err != nil {
		return nil, errors.Wrap(err, "create point")
	}
	return &Point{
		ts:     ts,
		metric: id,
		res:    res,
		value:  v,
	}, nil
}

func (p *Point) checkLive(op string) {
	switch p.state {
	case stateOwned, stateStored:
	default:
		panic(&OwnershipError{Op: op, State: p.state.String()})
	}
}

// take moves point out of p, leaving p consumed.
func (p *Point) take(op string) Point {
	if p.state != stateOwned {
		panic(&OwnershipError{Op: op, State: p.state.String()})
	}
	if p.value.IsZero() {
		panic(&OwnershipError{Op: op, State: "uninitialized"})
	}
	moved := *p
	moved.state = stateStored
	*p = Point{state: stateConsumed}
	return moved
}

// Release releases a point that was not pushed into a container.
func (p *Point) Release() {
	if p.state != stateOwned {
		panic(&OwnershipError{Op: "release", State: p.state.String()})
	}
	*p = Point{state: stateReleased}
}

// Metric returns metric id.
func (p *Point) Metric() metric.ID {
	p.checkLive("read")
	return p.metric
}

// Value returns measured value.
func (p *Point) Value() metric.Value {
	p.checkLive("read")
	return p.value
}

// Timestamp returns measurement timestamp.
func (p *Point) Timestamp() Timestamp {
	p.checkLive("read")
	return p.ts
}

// Resource returns measured resource.
func (p *Point) Resource() resource.Resource {
	p.checkLive("read")
	return p.res
}

// ResourceKind returns resource kind as a display string.
func (p *Point) ResourceKind() string {
	return p.Resource().Kind().String()
}

// ResourceID returns resource id as a display string.
func (p *Point) ResourceID() string {
	return p.Resource().ID()
}

// AttrLen returns number of attributes.
func (p *Point) AttrLen() int {
	p.checkLive("read")
	return len(p.attrs)
}

// Attributes iterates over attributes in insertion order.
//
// Keys are not deduplicated.
func (p *Point) Attributes() iter.Seq2[string, AttrValue] {
	p.checkLive("read")
	return func(yield func(string, AttrValue) bool) {
		for _, a := range p.attrs {
			if !yield(a.Key, a.Value) {
				return
			}
		}
	}
}

// Attr returns value of the first attribute with given key.
func (p *Point) Attr(key string) (AttrValue, bool) {
	p.checkLive("read")
	for _, a := range p.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return AttrValue{}, false
}

// SetAttr appends attribute.
func (p *Point) SetAttr(key string, v AttrValue) *Point {
	p.checkLive("set attribute")
	p.attrs = append(p.attrs, Attribute{Key: key, Value: v})
	return p
}

// AttrU64 appends u64 attribute.
func (p *Point) AttrU64(key string, v uint64) *Point { return p.SetAttr(key, U64Attr(v)) }

// AttrF64 appends f64 attribute.
func (p *Point) AttrF64(key string, v float64) *Point { return p.SetAttr(key, F64Attr(v)) }

// AttrBool appends bool attribute.
func (p *Point) AttrBool(key string, v bool) *Point { return p.SetAttr(key, BoolAttr(v)) }

// AttrStr appends string attribute.
func (p *Point) AttrStr(key, v string) *Point { return p.SetAttr(key, StrAttr(v)) }

// RemoveAttr removes all attributes with given key and returns number of removed attributes.
func (p *Point) RemoveAttr(key string) int {
	p.checkLive("remove attribute")
	n := 0
	kept := p.attrs[:0]
	for _, a := range p.attrs {
		if a.Key == key {
			n++
			continue
		}
		kept = append(kept, a)
	}
	clear(p.attrs[len(kept):])
	p.attrs = kept
	return n
}

// SetValue replaces measured value.
//
// Returns [metric.ErrValueType] if v has a different type.
func (p *Point) SetValue(v metric.Value) error {
	p.checkLive("set value")
	if v.Type() != p.value.Type() {
		return errors.Wrapf(metric.ErrValueType, "point is %s, got %s", p.value.Type(), v.Type())
	}
	p.value = v
	return nil
}

// SetResource replaces measured resource.
func (p *Point) SetResource(res resource.Resource) {
	p.checkLive("set resource")
	p.res = res
}

// SetTimestamp replaces measurement timestamp.
func (p *Point) SetTimestamp(ts Timestamp) {
	p.checkLive("set timestamp")
	p.ts = ts
}
