// Package series identifies measurement series.
package series

import (
	"cmp"
	"encoding/binary"
	"encoding/hex"
	"math"
	"slices"

	"github.com/zeebo/xxh3"

	"github.com/go-faster/measured/internal/measurement"
)

// Hash identifies a series: metric, resource and attribute set.
type Hash [16]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Attrs returns attributes of point sorted by key.
//
// Attributes with the same key keep their relative order.
func Attrs(p measurement.PointRef) []measurement.Attribute {
	attrs := make([]measurement.Attribute, 0, p.AttrLen())
	for k, v := range p.Attributes() {
		attrs = append(attrs, measurement.Attribute{Key: k, Value: v})
	}
	slices.SortStableFunc(attrs, func(a, b measurement.Attribute) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return attrs
}

// Of computes series hash of point.
//
// Timestamp and value do not affect the hash, attribute order does not
// affect it either.
func Of(p measurement.PointRef) Hash {
	var buf [8]byte
	h := xxh3.New()

	binary.LittleEndian.PutUint32(buf[:4], uint32(p.Metric()))
	_, _ = h.Write(buf[:4])

	res := p.Resource().Encode()
	_, _ = h.Write(res[:])

	for _, a := range Attrs(p) {
		writeString(h, a.Key)
		hashValue(h, a.Value)
	}
	return h.Sum128().Bytes()
}

// Labels computes hash of exposed series: name and label pairs in
// given order.
//
// Callers should sort pairs by name if order is not significant.
func Labels(name string, names, values []string) Hash {
	h := xxh3.New()
	writeString(h, name)
	for i, n := range names {
		writeString(h, n)
		writeString(h, values[i])
	}
	return h.Sum128().Bytes()
}

// writeString writes length-prefixed s, so adjacent strings can't
// collide by moving bytes between them.
func writeString(h *xxh3.Hasher, s string) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
	_, _ = h.Write(buf[:])
	_, _ = h.WriteString(s)
}

func hashValue(h *xxh3.Hasher, v measurement.AttrValue) {
	var buf [8]byte

	_, _ = h.Write([]byte{byte(v.Kind())})
	switch v.Kind() {
	case measurement.AttrStr:
		s, _ := v.Str()
		writeString(h, s)
	case measurement.AttrU64:
		n, _ := v.U64()
		binary.LittleEndian.PutUint64(buf[:], n)
		_, _ = h.Write(buf[:])
	case measurement.AttrF64:
		f, _ := v.F64()
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = h.Write(buf[:])
	case measurement.AttrBool:
		if b, _ := v.Bool(); b {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
	}
}
