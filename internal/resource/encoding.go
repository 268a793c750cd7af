package resource

import (
	"encoding/binary"

	"github.com/go-faster/errors"
)

// EncodedSize is a size of encoded resource.
const EncodedSize = 56

const (
	discriminantOffset = 0
	payloadOffset      = 8
)

// Encoded is a fixed-width resource encoding used at the extension boundary.
//
// The layout is internal to this build: byte 0 is a kind discriminant,
// bytes 8..16 are little-endian payload, the rest is reserved and zeroed.
type Encoded [EncodedSize]byte

// Encode encodes resource.
func (r Resource) Encode() (e Encoded) {
	e[discriminantOffset] = byte(r.kind)
	binary.LittleEndian.PutUint64(e[payloadOffset:], r.index)
	return e
}

// Decode decodes resource from fixed-width encoding.
func Decode(e Encoded) (Resource, error) {
	kind := Kind(e[discriminantOffset])
	if kind == KindInvalid || kind >= kindMax {
		return Resource{}, errors.Errorf("unknown resource kind %d", kind)
	}
	for i, b := range e[1:payloadOffset] {
		if b != 0 {
			return Resource{}, errors.Errorf("reserved byte %d is not zero", i+1)
		}
	}
	r := Resource{
		kind:  kind,
		index: binary.LittleEndian.Uint64(e[payloadOffset:]),
	}
	if !kind.hasIndex() && r.index != 0 {
		return Resource{}, errors.Errorf("unexpected payload for %s", kind)
	}
	for i, b := range e[payloadOffset+8:] {
		if b != 0 {
			return Resource{}, errors.Errorf("reserved byte %d is not zero", payloadOffset+8+i)
		}
	}
	return r, nil
}
