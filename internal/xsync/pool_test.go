package xsync

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type items struct {
	values []int
}

func (i *items) Clear() { i.values = i.values[:0] }

func TestPool(t *testing.T) {
	var created int
	p := NewPool(func() *items {
		created++
		return &items{}
	})

	v := p.Get()
	require.Empty(t, v.values)
	v.values = append(v.values, 1, 2, 3)
	p.Put(v)
	require.Empty(t, v.values)

	// Pooled values may be collected at any time.
	v = p.Get()
	require.Empty(t, v.values)
	require.GreaterOrEqual(t, created, 1)
}
