// Package xsync contains typed synchronization helpers.
package xsync

import "sync"

// Clearer is a reusable value.
type Clearer interface {
	// Clear resets value state for re-use.
	Clear()
}

// Pool is a typed wrapper around [sync.Pool].
//
// Values are cleared when returned to the pool.
type Pool[T Clearer] struct {
	pool sync.Pool
}

// NewPool creates new Pool.
func NewPool[T Clearer](newFunc func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return newFunc()
			},
		},
	}
}

// Get returns a value from pool.
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put clears value and returns it to pool.
func (p *Pool[T]) Put(v T) {
	v.Clear()
	p.pool.Put(v)
}
