// Package reference counts users of a shared io.Closer and closes it when
// the last one lets go.
package reference

import (
	"io"
	"reflect"
	"sync/atomic"
)

func Make[E io.Closer](value E) *Pointer[E] {
	if reflect.ValueOf(value).IsNil() {
		panic("reference: value is nil")
	}
	return &Pointer[E]{value: value}
}

type Pointer[E io.Closer] struct {
	value E
	count atomic.Int64
}

// Acquire returns the value and counts one more user. It fails once the
// value was closed.
func (pointer *Pointer[E]) Acquire() (E, bool) {
	for {
		n := pointer.count.Load()
		if n < 0 {
			var zero E
			return zero, false
		}
		if pointer.count.CompareAndSwap(n, n+1) {
			return pointer.value, true
		}
	}
}

func (pointer *Pointer[E]) Count() int64 {
	return max(pointer.count.Load(), 0)
}

// Release drops one user and closes the value when it was the last.
func (pointer *Pointer[E]) Release() error {
	for {
		n := pointer.count.Load()
		if n <= 0 {
			return nil
		}
		next := n - 1
		if next == 0 {
			next = -1
		}
		if pointer.count.CompareAndSwap(n, next) {
			if next < 0 {
				return pointer.value.Close()
			}
			return nil
		}
	}
}
