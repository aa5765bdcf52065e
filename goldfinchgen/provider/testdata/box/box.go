// Package box holds generic containers used as field types by the provider
// test subjects.
package box

type Inner[T any] struct{ Value T }

type Wrapper[T any] struct{ Value T }

type List[T any] []T

type Pair[K comparable, V any] struct {
	Key   K
	Value V
}
