// Package actions holds the side-effecting executors used by the agent subgraphs.
//
// Executors never return provider errors. They return a Result that is either a fully
// populated success value or a failure carrying a user-facing reason.
package actions

// Result is the success-or-failure outcome of an executor.
type Result[T any] struct {
	Value  T
	Reason string
	ok     bool
}

// Succeed wraps a complete success value.
func Succeed[T any](v T) Result[T] {
	return Result[T]{Value: v, ok: true}
}

// Fail builds a failure with a user-facing reason. The value is always the zero value.
func Fail[T any](reason string) Result[T] {
	return Result[T]{Reason: reason}
}

// OK reports whether the result is the success variant.
func (r Result[T]) OK() bool {
	return r.ok
}
