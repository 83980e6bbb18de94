// Package opt provides a small optional-value type for settings that may or may not have been
// specified, such as a per-assertion timeout override.
package opt

// Maybe holds a value that may be absent. Unlike a pointer, its zero value means "not set" even
// for types whose zero value is meaningful, like a zero timeout.
type Maybe[V any] struct {
	defined bool
	value   V
}

// Some returns a Maybe holding value.
func Some[V any](value V) Maybe[V] {
	return Maybe[V]{defined: true, value: value}
}

// None returns an empty Maybe.
func None[V any]() Maybe[V] { return Maybe[V]{} }

func (m Maybe[V]) IsDefined() bool { return m.defined }

// Value returns the value, or the zero value of V if there is none.
func (m Maybe[V]) Value() V { return m.value }

// OrElse returns the value if there is one, or fallback.
func (m Maybe[V]) OrElse(fallback V) V {
	if m.defined {
		return m.value
	}
	return fallback
}
