package broadcast

import "sync"

// Value is a replay-last signal: it holds a current value and every new
// subscriber receives that value first, followed by all later updates.
type Value[T any] struct {
	mu      sync.Mutex
	current T
	stream  *Stream[T]
}

// NewValue creates a signal holding initial
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		stream:  NewStream[T](),
	}
}

// Get returns the current value
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Set stores val and publishes it to all subscribers
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = val
	v.stream.Publish(val)
}

// Update stores the result of fn applied to the current value and publishes
// it only if changed reports true.
func (v *Value[T]) Update(fn func(old T) (val T, changed bool)) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	val, changed := fn(v.current)
	if !changed {
		return false
	}
	v.current = val
	v.stream.Publish(val)
	return true
}

// Subscribe attaches a subscriber that immediately receives the current value
func (v *Value[T]) Subscribe() *Subscription[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stream.mu.Lock()
	defer v.stream.mu.Unlock()
	sub := v.stream.subscribeLocked()
	if !v.stream.closed {
		sub.box.Push(v.current)
	}
	return sub
}

// Close ends all subscriptions. The last value stays readable via Get.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stream.Close()
}
