package atomics

import "sync/atomic"

// Bool is an atomic boolean, the zero-value is false.
type Bool struct {
	value int32
}

// NewBool returns a Bool with the given initial value.
func NewBool(value bool) Bool {
	b := Bool{}
	b.Set(value)
	return b
}

// Get returns the current value
func (b *Bool) Get() bool {
	return atomic.LoadInt32(&b.value) != 0
}

// Set the value
func (b *Bool) Set(value bool) {
	atomic.StoreInt32(&b.value, toInt32(value))
}

// Swap sets the value and returns the previous value
func (b *Bool) Swap(value bool) bool {
	return atomic.SwapInt32(&b.value, toInt32(value)) != 0
}

func toInt32(value bool) int32 {
	if value {
		return 1
	}
	return 0
}
