package atomics

import "sync"

// Counter can be changed atomically and waited on for changes.
type Counter struct {
	m       sync.Mutex
	value   int
	changed chan struct{}
}

// Add value to counter
func (c *Counter) Add(value int) {
	if value == 0 {
		return
	}

	c.m.Lock()
	defer c.m.Unlock()

	c.value += value
	if c.changed != nil {
		close(c.changed)
		c.changed = nil
	}
}

// Value of the counter
func (c *Counter) Value() int {
	c.m.Lock()
	defer c.m.Unlock()

	return c.value
}

// Changed returns the current value and a channel that is closed when the
// Counter is changed, without leaking if the counter is never changed.
func (c *Counter) Changed() (int, <-chan struct{}) {
	c.m.Lock()
	defer c.m.Unlock()

	if c.changed == nil {
		c.changed = make(chan struct{})
	}
	return c.value, c.changed
}
