package atomics

import "sync"

// Once is similar to sync.Once except that once.Do() returns true, if this
// was the first call to once.Do(), and the error returned by f is remembered.
//
// This is used for lifecycle hooks such as Init() and Destroy() where every
// caller wants to know the outcome of the single invocation.
type Once struct {
	m    sync.Mutex
	done Bool
	err  error
}

// Do will call f() and return true, the first time once.Do() is called.
// All following calls to once.Do() will not call f() and return false.
//
// Also once.Do(nil) will not panic, but act similar to once.Do(func() error {
// return nil }).
func (o *Once) Do(f func() error) bool {
	// Quickly check if done
	if o.done.Get() {
		return false
	}

	// Lock so that we don't call f twice
	o.m.Lock()
	defer o.m.Unlock()

	if o.done.Get() {
		return false
	}

	// Set done regardless of panic
	defer o.done.Set(true)

	if f != nil {
		o.err = f()
	}
	return true
}

// Done returns true if once.Do() has been called
func (o *Once) Done() bool {
	return o.done.Get()
}

// Err returns the error returned by f in the first call to once.Do(), this
// blocks if once.Do() is currently running.
func (o *Once) Err() error {
	o.m.Lock()
	defer o.m.Unlock()
	return o.err
}
