package atomics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBoolZeroValue(t *testing.T) {
	b := Bool{}
	assert.False(t, b.Get(), "Expected zero-value to be false")
}

func TestNewBool(t *testing.T) {
	b := NewBool(false)
	assert.False(t, b.Get())
	b = NewBool(true)
	assert.True(t, b.Get())
}

func TestBoolSwap(t *testing.T) {
	b := Bool{}
	assert.False(t, b.Swap(false), "Expected zero-value from swap as false")
	assert.False(t, b.Swap(true))
	assert.True(t, b.Get(), "Expected Swap(true) to leave it true")
	assert.True(t, b.Swap(true))
	assert.True(t, b.Swap(false))
	assert.False(t, b.Get(), "Expected Swap(false) to leave it false")
}

func TestBoolInSpinLock(t *testing.T) {
	b := Bool{}
	wg := sync.WaitGroup{}
	wg.Add(2)
	// Relies on the race detector to flag issues
	go func() {
		defer wg.Done()
		for !b.Get() {
			time.Sleep(time.Millisecond)
		}
		b.Set(false)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		b.Set(true)
	}()
	wg.Wait()
	assert.False(t, b.Get())
}
