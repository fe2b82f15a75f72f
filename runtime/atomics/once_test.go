package atomics

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOnceDoTwice(t *testing.T) {
	var once Once
	count := 0
	assert.True(t, once.Do(func() error {
		count++
		return nil
	}))
	assert.False(t, once.Do(func() error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
	assert.True(t, once.Done())
}

func TestOnceRemembersError(t *testing.T) {
	var once Once
	failure := errors.New("init failed")
	once.Do(func() error { return failure })
	once.Do(func() error { return nil })
	assert.Equal(t, failure, once.Err())
}

func TestOnceDoNil(t *testing.T) {
	var once Once
	assert.True(t, once.Do(nil))
	assert.NoError(t, once.Err())
}

func TestOnceDoConcurrent(t *testing.T) {
	var once Once
	mCount := sync.Mutex{}
	count := 0
	first := 0
	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := once.Do(func() error {
				mCount.Lock()
				count++
				mCount.Unlock()
				return nil
			})
			if result {
				mCount.Lock()
				first++
				mCount.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, first)
}
