package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	m := NewKeyedMutex(0)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), "a", "b")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.size())
}

func TestKeyedMutexDisjointKeysDoNotBlock(t *testing.T) {
	m := NewKeyedMutex(0)

	releaseA, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	releaseB, err := m.Acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()
}

func TestKeyedMutexTimeout(t *testing.T) {
	m := NewKeyedMutex(20 * time.Millisecond)

	release, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)

	// "0" sorts first and is taken before the wait on "a" times out.
	_, err = m.Acquire(context.Background(), "a", "0")
	require.ErrorIs(t, err, ErrTimeout)

	release()
	release()

	again, err := m.Acquire(context.Background(), "a", "0")
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, m.size())
}

func TestKeyedMutexCancelledContext(t *testing.T) {
	m := NewKeyedMutex(0)
	release, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Acquire(ctx, "a")
	require.ErrorIs(t, err, context.Canceled)
}
