package marketdata

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstDataSignal(t *testing.T) {
	t.Run("SetOnce", func(t *testing.T) {
		s := NewFirstDataSignal()
		assert.False(t, s.IsSet())
		assert.True(t, s.SetAt().IsZero())

		assert.True(t, s.Set())
		at := s.SetAt()
		assert.False(t, at.IsZero())

		for i := 0; i < 3; i++ {
			assert.False(t, s.Set())
		}
		assert.True(t, s.IsSet())
		assert.Equal(t, at, s.SetAt())
	})

	t.Run("WaiterUnblocks", func(t *testing.T) {
		s := NewFirstDataSignal()
		result := make(chan bool, 1)
		go func() {
			result <- s.Wait(context.Background(), 5*time.Second)
		}()

		time.Sleep(20 * time.Millisecond)
		s.Set()

		select {
		case ok := <-result:
			assert.True(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter did not unblock")
		}
	})

	t.Run("TimesOut", func(t *testing.T) {
		s := NewFirstDataSignal()
		start := time.Now()
		assert.False(t, s.Wait(context.Background(), 30*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		s := NewFirstDataSignal()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.False(t, s.Wait(ctx, time.Minute))
	})

	t.Run("AlreadySet", func(t *testing.T) {
		s := NewFirstDataSignal()
		s.Set()
		assert.True(t, s.Wait(context.Background(), 0))
	})

	t.Run("ConcurrentSet", func(t *testing.T) {
		s := NewFirstDataSignal()
		var wg sync.WaitGroup
		var mu sync.Mutex
		fired := 0
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.Set() {
					mu.Lock()
					fired++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, fired)
	})
}
