package marketdata

import (
	"context"
	"sync"
	"time"
)

// FirstDataSignal is a set-once latch. Set is non-blocking and safe to call
// from the session goroutine; Wait blocks another goroutine until the latch
// fires, the timeout elapses, or ctx ends. It is never reset.
type FirstDataSignal struct {
	once  sync.Once
	done  chan struct{}
	setAt time.Time
}

// NewFirstDataSignal returns an unset latch
func NewFirstDataSignal() *FirstDataSignal {
	return &FirstDataSignal{done: make(chan struct{})}
}

// Set fires the latch. It reports true only for the call that fired it.
func (s *FirstDataSignal) Set() bool {
	fired := false
	s.once.Do(func() {
		s.setAt = time.Now()
		close(s.done)
		fired = true
	})
	return fired
}

// IsSet reports whether the latch has fired
func (s *FirstDataSignal) IsSet() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Done is closed when the latch fires
func (s *FirstDataSignal) Done() <-chan struct{} {
	return s.done
}

// SetAt is the time the latch fired, zero while unset
func (s *FirstDataSignal) SetAt() time.Time {
	if !s.IsSet() {
		return time.Time{}
	}
	return s.setAt
}

// Wait returns true if the latch fired within timeout, false on timeout or
// when ctx is done first.
func (s *FirstDataSignal) Wait(ctx context.Context, timeout time.Duration) bool {
	if s.IsSet() {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
