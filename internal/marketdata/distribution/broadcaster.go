package distribution

import (
	"encoding/json"
	"sync"

	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/Aidin1998/pincex_fixmd/pkg/metrics"
	"go.uber.org/zap"
)

// Broadcaster hands JSON-encoded events to in-process subscribers with
// non-blocking sends. A slow subscriber misses events instead of stalling
// the publisher.
type Broadcaster struct {
	logger      *zap.Logger
	mu          sync.Mutex
	subscribers map[uint64]chan []byte
	next        uint64
}

// NewBroadcaster creates a broadcaster with no subscribers
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		logger:      logger.Named("broadcaster"),
		subscribers: make(map[uint64]chan []byte),
	}
}

// Subscribe returns a buffered channel and a function that unsubscribes and
// closes it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan []byte, func()) {
	ch := make(chan []byte, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Publish implements marketdata.Sink
func (b *Broadcaster) Publish(ev marketdata.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subscribers) == 0 {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("Failed to encode event", zap.Error(err))
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- data:
		default:
			metrics.SinkDropped.WithLabelValues("broadcast").Inc()
		}
	}
}
