package distribution

import (
	"context"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/Aidin1998/pincex_fixmd/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/Aidin1998/pincex_fixmd/internal/marketdata/distribution"

var tracer = otel.Tracer(instrumentationName)

// EventWriter delivers events to an external system. Write is only ever
// called from one goroutine.
type EventWriter interface {
	Name() string
	Write(ctx context.Context, ev marketdata.Event) error
	Close() error
}

// DefaultWriteTimeout bounds a single Write
const DefaultWriteTimeout = 5 * time.Second

// AsyncSink queues events for an EventWriter so the session goroutine never
// waits on network or disk. Events are written in publish order; a full queue
// drops the event.
type AsyncSink struct {
	logger       *zap.Logger
	writer       EventWriter
	queue        chan marketdata.Event
	writeTimeout time.Duration
	latency      otelmetric.Float64Histogram

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAsyncSink starts the writer goroutine
func NewAsyncSink(logger *zap.Logger, writer EventWriter, size int) *AsyncSink {
	if size <= 0 {
		size = 1
	}
	s := &AsyncSink{
		logger:       logger.Named("sink").With(zap.String("sink", writer.Name())),
		writer:       writer,
		queue:        make(chan marketdata.Event, size),
		writeTimeout: DefaultWriteTimeout,
		done:         make(chan struct{}),
	}
	latency, err := otel.Meter(instrumentationName).Float64Histogram("fixmd.sink.write.duration", otelmetric.WithUnit("s"))
	if err != nil {
		s.logger.Warn("Sink latency histogram unavailable", zap.Error(err))
	}
	s.latency = latency
	go s.run()
	return s
}

// Publish implements marketdata.Sink
func (s *AsyncSink) Publish(ev marketdata.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- ev:
		metrics.SinkQueueDepth.WithLabelValues(s.writer.Name()).Set(float64(len(s.queue)))
	default:
		metrics.SinkDropped.WithLabelValues(s.writer.Name()).Inc()
		s.logger.Warn("Sink queue full, dropping event", zap.String("kind", string(ev.Kind)))
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for ev := range s.queue {
		s.write(ev)
		metrics.SinkQueueDepth.WithLabelValues(s.writer.Name()).Set(float64(len(s.queue)))
	}
}

func (s *AsyncSink) write(ev marketdata.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	attrs := []attribute.KeyValue{
		attribute.String("sink", s.writer.Name()),
		attribute.String("kind", string(ev.Kind)),
	}
	ctx, span := tracer.Start(ctx, "write "+s.writer.Name())
	span.SetAttributes(append(attrs, attribute.String("event_id", ev.ID.String()))...)
	defer span.End()

	start := time.Now()
	err := s.writer.Write(ctx, ev)
	if s.latency != nil {
		s.latency.Record(ctx, time.Since(start).Seconds(), otelmetric.WithAttributes(attrs...))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.SinkErrors.WithLabelValues(s.writer.Name()).Inc()
		s.logger.Error("Failed to write event",
			zap.String("kind", string(ev.Kind)),
			zap.String("event_id", ev.ID.String()),
			zap.Error(err))
	}
}

// Close stops accepting events, drains the queue and closes the writer. If
// ctx ends before the queue is drained the writer is closed anyway.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-ctx.Done():
		s.logger.Warn("Sink not drained before deadline", zap.Int("pending", len(s.queue)))
	}
	return s.writer.Close()
}
