package distribution

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingWriter struct {
	mu     sync.Mutex
	events []marketdata.Event
	block  chan struct{}
	err    error
	closed bool
}

func (w *recordingWriter) Name() string { return "recording" }

func (w *recordingWriter) Write(ctx context.Context, ev marketdata.Event) error {
	if w.block != nil {
		<-w.block
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, ev)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

func TestAsyncSink(t *testing.T) {
	t.Run("PreservesOrderAndDrains", func(t *testing.T) {
		w := &recordingWriter{}
		sink := NewAsyncSink(zaptest.NewLogger(t), w, 64)

		symbols := []string{"EURUSD", "GBPUSD", "USDJPY", "AUDUSD"}
		for _, s := range symbols {
			sink.Publish(snapshotEvent(s, "1", "2"))
		}
		require.NoError(t, sink.Close(context.Background()))

		require.Equal(t, len(symbols), w.Len())
		for i, s := range symbols {
			assert.Equal(t, s, w.events[i].Symbol())
		}
		assert.True(t, w.closed)

		sink.Publish(snapshotEvent("NZDUSD", "1", "2"))
		assert.Equal(t, len(symbols), w.Len())
		require.NoError(t, sink.Close(context.Background()))
	})

	t.Run("DropsWhenFull", func(t *testing.T) {
		w := &recordingWriter{block: make(chan struct{})}
		sink := NewAsyncSink(zaptest.NewLogger(t), w, 1)

		done := make(chan struct{})
		go func() {
			for i := 0; i < 10; i++ {
				sink.Publish(snapshotEvent("EURUSD", "1", "2"))
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Publish blocked on a full queue")
		}

		close(w.block)
		require.NoError(t, sink.Close(context.Background()))
		assert.Less(t, w.Len(), 10)
	})

	t.Run("WriteErrorsDoNotStopWorker", func(t *testing.T) {
		w := &recordingWriter{err: errors.New("backend down")}
		sink := NewAsyncSink(zaptest.NewLogger(t), w, 8)
		sink.Publish(snapshotEvent("EURUSD", "1", "2"))
		sink.Publish(snapshotEvent("GBPUSD", "1", "2"))
		require.NoError(t, sink.Close(context.Background()))
		assert.Equal(t, 2, w.Len())
	})
}

type fakeRedis struct {
	published map[string][][]byte
	hashes    map[string]map[string]string
	hsetCalls int
	closed    bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		published: make(map[string][][]byte),
		hashes:    make(map[string]map[string]string),
	}
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.published[channel] = append(f.published[channel], message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.hsetCalls++
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	for i := 0; i+1 < len(values); i += 2 {
		h[values[i].(string)] = values[i+1].(string)
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisPublisher(t *testing.T) {
	client := newFakeRedis()
	pub := NewRedisPublisherWithClient(client, "fixmd", zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, pub.Write(ctx, snapshotEvent("GBPUSD", "1.2500", "1.2502")))
	require.NoError(t, pub.Write(ctx, snapshotEvent("GBPUSD", "1.25", "1.2502")))
	require.NoError(t, pub.Write(ctx, rejectEvent("REQ-1", "0", "unknown symbol")))

	require.Len(t, client.published["fixmd.snapshot"], 2)
	require.Len(t, client.published["fixmd.reject"], 1)

	var decoded marketdata.Event
	require.NoError(t, json.Unmarshal(client.published["fixmd.snapshot"][0], &decoded))
	assert.Equal(t, "GBPUSD", decoded.Symbol())

	assert.Equal(t, 1, client.hsetCalls)
	tob := client.hashes["fixmd:tob:GBPUSD"]
	assert.Equal(t, "1.25", tob["bid"])
	assert.Equal(t, "1.2502", tob["ask"])
	assert.Equal(t, "0.0002", tob["spread"])
	assert.NotEmpty(t, tob["updated_at"])

	require.NoError(t, pub.Close())
	assert.True(t, client.closed)
}

type fakeKafkaWriter struct {
	messages []kafka.Message
	err      error
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error { return nil }

func TestKafkaPublisher(t *testing.T) {
	w := &fakeKafkaWriter{}
	pub := NewKafkaPublisherWithWriter(w, zaptest.NewLogger(t))
	ctx := context.Background()

	require.NoError(t, pub.Write(ctx, snapshotEvent("EURUSD", "1.08", "1.09")))
	require.NoError(t, pub.Write(ctx, rejectEvent("REQ-1", "0", "")))

	require.Len(t, w.messages, 2)
	assert.Equal(t, "EURUSD", string(w.messages[0].Key))
	assert.Equal(t, "reject", string(w.messages[1].Key))
	assert.Equal(t, "kind", w.messages[0].Headers[0].Key)
	assert.Equal(t, "snapshot", string(w.messages[0].Headers[0].Value))

	w.err = errors.New("leader not available")
	err := pub.Write(ctx, snapshotEvent("EURUSD", "1.08", "1.09"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
}

func TestJournal(t *testing.T) {
	db, err := OpenJournalDB("sqlite", filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	journal := NewJournal(db, zaptest.NewLogger(t))
	defer journal.Close()
	ctx := context.Background()

	require.NoError(t, journal.Write(ctx, snapshotEvent("GBPUSD", "1.2500", "1.2502")))
	require.NoError(t, journal.Write(ctx, rejectEvent("REQ-1", "0", "unknown symbol")))
	require.NoError(t, journal.Write(ctx, marketdata.NewEvent(marketdata.EventSession, "")))

	quotes, err := journal.LatestQuotes(ctx, "GBPUSD", 10)
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "bid", quotes[0].Side)
	assert.Equal(t, "1.25", quotes[0].Price.String())
	assert.Equal(t, "ask", quotes[1].Side)

	var rejects []RejectRecord
	require.NoError(t, db.Find(&rejects).Error)
	require.Len(t, rejects, 1)
	assert.Equal(t, "Unknown symbol", rejects[0].Reason)
	assert.Equal(t, "unknown symbol", rejects[0].Text)
}

func TestOpenJournalDBUnsupportedDriver(t *testing.T) {
	_, err := OpenJournalDB("mysql", "")
	require.Error(t, err)
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster(zaptest.NewLogger(t))
	b.Publish(snapshotEvent("EURUSD", "1", "2"))

	ch, cancel := b.Subscribe(1)
	assert.Equal(t, 1, b.Subscribers())

	b.Publish(snapshotEvent("EURUSD", "1.08", "1.09"))
	b.Publish(snapshotEvent("GBPUSD", "1.25", "1.26"))

	require.True(t, eventually(func() bool { return len(ch) == 1 }))
	var ev marketdata.Event
	require.NoError(t, json.Unmarshal(<-ch, &ev))
	assert.Equal(t, "EURUSD", ev.Symbol())

	cancel()
	cancel()
	assert.Equal(t, 0, b.Subscribers())
	_, open := <-ch
	assert.False(t, open)
}
