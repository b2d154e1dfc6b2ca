package distribution

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aidin1998/pincex_fixmd/internal/marketdata"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient is the subset of *redis.Client the publisher uses
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Close() error
}

// RedisOptions configures NewRedisPublisher
type RedisOptions struct {
	Address       string
	Password      string
	DB            int
	ChannelPrefix string
}

// RedisPublisher publishes every event as JSON on "<prefix>.<kind>" and keeps
// a top-of-book hash per symbol at "<prefix>:tob:<symbol>".
type RedisPublisher struct {
	client RedisClient
	prefix string
	logger *zap.Logger
	book   *TopOfBook
}

// NewRedisPublisher connects to Redis and checks the connection
func NewRedisPublisher(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Address, err)
	}
	return NewRedisPublisherWithClient(client, opts.ChannelPrefix, logger), nil
}

// NewRedisPublisherWithClient wraps an existing client
func NewRedisPublisherWithClient(client RedisClient, prefix string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		logger: logger.Named("redis"),
		book:   NewTopOfBook(),
	}
}

// Name implements EventWriter
func (p *RedisPublisher) Name() string { return "redis" }

// Channel returns the pub/sub channel for an event kind
func (p *RedisPublisher) Channel(kind marketdata.EventKind) string {
	return p.prefix + "." + string(kind)
}

// QuoteKey returns the top-of-book hash key for symbol
func (p *RedisPublisher) QuoteKey(symbol string) string {
	return p.prefix + ":tob:" + symbol
}

// Write implements EventWriter
func (p *RedisPublisher) Write(ctx context.Context, ev marketdata.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(ev.Kind), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}

	if ev.Kind != marketdata.EventSnapshot || ev.Snapshot == nil {
		return nil
	}
	q, changed := p.book.Apply(*ev.Snapshot, ev.Time)
	if !changed {
		return nil
	}
	fields := []interface{}{"updated_at", q.UpdatedAt.Format(time.RFC3339Nano)}
	if q.HasBid {
		fields = append(fields, "bid", q.Bid.String())
	}
	if q.HasAsk {
		fields = append(fields, "ask", q.Ask.String())
	}
	if spread, ok := q.Spread(); ok {
		fields = append(fields, "spread", spread.String())
	}
	if err := p.client.HSet(ctx, p.QuoteKey(q.Symbol), fields...).Err(); err != nil {
		return fmt.Errorf("store top of book %s: %w", q.Symbol, err)
	}
	return nil
}

// Close implements EventWriter
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
