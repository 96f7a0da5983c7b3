package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stock-sync-service/internal/logger"
	"stock-sync-service/internal/sync"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher forwards manager events to a Redis pub/sub channel so dashboards
// can follow stock changes without polling.
type Publisher struct {
	client  publisher
	closer  func() error
	channel string
}

func NewPublisher(ctx context.Context, url, channel string) (*Publisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Publisher{client: rdb, closer: rdb.Close, channel: channel}, nil
}

// Run publishes every event until events is closed or ctx is done. Publish
// failures are logged and the event is dropped.
func (p *Publisher) Run(ctx context.Context, events <-chan sync.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := p.publish(ctx, e); err != nil {
				logger.Log.Warn("Failed to publish event",
					zap.String("event", e.String()),
					zap.Error(err),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, e sync.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, data).Err()
}

func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
