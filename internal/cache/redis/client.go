package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bq-insights/backend/pkg/logger"
)

// Client backs the rate-limit counters with redis so limits hold across
// replicas. Dashboard payloads are never cached here; every view is computed
// fresh from warehouse telemetry.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// IncrementWindow bumps the counter for key within the current window and
// returns the new count. The TTL is set only when the key is created, so the
// window expires as a whole.
func (c *Client) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, fmt.Sprintf("ratelimit:%s", key))
	pipe.ExpireNX(ctx, fmt.Sprintf("ratelimit:%s", key), window)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to increment window counter: %w", err)
	}

	return incr.Val(), nil
}
