package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options selects the Redis instance holding the embedding job queue and the org alert channels.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client is the shared connection for the embedding queue and alert pub/sub.
type Client struct {
	*redis.Client
	addr   string
	logger *zap.Logger
}

// NewClient connects and pings. Both binaries fail fast on error since neither
// the embedding queue nor cross-instance alerts work without Redis.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	logger.Info("redis ready for embedding queue and alerts", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &Client{Client: rdb, addr: opts.Addr, logger: logger}, nil
}

// Close releases the connection pool.
func (c *Client) Close() error {
	err := c.Client.Close()
	if err != nil {
		c.logger.Warn("redis close", zap.String("addr", c.addr), zap.Error(err))
	}
	return err
}
