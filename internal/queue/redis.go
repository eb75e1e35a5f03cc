package queue

import (
	"context"
	"fmt"
	"time"

	"school-journal/internal/config"

	"github.com/go-redis/redis/v8"
)

type RedisClient struct {
	client *redis.Client
	cfg    *config.Config
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{
		client: rdb,
		cfg:    cfg,
	}, nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// DeadLetterName is the list failed messages of queue end up in.
func DeadLetterName(queue, suffix string) string {
	return queue + suffix
}

// Backlog is the number of messages waiting on a queue and on its dead
// letter list.
type Backlog struct {
	Pending int64
	Dead    int64
}

// Backlog reads both list lengths in one round trip.
func (r *RedisClient) Backlog(ctx context.Context, queue string) (Backlog, error) {
	pipe := r.client.Pipeline()
	pending := pipe.LLen(ctx, queue)
	dead := pipe.LLen(ctx, DeadLetterName(queue, r.cfg.Redis.DLQSuffix))
	if _, err := pipe.Exec(ctx); err != nil {
		return Backlog{}, fmt.Errorf("failed to read backlog of %s: %w", queue, err)
	}
	return Backlog{Pending: pending.Val(), Dead: dead.Val()}, nil
}
