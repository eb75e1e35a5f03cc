package queue

import (
	"context"
	"time"

	"school-journal/internal/config"
	"school-journal/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

type Consumer struct {
	redis  *RedisClient
	client *redis.Client
	cfg    *config.Config
	log    zerolog.Logger
}

type MessageHandler func(ctx context.Context, data []byte) error

func NewConsumer(redisClient *RedisClient, cfg *config.Config) *Consumer {
	return &Consumer{
		redis:  redisClient,
		client: redisClient.Client(),
		cfg:    cfg,
		log:    logger.Component("consumer"),
	}
}

func (c *Consumer) ConsumeImportQueue(ctx context.Context, handler MessageHandler) error {
	return c.consume(ctx, c.cfg.Redis.ImportQueue, handler)
}

// ImportBacklog reports how many import jobs wait and how many were parked.
func (c *Consumer) ImportBacklog(ctx context.Context) (Backlog, error) {
	return c.redis.Backlog(ctx, c.cfg.Redis.ImportQueue)
}

// DeadLetter parks a message on the import dead letter list. Used by
// handlers that fail after the consumer has already acknowledged the pop.
func (c *Consumer) DeadLetter(ctx context.Context, data []byte) error {
	return c.pushDLQ(ctx, c.cfg.Redis.ImportQueue, data)
}

func (c *Consumer) consume(ctx context.Context, queueName string, handler MessageHandler) error {
	log := c.log.With().Str("queue", queueName).Logger()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			result, err := c.client.BRPop(ctx, 5*time.Second, queueName).Result()
			if err != nil {
				if err == redis.Nil {
					continue // Timeout, continue polling
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().Err(err).Msg("Failed to consume message")
				continue
			}

			if len(result) < 2 {
				continue
			}

			message := []byte(result[1])
			if err := handler(ctx, message); err != nil {
				log.Error().Err(err).Msg("Failed to process message")
				if dlqErr := c.pushDLQ(ctx, queueName, message); dlqErr != nil {
					log.Error().Err(dlqErr).Msg("Failed to move message to DLQ")
				}
			}
		}
	}
}

func (c *Consumer) pushDLQ(ctx context.Context, queueName string, message []byte) error {
	return c.client.LPush(ctx, DeadLetterName(queueName, c.cfg.Redis.DLQSuffix), message).Err()
}
