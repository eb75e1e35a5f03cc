package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"school-journal/internal/config"
	"school-journal/internal/model"

	"github.com/go-redis/redis/v8"
)

type Producer struct {
	client *redis.Client
	cfg    *config.Config
}

func NewProducer(redisClient *RedisClient, cfg *config.Config) *Producer {
	return &Producer{
		client: redisClient.Client(),
		cfg:    cfg,
	}
}

func (p *Producer) EnqueueImportJob(ctx context.Context, job model.ImportJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	if err := p.client.LPush(ctx, p.cfg.Redis.ImportQueue, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue import job %s: %w", job.ID, err)
	}
	return nil
}
