package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Scheduler delays a job until at. Used for retries with backoff.
type Scheduler interface {
	EnqueueAt(ctx context.Context, job Job, at time.Time) error
}

type RedisProducer struct {
	Redis *redis.Client
}

func NewProducer(redis *redis.Client) Producer {
	return &RedisProducer{Redis: redis}
}

func (p *RedisProducer) Enqueue(ctx context.Context, job Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return p.Redis.ZAdd(ctx, PriorityQueueKey, redis.Z{
		Score:  Score(job),
		Member: jobBytes,
	}).Err()
}

// Score orders by priority first, then by expiry.
func Score(job Job) float64 {
	return float64(job.Priority)*1e10 + float64(job.ExpireAt)
}

// EnqueueAt parks job in the delayed set until at; PromoteDue moves it to
// the priority queue once due.
func (p *RedisProducer) EnqueueAt(ctx context.Context, job Job, at time.Time) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}

	return p.Redis.ZAdd(ctx, DelayedKey, redis.Z{
		Score:  float64(at.Unix()),
		Member: jobBytes,
	}).Err()
}
