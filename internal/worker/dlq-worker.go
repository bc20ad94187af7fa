package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/entity"
	"github.com/xenn00/conference-system/internal/queue"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const (
	dlqPopTimeout = 10 * time.Second
	dlqRetention  = 7 * 24 * time.Hour
)

func (wp *WorkerPool) dlqCollection() *mongo.Collection {
	return wp.Mongo.Collection(wp.DLQConfig.CollectionName)
}

// StartDLQWorker drains the redis DLQ list into the Mongo archive.
func (wp *WorkerPool) StartDLQWorker(ctx context.Context) {
	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()

		log.Info().Msg("DLQ worker started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("DLQ worker stopping")
				return
			default:
			}

			result, err := wp.Redis.BLPop(ctx, dlqPopTimeout, queue.DLQKey).Result()
			if errors.Is(err, redis.Nil) {
				continue
			} else if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Msg("DLQWorker pop failed")
					wp.sleep(ctx)
				}
				continue
			}

			if err := wp.archive(ctx, result[1]); err != nil {
				log.Error().Err(err).Msg("Failed to persist DLQ job to MongoDB")
				// put it back so nothing is lost
				wp.Redis.RPush(context.WithoutCancel(ctx), queue.DLQKey, result[1])
				wp.sleep(ctx)
			}
		}
	}()
}

func (wp *WorkerPool) archive(ctx context.Context, payload string) error {
	var job queue.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		log.Warn().Err(err).Msg("DLQWorker invalid job payload, dropping")
		return nil
	}

	log.Error().
		Str("job_id", job.ID).
		Str("type", job.Type).
		Str("error", job.ErrorMsg).
		Msg("DLQ Job detected")

	now := wp.now().UTC()
	doc := entity.DLQJob{
		JobID:     job.ID,
		Type:      job.Type,
		Job:       json.RawMessage(payload),
		ErrorMsg:  job.ErrorMsg,
		Status:    entity.DLQStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpireAt:  now.Add(dlqRetention),
	}
	if _, err := wp.dlqCollection().InsertOne(ctx, doc); err != nil {
		return err
	}

	log.Info().Str("job_id", job.ID).Msg("DLQ job persisted to MongoDB")
	return nil
}

// GetDLQStats counts archived jobs per status.
func (wp *WorkerPool) GetDLQStats(ctx context.Context) (map[string]int64, error) {
	if wp.Mongo == nil {
		return map[string]int64{}, nil
	}

	pipeline := bson.A{
		bson.M{"$group": bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}},
	}

	cursor, err := wp.dlqCollection().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	stats := make(map[string]int64, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}
