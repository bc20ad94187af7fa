package worker

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/entity"
	"github.com/xenn00/conference-system/internal/queue"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// StartDLQRetryConsumer periodically replays archived jobs with backoff.
func (wp *WorkerPool) StartDLQRetryConsumer(ctx context.Context) {
	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()

		log.Info().Msg("DLQ retry consumer started")
		ticker := time.NewTicker(wp.DLQConfig.RetryInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("DLQ retry consumer stopping")
				return
			case <-ticker.C:
				wp.processDLQJobs(ctx)
			}
		}
	}()
}

func (wp *WorkerPool) processDLQJobs(ctx context.Context) {
	collection := wp.dlqCollection()

	// find jobs ready for retry
	filter := bson.M{
		"status":      bson.M{"$in": []string{entity.DLQStatusPending, entity.DLQStatusFailed}},
		"retry_count": bson.M{"$lt": wp.DLQConfig.MaxRetryCount},
		"$or": []bson.M{
			{"next_retry_at": bson.M{"$exists": false}},
			{"next_retry_at": bson.M{"$lte": wp.now().UTC()}},
		},
	}

	opts := options.Find().SetSort(bson.M{"created_at": 1}).SetLimit(int64(wp.DLQConfig.BatchSize))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to query DLQ jobs")
		return
	}
	defer cursor.Close(ctx)

	var dlqJobs []entity.DLQJob
	if err := cursor.All(ctx, &dlqJobs); err != nil {
		log.Error().Err(err).Msg("Failed to decode DLQ jobs")
		return
	}

	if len(dlqJobs) == 0 {
		log.Debug().Msg("No DLQ jobs to process")
		return
	}

	log.Info().Int("count", len(dlqJobs)).Msg("Processing DLQ jobs")
	for i := range dlqJobs {
		wp.retryDLQJob(ctx, collection, &dlqJobs[i])
	}
}

func (wp *WorkerPool) retryDLQJob(ctx context.Context, collection *mongo.Collection, dlqJob *entity.DLQJob) {
	if !wp.setDLQStatus(ctx, collection, dlqJob.ID, bson.M{"status": entity.DLQStatusProcessing}) {
		return
	}

	var originalJob queue.Job
	if err := json.Unmarshal(dlqJob.Job, &originalJob); err != nil {
		log.Error().Err(err).Str("job_id", dlqJob.JobID).Msg("Failed to unmarshal job payload")
		wp.setDLQStatus(ctx, collection, dlqJob.ID, bson.M{
			"status":    entity.DLQStatusDead,
			"error_msg": "invalid_payload: " + err.Error(),
			"failed_at": wp.now().UTC(),
		})
		return
	}

	// broadcasts are time sensitive; replaying a stale one helps nobody
	if originalJob.Type != queue.JobParticipantLeft && originalJob.Expired(wp.now()) {
		wp.setDLQStatus(ctx, collection, dlqJob.ID, bson.M{
			"status":    entity.DLQStatusDead,
			"error_msg": "expired",
			"failed_at": wp.now().UTC(),
		})
		return
	}

	if err := HandleJob(ctx, originalJob, wp.handler); err != nil {
		wp.handleDLQRetryFailure(ctx, collection, dlqJob, err.Error())
		return
	}

	completedAt := wp.now().UTC()
	wp.setDLQStatus(ctx, collection, dlqJob.ID, bson.M{
		"status":       entity.DLQStatusCompleted,
		"completed_at": completedAt,
	})
	log.Info().Str("job_id", dlqJob.JobID).Str("type", dlqJob.Type).Int("dlq_retry_count", dlqJob.RetryCount).Msg("DLQ job successfully retried")
}

func (wp *WorkerPool) handleDLQRetryFailure(ctx context.Context, collection *mongo.Collection, dlqJob *entity.DLQJob, errorMsg string) {
	newRetryCount := dlqJob.RetryCount + 1

	if newRetryCount >= wp.DLQConfig.MaxRetryCount {
		wp.setDLQStatus(ctx, collection, dlqJob.ID, bson.M{
			"status":      entity.DLQStatusDead,
			"retry_count": newRetryCount,
			"error_msg":   errorMsg,
			"failed_at":   wp.now().UTC(),
		})
		log.Error().Str("job_id", dlqJob.JobID).Str("type", dlqJob.Type).Int("dlq_retry_count", newRetryCount).Msg("DLQ job permanently failed after max retries")
		return
	}

	nextRetryAt := wp.now().UTC().Add(dlqBackoff(wp.DLQConfig.RetryInterval, wp.DLQConfig.BackoffFactor, newRetryCount))
	wp.setDLQStatus(ctx, collection, dlqJob.ID, bson.M{
		"status":        entity.DLQStatusFailed,
		"retry_count":   newRetryCount,
		"error_msg":     errorMsg,
		"next_retry_at": nextRetryAt,
	})

	log.Warn().
		Str("job_id", dlqJob.JobID).
		Str("type", dlqJob.Type).
		Int("dlq_retry_count", newRetryCount).
		Time("next_retry_at", nextRetryAt).
		Msg("DLQ job scheduled for retry")
}

func dlqBackoff(interval time.Duration, factor float64, retry int) time.Duration {
	return time.Duration(float64(interval) * math.Pow(factor, float64(retry)))
}

func (wp *WorkerPool) setDLQStatus(ctx context.Context, collection *mongo.Collection, id bson.ObjectID, fields bson.M) bool {
	fields["updated_at"] = wp.now().UTC()
	if _, err := collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields}); err != nil {
		log.Error().Err(err).Str("id", id.Hex()).Msg("Failed to update DLQ job")
		return false
	}
	return true
}
