package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dequeue pops the highest priority job. ok is false when the queue is empty.
func Dequeue(ctx context.Context, rdb *redis.Client) (job Job, raw string, ok bool, err error) {
	res, err := rdb.ZPopMin(ctx, PriorityQueueKey, 1).Result()
	if err != nil || len(res) == 0 {
		return Job{}, "", false, err
	}

	raw, isString := res[0].Member.(string)
	if !isString {
		return Job{}, "", false, fmt.Errorf("unexpected queue member %T", res[0].Member)
	}
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return Job{}, raw, false, fmt.Errorf("invalid job payload: %w", err)
	}
	return job, raw, true, nil
}

// PromoteDue moves delayed jobs whose time has come into the priority queue.
func PromoteDue(ctx context.Context, rdb *redis.Client, now time.Time) (int, error) {
	due, err := rdb.ZRangeByScore(ctx, DelayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	promoted := 0
	for _, raw := range due {
		// ZRem decides ownership when several pools poll the same set
		removed, err := rdb.ZRem(ctx, DelayedKey, raw).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		if err := rdb.ZAdd(ctx, PriorityQueueKey, redis.Z{Score: Score(job), Member: raw}).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// DeadLetter appends job to the DLQ list.
func DeadLetter(ctx context.Context, rdb *redis.Client, job Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.RPush(ctx, DLQKey, jobBytes).Err()
}
