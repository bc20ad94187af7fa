package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueue_OrdersByPriority(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	p := NewProducer(rdb)
	low := NewJob(JobParticipantLeft, map[string]string{"user_id": "u1"}, 3, time.Minute)
	high := NewJob(JobBroadcastEnded, map[string]string{"id": "c1"}, 1, time.Minute)

	require.NoError(t, p.Enqueue(ctx, low))
	require.NoError(t, p.Enqueue(ctx, high))

	res, err := rdb.ZPopMin(ctx, PriorityQueueKey, 1).Result()
	require.NoError(t, err)
	require.Len(t, res, 1)

	var first Job
	require.NoError(t, json.Unmarshal([]byte(res[0].Member.(string)), &first))
	assert.Equal(t, high.ID, first.ID)
	assert.Equal(t, JobBroadcastEnded, first.Type)
	assert.JSONEq(t, `{"id":"c1"}`, string(first.Payload))
}

func TestJob_Expired(t *testing.T) {
	job := NewJob(JobBroadcastMessage, nil, 1, time.Minute)
	assert.False(t, job.Expired(time.Now()))
	assert.True(t, job.Expired(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 3, job.MaxRetry)
}

func TestDelayedJobsArePromotedWhenDue(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	p := &RedisProducer{Redis: rdb}
	now := time.Now()
	job := NewJob(JobParticipantLeft, map[string]string{"user_id": "u1"}, 2, time.Hour)
	require.NoError(t, p.EnqueueAt(ctx, job, now.Add(30*time.Second)))

	n, err := PromoteDue(ctx, rdb, now)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, _, ok, err := Dequeue(ctx, rdb)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err = PromoteDue(ctx, rdb, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _, ok, err := Dequeue(ctx, rdb)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, job.ID, got.ID)
}

func TestDeadLetter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	job := NewJob(JobBroadcastMessage, nil, 1, time.Minute)
	require.NoError(t, DeadLetter(context.Background(), rdb, job))

	items, err := mr.List(DLQKey)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, items[0], job.ID)
}
