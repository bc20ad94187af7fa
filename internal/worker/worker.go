package worker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/xenn00/conference-system/internal/metrics"
	"github.com/xenn00/conference-system/internal/queue"
	"github.com/xenn00/conference-system/internal/utils/types"
	worker_handler "github.com/xenn00/conference-system/internal/worker/worker-handler"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

const (
	defaultPollInterval = time.Second
	baseRetryDelay      = 5 * time.Second
	alertCooldown       = 10 * time.Minute
)

type WorkerPool struct {
	Redis        *redis.Client
	Mongo        *mongo.Database // nil disables the DLQ archive
	WorkerNum    int
	JobChannel   chan queue.Job
	DLQConfig    types.DLQRetryConfig
	PollInterval time.Duration

	handler   *worker_handler.WorkerHandler
	scheduler queue.Scheduler
	now       func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc

	dlaMu    sync.Mutex
	dlaCache map[string]time.Time
}

func NewWorkerPool(redis *redis.Client, mongoDB *mongo.Database, workerNum int, handler *worker_handler.WorkerHandler) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	return &WorkerPool{
		Redis:        redis,
		Mongo:        mongoDB,
		WorkerNum:    workerNum,
		JobChannel:   make(chan queue.Job, 100), // Buffered channel to hold jobs
		DLQConfig:    types.DefaultDLQRetryConfig(),
		PollInterval: defaultPollInterval,
		handler:      handler,
		scheduler:    &queue.RedisProducer{Redis: redis},
		now:          time.Now,
		dlaCache:     make(map[string]time.Time),
	}
}

// Start launches the poller, the workers and, when Mongo is configured,
// the DLQ archiver and retry consumer.
func (wp *WorkerPool) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	wp.cancel = cancel
	log.Info().Msgf("Starting worker pool with %d workers", wp.WorkerNum)

	for i := 0; i < wp.WorkerNum; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}

	wp.wg.Add(1)
	go wp.poll(ctx)

	if wp.Mongo != nil {
		wp.StartDLQWorker(ctx)
		wp.StartDLQRetryConsumer(ctx)
	} else {
		log.Warn().Msg("mongo not configured, dead jobs stay in the redis DLQ list")
	}
}

func (wp *WorkerPool) poll(ctx context.Context) {
	defer wp.wg.Done()
	defer close(wp.JobChannel)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping worker pool")
			return
		default:
		}

		if _, err := queue.PromoteDue(ctx, wp.Redis, wp.now()); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Worker: failed to promote delayed jobs")
		}

		job, _, ok, err := queue.Dequeue(ctx, wp.Redis)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Msg("Worker: failed to pop job")
			}
			wp.sleep(ctx)
			continue
		}
		if !ok {
			wp.sleep(ctx)
			continue
		}

		select {
		case wp.JobChannel <- job:
		case <-ctx.Done():
			// put it back so the next process picks it up
			_ = (&queue.RedisProducer{Redis: wp.Redis}).Enqueue(context.WithoutCancel(ctx), job)
			return
		}
	}
}

func (wp *WorkerPool) sleep(ctx context.Context) {
	t := time.NewTimer(wp.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Info().Msgf("Worker %d started", id)

	for job := range wp.JobChannel {
		wp.process(ctx, job)
	}
	log.Info().Msgf("Worker %d stopping", id)
}

func (wp *WorkerPool) process(ctx context.Context, job queue.Job) {
	if job.Expired(wp.now()) {
		log.Warn().Str("job_id", job.ID).Str("type", job.Type).Msg("Job expired before processing")
		metrics.JobsProcessed.WithLabelValues(job.Type, "expired").Inc()
		return
	}

	err := HandleJob(ctx, job, wp.handler)
	if err == nil {
		metrics.JobsProcessed.WithLabelValues(job.Type, "ok").Inc()
		return
	}

	job.Retry++
	job.ErrorMsg = err.Error()

	if job.Retry >= job.MaxRetry || job.Expired(wp.now()) {
		log.Error().Str("job_id", job.ID).Err(err).Msg("Job moved to DLQ")
		metrics.JobsProcessed.WithLabelValues(job.Type, "dlq").Inc()
		if err := queue.DeadLetter(context.WithoutCancel(ctx), wp.Redis, job); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to push job to DLQ")
		}
		wp.sendDLA(job)
		return
	}

	delay := retryDelay(job.Retry)
	metrics.JobsProcessed.WithLabelValues(job.Type, "retry").Inc()
	if err := wp.scheduler.EnqueueAt(context.WithoutCancel(ctx), job, wp.now().Add(delay)); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to schedule retry")
		return
	}
	log.Warn().Str("job_id", job.ID).Msgf("Retrying in %v seconds (%d/%d)", delay.Seconds(), job.Retry, job.MaxRetry)
}

// retryDelay doubles from 10s: 10s, 20s, 40s...
func retryDelay(retry int) time.Duration {
	return baseRetryDelay * time.Duration(1<<retry)
}

// sendDLA logs a dead letter alert at most once per job type per cooldown.
func (wp *WorkerPool) sendDLA(job queue.Job) bool {
	wp.dlaMu.Lock()
	defer wp.dlaMu.Unlock()

	now := wp.now()
	if last, ok := wp.dlaCache[job.Type]; ok && now.Sub(last) < alertCooldown {
		return false
	}

	log.Error().Str("job_id", job.ID).Str("type", job.Type).Str("error", job.ErrorMsg).Msg("Dead Letter Alert: Job failed permanently")
	wp.dlaCache[job.Type] = now
	return true
}

// Stop cancels the pool and waits for every goroutine to return.
func (wp *WorkerPool) Stop() {
	if wp.cancel != nil {
		wp.cancel()
	}
	wp.Wait()
}

func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
	log.Info().Msg("All workers have stopped")
}
