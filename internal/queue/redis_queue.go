package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Redis key prefixes
const (
	queuePrefix   = "queue:"
	delayedPrefix = "delayed:"
	failedPrefix  = "failed:"
	jobPrefix     = "jobs:"
)

// RedisQueue is a Redis backed job queue: a list per queue for ready jobs,
// a sorted set per queue for delayed jobs and a dead letter list.
type RedisQueue struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisQueue creates a new Redis queue
func NewRedisQueue(client *redis.Client, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func (q *RedisQueue) newJob(queueName JobType, payload interface{}, runAt time.Time, opts []EnqueueOption) (*Job, []byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := q.now()
	job := &Job{
		ID:         uuid.New().String(),
		Queue:      queueName,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: DefaultRetryCount,
		CreatedAt:  now,
		UpdatedAt:  now,
		RunAt:      runAt,
	}
	for _, opt := range opts {
		opt(job)
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return job, jobBytes, nil
}

// Enqueue adds a job to the queue
func (q *RedisQueue) Enqueue(ctx context.Context, queueName JobType, payload interface{}, opts ...EnqueueOption) (string, error) {
	job, jobBytes, err := q.newJob(queueName, payload, q.now(), opts)
	if err != nil {
		return "", err
	}

	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, queuePrefix+string(queueName), jobBytes)
	pipe.HSet(ctx, jobPrefix+job.ID, "data", jobBytes)
	pipe.Expire(ctx, jobPrefix+job.ID, DefaultTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to push job to queue: %w", err)
	}

	return job.ID, nil
}

// EnqueueIn adds a job to the queue with a delay
func (q *RedisQueue) EnqueueIn(ctx context.Context, queueName JobType, payload interface{}, delay time.Duration, opts ...EnqueueOption) (string, error) {
	job, jobBytes, err := q.newJob(queueName, payload, q.now().Add(delay), opts)
	if err != nil {
		return "", err
	}

	if err := q.schedule(ctx, job, jobBytes); err != nil {
		return "", err
	}
	return job.ID, nil
}

func (q *RedisQueue) schedule(ctx context.Context, job *Job, jobBytes []byte) error {
	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, delayedPrefix+string(job.Queue), &redis.Z{
		Score:  float64(job.RunAt.Unix()),
		Member: jobBytes,
	})
	pipe.HSet(ctx, jobPrefix+job.ID, "data", jobBytes)
	pipe.Expire(ctx, jobPrefix+job.ID, DefaultTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add job to delayed queue: %w", err)
	}
	return nil
}

// Dequeue pops the next ready job from any of the named queues, waiting up
// to timeout. It returns nil when nothing is ready.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration, queueNames ...JobType) (*Job, error) {
	keys := make([]string, 0, len(queueNames))
	for _, name := range queueNames {
		q.moveReadyDelayedJobs(ctx, name)
		keys = append(keys, queuePrefix+string(name))
	}

	result, err := q.client.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No jobs available
		}
		return nil, fmt.Errorf("failed to pop job from queue: %w", err)
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected result format from BRPOP")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	job.Status = JobStatusProcessing
	job.UpdatedAt = q.now()
	q.saveJob(ctx, &job)

	return &job, nil
}

// moveReadyDelayedJobs moves delayed jobs that are ready to run to the main queue
func (q *RedisQueue) moveReadyDelayedJobs(ctx context.Context, queueName JobType) {
	delayedKey := delayedPrefix + string(queueName)

	jobs, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().Unix(), 10),
	}).Result()
	if err != nil {
		q.logger.Warn("error getting ready delayed jobs", zap.String("queue", string(queueName)), zap.Error(err))
		return
	}

	for _, jobStr := range jobs {
		// ZRem first so two workers never both move the same member
		removed, err := q.client.ZRem(ctx, delayedKey, jobStr).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, queuePrefix+string(queueName), jobStr).Err(); err != nil {
			q.logger.Error("error moving delayed job to main queue", zap.String("queue", string(queueName)), zap.Error(err))
		}
	}
}

func (q *RedisQueue) saveJob(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		return
	}
	if err := q.client.HSet(ctx, jobPrefix+job.ID, "data", data).Err(); err != nil {
		q.logger.Warn("failed to update job status", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// Complete marks a job as completed
func (q *RedisQueue) Complete(ctx context.Context, job *Job) {
	job.Status = JobStatusCompleted
	job.UpdatedAt = q.now()
	q.saveJob(ctx, job)
}

// Fail records the failure and schedules a retry with backoff, or moves the
// job to the dead letter list once its retries are spent.
func (q *RedisQueue) Fail(ctx context.Context, job *Job, jobErr error) error {
	job.LastError = jobErr.Error()
	job.UpdatedAt = q.now()

	if job.RetryCount < job.MaxRetries {
		return q.Retry(ctx, job, calculateBackoff(job.RetryCount))
	}

	job.Status = JobStatusFailed
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, jobPrefix+job.ID, "data", data)
	pipe.LPush(ctx, failedPrefix+string(job.Queue), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to dead letter job: %w", err)
	}
	q.logger.Error("job failed permanently",
		zap.String("job_id", job.ID),
		zap.String("queue", string(job.Queue)),
		zap.Int("retries", job.RetryCount),
		zap.String("error", job.LastError))
	return nil
}

// Retry retries a failed job after a delay
func (q *RedisQueue) Retry(ctx context.Context, job *Job, delay time.Duration) error {
	job.Status = JobStatusPending
	job.RetryCount++
	job.UpdatedAt = q.now()
	job.RunAt = q.now().Add(delay)

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.schedule(ctx, job, data)
}

// GetJob returns the last recorded state of a job
func (q *RedisQueue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.client.HGet(ctx, jobPrefix+jobID, "data").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get job details: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Stats returns queue depth counters
func (q *RedisQueue) Stats(ctx context.Context, queueName JobType) (QueueStats, error) {
	pipe := q.client.Pipeline()
	waiting := pipe.LLen(ctx, queuePrefix+string(queueName))
	delayed := pipe.ZCard(ctx, delayedPrefix+string(queueName))
	failed := pipe.LLen(ctx, failedPrefix+string(queueName))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return QueueStats{}, fmt.Errorf("failed to read queue stats: %w", err)
	}
	return QueueStats{
		Queue:   queueName,
		Waiting: waiting.Val(),
		Delayed: delayed.Val(),
		Failed:  failed.Val(),
	}, nil
}
