package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/partnerhub/engine/internal/monitoring"
	"go.uber.org/zap"
)

// JobProcessor processes jobs from queues with a fixed pool of workers
type JobProcessor struct {
	queue       *RedisQueue
	handlers    map[JobType]JobHandler
	workerCount int
	pollTimeout time.Duration
	jobTimeout  time.Duration
	logger      *zap.Logger
	wg          sync.WaitGroup
	cancel      context.CancelFunc
}

// NewJobProcessor creates a new JobProcessor
func NewJobProcessor(queue *RedisQueue, workerCount int, logger *zap.Logger) *JobProcessor {
	if workerCount < 1 {
		workerCount = 1
	}
	return &JobProcessor{
		queue:       queue,
		handlers:    make(map[JobType]JobHandler),
		workerCount: workerCount,
		pollTimeout: time.Second,
		jobTimeout:  30 * time.Second,
		logger:      logger,
	}
}

// RegisterHandler registers a handler for a specific queue
func (p *JobProcessor) RegisterHandler(queueName JobType, handler JobHandler) {
	p.handlers[queueName] = handler
}

// Start starts the workers. They run until Stop is called or ctx is done.
func (p *JobProcessor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	queues := make([]JobType, 0, len(p.handlers))
	for name := range p.handlers {
		queues = append(queues, name)
	}
	if len(queues) == 0 {
		p.logger.Warn("job processor has no registered queues")
		return
	}

	p.logger.Info("starting job processor", zap.Int("workers", p.workerCount))
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i, queues)
	}
}

// Stop stops the job processor and waits for in-flight jobs
func (p *JobProcessor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("job processor stopped")
}

func (p *JobProcessor) worker(ctx context.Context, id int, queues []JobType) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := p.queue.Dequeue(ctx, p.pollTimeout, queues...)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("error getting job", zap.Int("worker", id), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		if err := p.ProcessJob(ctx, job); err != nil {
			p.logger.Warn("job processing failed",
				zap.Int("worker", id),
				zap.String("job_id", job.ID),
				zap.String("queue", string(job.Queue)),
				zap.Error(err))
		}
	}
}

// ProcessJob runs the registered handler for a single job and records the
// outcome on the queue.
func (p *JobProcessor) ProcessJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}

	// finish bookkeeping even when the worker is being stopped
	bookkeeping := context.WithoutCancel(ctx)

	handler, ok := p.handlers[job.Queue]
	if !ok {
		err := fmt.Errorf("no handler registered for job type: %s", job.Queue)
		_ = p.queue.Fail(bookkeeping, job, err)
		monitoring.JobsProcessed.WithLabelValues(string(job.Queue), "unhandled").Inc()
		return err
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	if err := handler(jobCtx, job); err != nil {
		if failErr := p.queue.Fail(bookkeeping, job, err); failErr != nil {
			p.logger.Error("failed to record job failure", zap.String("job_id", job.ID), zap.Error(failErr))
		}
		monitoring.JobsProcessed.WithLabelValues(string(job.Queue), "failed").Inc()
		return fmt.Errorf("job processing failed: %w", err)
	}

	p.queue.Complete(bookkeeping, job)
	monitoring.JobsProcessed.WithLabelValues(string(job.Queue), "completed").Inc()
	return nil
}
