package jobs

import (
	"context"
	"fmt"

	"github.com/partnerhub/engine/internal/queue"
	"github.com/partnerhub/engine/internal/services/excellence"
	"go.uber.org/zap"
)

// ExcellenceJob re-evaluates milestones for partners whose team grew
type ExcellenceJob struct {
	excellence *excellence.Service
	logger     *zap.Logger
}

// NewExcellenceJob creates a new excellence evaluation job handler
func NewExcellenceJob(svc *excellence.Service, logger *zap.Logger) *ExcellenceJob {
	return &ExcellenceJob{excellence: svc, logger: logger}
}

// Handle evaluates every partner in the payload, nearest ancestor first
func (j *ExcellenceJob) Handle(ctx context.Context, job *queue.Job) error {
	var payload queue.ExcellenceEvaluationPayload
	if err := job.Decode(&payload); err != nil {
		j.logger.Error("dropping malformed excellence job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}

	unlocked, err := j.excellence.EvaluateAll(ctx, payload.UserIDs)
	if err != nil {
		// evaluation is idempotent, so the whole batch can run again
		return fmt.Errorf("excellence evaluation: %w", err)
	}
	if unlocked > 0 {
		j.logger.Info("excellence job unlocked milestones",
			zap.String("job_id", job.ID),
			zap.Int("unlocked", unlocked))
	}
	return nil
}
