package jobs

import (
	"context"
	"fmt"

	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/queue"
	"github.com/partnerhub/engine/internal/services/commission"
	"go.uber.org/zap"
)

// CommissionJob applies queued commission events
type CommissionJob struct {
	commissions *commission.Service
	logger      *zap.Logger
}

// NewCommissionJob creates a new commission job handler
func NewCommissionJob(commissions *commission.Service, logger *zap.Logger) *CommissionJob {
	return &CommissionJob{commissions: commissions, logger: logger}
}

// Handle processes one commission event job. Events the calculator refuses
// are dropped after logging; only system failures go back for retry.
func (j *CommissionJob) Handle(ctx context.Context, job *queue.Job) error {
	var payload queue.CommissionEventPayload
	if err := job.Decode(&payload); err != nil {
		j.logger.Error("dropping malformed commission job", zap.String("job_id", job.ID), zap.Error(err))
		return nil
	}

	res, err := j.commissions.Apply(ctx, commission.Event{
		ID:           payload.EventID,
		Type:         commission.EventType(payload.EventType),
		SourceUserID: payload.SourceUserID,
		Amount:       payload.Amount,
		Note:         payload.Note,
	})
	if err != nil {
		if errs.KindOf(err) == errs.KindSystem {
			return fmt.Errorf("commission event %s: %w", payload.EventID, err)
		}
		j.logger.Error("dropping refused commission event",
			zap.String("job_id", job.ID),
			zap.String("event_id", payload.EventID),
			zap.Error(err))
		return nil
	}

	j.logger.Debug("commission job done",
		zap.String("event_id", res.EventID),
		zap.Bool("applied", res.Applied))
	return nil
}
