package jobs

import (
	"github.com/partnerhub/engine/internal/queue"
	"github.com/partnerhub/engine/internal/services/commission"
	"github.com/partnerhub/engine/internal/services/excellence"
	"go.uber.org/zap"
)

// RegisterAllJobHandlers registers all job handlers with the processor
func RegisterAllJobHandlers(
	p *queue.JobProcessor,
	commissions *commission.Service,
	milestones *excellence.Service,
	logger *zap.Logger,
) {
	p.RegisterHandler(queue.JobTypeCommissionEvent, NewCommissionJob(commissions, logger).Handle)
	p.RegisterHandler(queue.JobTypeExcellenceEvaluation, NewExcellenceJob(milestones, logger).Handle)
}
