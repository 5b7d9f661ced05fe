package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/monitoring"
	"github.com/partnerhub/engine/internal/services/activation"
	"github.com/partnerhub/engine/internal/services/commission"
	"github.com/partnerhub/engine/internal/services/leaderboard"
	"github.com/partnerhub/engine/internal/services/wallet"
	"go.uber.org/zap"
)

const sweepTimeout = 5 * time.Minute

// Sweeps are the services driven by the scheduler
type Sweeps struct {
	Leaderboard *leaderboard.Service
	Commissions *commission.Service
	Activations *activation.Service
	PINs        *wallet.PINLimiter
}

// Scheduler runs the periodic sweeps
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *zap.Logger
}

// NewScheduler schedules the leaderboard refresh, the passive maturity
// sweep, the activation commission sweep and limiter pruning. A run that is
// still going when its next tick fires is not started twice.
func NewScheduler(cfg config.SchedulerConfig, refresh time.Duration, sweeps Sweeps, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{scheduler: gocron.NewScheduler(time.UTC), logger: logger}
	s.scheduler.SingletonModeAll()

	if sweeps.Leaderboard != nil {
		if err := s.every(refresh, "leaderboard_refresh", func(ctx context.Context) error {
			_, err := sweeps.Leaderboard.Refresh(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}
	if sweeps.Commissions != nil {
		if err := s.every(cfg.PassiveSweepInterval, "passive_maturity", func(ctx context.Context) error {
			_, err := sweeps.Commissions.MaturePassive(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}
	if sweeps.Activations != nil {
		if err := s.every(cfg.ActivationSweepInterval, "activation_sweep", func(ctx context.Context) error {
			_, err := sweeps.Activations.SweepPendingActivations(ctx)
			return err
		}); err != nil {
			return nil, err
		}
	}
	if sweeps.PINs != nil {
		if err := s.every(10*time.Minute, "pin_limiter_prune", func(context.Context) error {
			sweeps.PINs.Prune()
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) every(interval time.Duration, name string, fn func(context.Context) error) error {
	_, err := s.scheduler.Every(interval).Tag(name).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			monitoring.JobsProcessed.WithLabelValues(name, "failed").Inc()
			s.logger.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		monitoring.JobsProcessed.WithLabelValues(name, "completed").Inc()
	})
	return err
}

// Jobs returns the number of scheduled jobs
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

// Start starts the scheduler in the background
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", zap.Int("jobs", s.Jobs()))
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
