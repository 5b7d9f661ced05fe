// Package activation is the inactive -> active gate. Active is terminal.
package activation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/auth"
	"github.com/partnerhub/engine/internal/database"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/queue"
	"github.com/partnerhub/engine/internal/services/commission"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Result is returned for a completed activation
type Result struct {
	UserID      uuid.UUID       `json:"user_id"`
	Cost        decimal.Decimal `json:"cost"`
	Balance     decimal.Decimal `json:"balance"`
	ActivatedAt time.Time       `json:"activated_at"`
	SelfFunded  bool            `json:"self_funded"`
}

// Service flips partners active
type Service struct {
	runner      *database.Runner
	cost        decimal.Decimal
	queue       queue.Enqueuer
	commissions *commission.Service
	logger      *zap.Logger
	now         func() time.Time
}

// NewService creates the activation gate. Commission events go through q
// when it is set and are applied inline otherwise.
func NewService(runner *database.Runner, cost decimal.Decimal, q queue.Enqueuer, commissions *commission.Service, logger *zap.Logger) *Service {
	return &Service{
		runner:      runner,
		cost:        cost,
		queue:       q,
		commissions: commissions,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ActivateWithBalance spends the activation cost from the partner's own
// balance and flips them active, then hands the activation to the
// commission calculator.
func (s *Service) ActivateWithBalance(ctx context.Context, userID uuid.UUID) (*Result, error) {
	var result *Result
	err := s.runner.InTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		user, err := referral.LockUser(tx, userID)
		if err != nil {
			return err
		}
		if user.IsActive {
			return errs.Validation(errs.CodeAlreadyActive, "account is already active")
		}
		balance, err := ledger.Balance(tx, user.ID)
		if err != nil {
			return err
		}
		if balance.LessThan(s.cost) {
			return errs.InsufficientBalance(balance, s.cost)
		}

		err = ledger.AppendTx(tx, now, ledger.Batch{Debits: []models.DebitRecord{{
			PayerID:   user.ID,
			Type:      models.DebitActivationSpend,
			Amount:    s.cost,
			Reference: commission.ActivationEventID(user.ID),
		}}})
		if err != nil {
			return err
		}
		if err := markActive(tx, user.ID, now, true); err != nil {
			return err
		}

		result = &Result{
			UserID:      user.ID,
			Cost:        s.cost,
			Balance:     balance.Sub(s.cost),
			ActivatedAt: now,
			SelfFunded:  true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("partner activated",
		zap.String("user_id", userID.String()),
		zap.String("cost", s.cost.String()))
	s.dispatch(ctx, userID)
	return result, nil
}

// AdminActivate flips a partner active without a debit. No commission is
// paid for an override.
func (s *Service) AdminActivate(ctx context.Context, caller auth.Capability, userID uuid.UUID) (*Result, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	var result *Result
	err := s.runner.InTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		user, err := referral.LockUser(tx, userID)
		if err != nil {
			return err
		}
		if user.IsActive {
			return errs.Validation(errs.CodeAlreadyActive, "account is already active")
		}
		if err := markActive(tx, user.ID, now, false); err != nil {
			return err
		}
		balance, err := ledger.Balance(tx, user.ID)
		if err != nil {
			return err
		}
		result = &Result{UserID: user.ID, Cost: decimal.Zero, Balance: balance, ActivatedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("partner activated by operator", zap.String("user_id", userID.String()))
	return result, nil
}

func markActive(tx *gorm.DB, userID uuid.UUID, at time.Time, selfFunded bool) error {
	err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"is_active":    true,
		"activated_at": at,
		"self_funded":  selfFunded,
	}).Error
	if err != nil {
		return fmt.Errorf("error activating partner: %w", err)
	}
	return nil
}

func (s *Service) event(userID uuid.UUID) commission.Event {
	return commission.Event{
		ID:           commission.ActivationEventID(userID),
		Type:         commission.EventActivation,
		SourceUserID: userID,
		Amount:       s.cost,
	}
}

// dispatch hands the activation event to the commission calculator. A lost
// enqueue is picked up by SweepPendingActivations.
func (s *Service) dispatch(ctx context.Context, userID uuid.UUID) {
	ev := s.event(userID)
	if s.queue != nil {
		payload := queue.CommissionEventPayload{
			EventID:      ev.ID,
			EventType:    string(ev.Type),
			SourceUserID: ev.SourceUserID,
			Amount:       ev.Amount,
		}
		if _, err := s.queue.Enqueue(ctx, queue.JobTypeCommissionEvent, payload); err != nil {
			s.logger.Warn("failed to enqueue activation commission", zap.String("event_id", ev.ID), zap.Error(err))
		}
		return
	}
	if s.commissions == nil {
		return
	}
	if _, err := s.commissions.Apply(ctx, ev); err != nil {
		s.logger.Warn("activation commission not applied", zap.String("event_id", ev.ID), zap.Error(err))
	}
}

// SweepPendingActivations re-dispatches the commission event of every
// self-funded active partner whose activation has no applied batch.
func (s *Service) SweepPendingActivations(ctx context.Context) (int, error) {
	applied := s.runner.DB(ctx).Model(&models.CommissionEvent{}).
		Select("source_user_id").
		Where("type = ?", string(commission.EventActivation))

	var pending []uuid.UUID
	err := s.runner.DB(ctx).Model(&models.User{}).
		Where("is_active = ? AND self_funded = ?", true, true).
		Where("id NOT IN (?)", applied).
		Order("activated_at ASC").
		Pluck("id", &pending).Error
	if err != nil {
		return 0, errs.System(errs.CodeStorage, err)
	}

	for _, id := range pending {
		s.dispatch(ctx, id)
	}
	if len(pending) > 0 {
		s.logger.Info("re-dispatched pending activation commissions", zap.Int("count", len(pending)))
	}
	return len(pending), nil
}
