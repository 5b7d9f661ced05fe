package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/auth"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/monitoring"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithdrawalInput is a payout request from a partner. An empty Address
// means the one saved in the profile for Method.
type WithdrawalInput struct {
	Amount  decimal.Decimal     `json:"amount"`
	Method  models.PayoutMethod `json:"method"`
	Address string              `json:"address"`
}

// RequestWithdrawal reserves the amount with a debit and files a pending
// request for an operator to approve or reject.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, in WithdrawalInput) (*models.WithdrawalRequest, error) {
	req, err := s.requestWithdrawal(ctx, userID, in)
	if err != nil {
		monitoring.WithdrawalsTotal.WithLabelValues(string(errs.KindOf(err))).Inc()
		return nil, err
	}
	monitoring.WithdrawalsTotal.WithLabelValues("requested").Inc()
	s.logger.Info("withdrawal requested",
		zap.String("withdrawal_id", req.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("amount", req.Amount.String()),
		zap.String("method", string(req.Method)))
	return req, nil
}

func (s *Service) requestWithdrawal(ctx context.Context, userID uuid.UUID, in WithdrawalInput) (*models.WithdrawalRequest, error) {
	if !in.Method.Valid() {
		return nil, errs.Validation(errs.CodeInvalidMethod, fmt.Sprintf("unsupported payout method %q", in.Method))
	}
	if err := checkAmount(in.Amount); err != nil {
		return nil, err
	}

	var req *models.WithdrawalRequest
	err := s.runner.InTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		user, err := referral.LockUser(tx, userID)
		if err != nil {
			return err
		}
		address, err := payoutAddress(user, in.Method, in.Address)
		if err != nil {
			return err
		}

		balance, err := ledger.Balance(tx, user.ID)
		if err != nil {
			return err
		}
		if balance.LessThan(in.Amount) {
			return errs.InsufficientBalance(balance, in.Amount)
		}

		requestID := uuid.New()
		debit := models.DebitRecord{
			Record:    models.Record{ID: uuid.New()},
			PayerID:   user.ID,
			Type:      models.DebitWithdrawal,
			Amount:    in.Amount,
			Reference: requestID.String(),
		}
		if err := ledger.AppendTx(tx, now, ledger.Batch{Debits: []models.DebitRecord{debit}}); err != nil {
			return err
		}

		req = &models.WithdrawalRequest{
			Base:        models.Base{ID: requestID},
			UserID:      user.ID,
			Amount:      in.Amount,
			Method:      in.Method,
			Address:     address,
			Status:      models.WithdrawalPending,
			DebitID:     debit.ID,
			RequestedAt: now,
		}
		if err := tx.Create(req).Error; err != nil {
			return fmt.Errorf("error creating withdrawal request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ApproveWithdrawal marks a pending request approved. The funds were
// reserved at request time, so the ledger is not touched.
func (s *Service) ApproveWithdrawal(ctx context.Context, caller auth.Capability, id uuid.UUID) (*models.WithdrawalRequest, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	req, err := s.processWithdrawal(ctx, caller, id, models.WithdrawalApproved, "", nil)
	if err != nil {
		return nil, err
	}
	monitoring.WithdrawalsTotal.WithLabelValues("approved").Inc()
	s.logger.Info("withdrawal approved", zap.String("withdrawal_id", id.String()))
	return req, nil
}

// RejectWithdrawal marks a pending request rejected and credits the
// reserved amount back with a withdrawal_refund earning.
func (s *Service) RejectWithdrawal(ctx context.Context, caller auth.Capability, id uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	refund := func(tx *gorm.DB, req *models.WithdrawalRequest) error {
		return ledger.AppendTx(tx, s.now(), ledger.Batch{Earnings: []models.EarningRecord{{
			ReceiverID: req.UserID,
			Type:       models.EarningWithdrawalRefund,
			Amount:     req.Amount,
			EventID:    "refund:" + req.ID.String(),
			Note:       reason,
		}}})
	}
	req, err := s.processWithdrawal(ctx, caller, id, models.WithdrawalRejected, reason, refund)
	if err != nil {
		return nil, err
	}
	monitoring.WithdrawalsTotal.WithLabelValues("rejected").Inc()
	s.logger.Info("withdrawal rejected", zap.String("withdrawal_id", id.String()), zap.String("reason", reason))
	return req, nil
}

func (s *Service) processWithdrawal(ctx context.Context, caller auth.Capability, id uuid.UUID, status models.WithdrawalStatus, reason string, then func(*gorm.DB, *models.WithdrawalRequest) error) (*models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	err := s.runner.InTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound(errs.CodeWithdrawalNotFound, "withdrawal request not found")
			}
			return fmt.Errorf("error loading withdrawal request: %w", err)
		}
		if req.Status != models.WithdrawalPending {
			return errs.Validation(errs.CodeAlreadyProcessed, fmt.Sprintf("withdrawal is already %s", req.Status))
		}

		now := s.now()
		updates := map[string]interface{}{
			"status":        status,
			"processed_at":  now,
			"reject_reason": reason,
		}
		if caller.UserID != uuid.Nil {
			updates["processed_by"] = caller.UserID
		}
		if err := tx.Model(&models.WithdrawalRequest{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("error updating withdrawal request: %w", err)
		}
		req.Status = status
		req.ProcessedAt = &now
		req.RejectReason = reason

		if then != nil {
			return then(tx, &req)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListWithdrawals returns requests in status, oldest first. An empty status
// lists all of them.
func (s *Service) ListWithdrawals(ctx context.Context, caller auth.Capability, status models.WithdrawalStatus, limit int) ([]models.WithdrawalRequest, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > ledger.MaxHistory {
		limit = ledger.MaxHistory
	}
	query := s.runner.DB(ctx).Order("requested_at ASC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var out []models.WithdrawalRequest
	if err := query.Find(&out).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}
	return out, nil
}
