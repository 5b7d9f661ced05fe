// Package wallet moves money between partners and out to payout rails.
// Every balance decision re-reads the ledger under the owner's row lock.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/database"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/monitoring"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/partnerhub/engine/internal/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransferRequest is a peer transfer authorized by the sender's T-PIN
type TransferRequest struct {
	SenderCode   int64
	ReceiverCode int64
	Amount       decimal.Decimal
	PIN          string
}

// TransferResult is returned for a committed transfer
type TransferResult struct {
	TransferID   uuid.UUID       `json:"transfer_id"`
	ReceiverName string          `json:"receiver_name"`
	ReceiverCode int64           `json:"receiver_code"`
	Amount       decimal.Decimal `json:"amount"`
	Balance      decimal.Decimal `json:"balance"`
}

// Service handles wallet operations
type Service struct {
	runner *database.Runner
	pins   *PINLimiter
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new wallet service
func NewService(runner *database.Runner, pins *PINLimiter, logger *zap.Logger) *Service {
	return &Service{
		runner: runner,
		pins:   pins,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Balance returns the partner's current balance
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	balance, err := ledger.Balance(s.runner.DB(ctx), userID)
	if err != nil {
		return decimal.Zero, errs.System(errs.CodeStorage, err)
	}
	return balance, nil
}

// Transfer moves req.Amount from the sender to the receiver. The balance
// check and both ledger rows happen under the sender's row lock, so two
// concurrent transfers cannot spend the same funds.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	res, err := s.transfer(ctx, req)
	if err != nil {
		result := string(errs.KindOf(err))
		if code := errs.CodeOf(err); code != "" {
			result = code
		}
		monitoring.TransfersTotal.WithLabelValues(result).Inc()
		s.logger.Info("transfer refused",
			zap.Int64("sender_code", req.SenderCode),
			zap.Int64("receiver_code", req.ReceiverCode),
			zap.String("amount", req.Amount.String()),
			zap.Error(err))
		return nil, err
	}
	monitoring.TransfersTotal.WithLabelValues("success").Inc()
	s.logger.Info("transfer completed",
		zap.String("transfer_id", res.TransferID.String()),
		zap.Int64("sender_code", req.SenderCode),
		zap.Int64("receiver_code", req.ReceiverCode),
		zap.String("amount", res.Amount.String()))
	return res, nil
}

func (s *Service) transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	db := s.runner.DB(ctx)

	sender, err := userByCode(db, req.SenderCode, errs.CodeUserNotFound)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(sender, req.PIN); err != nil {
		return nil, err
	}
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}
	receiver, err := userByCode(db, req.ReceiverCode, errs.CodeReceiverNotFound)
	if err != nil {
		return nil, err
	}
	if receiver.ID == sender.ID {
		return nil, errs.Validation(errs.CodeSelfTransfer, "cannot transfer to yourself")
	}

	result := &TransferResult{
		ReceiverName: receiver.Name,
		ReceiverCode: receiver.ReferralCode,
		Amount:       req.Amount,
	}
	err = s.runner.InTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		if _, err := referral.LockUser(tx, sender.ID); err != nil {
			return err
		}
		balance, err := ledger.Balance(tx, sender.ID)
		if err != nil {
			return err
		}
		if balance.LessThan(req.Amount) {
			return errs.InsufficientBalance(balance, req.Amount)
		}

		record := models.TransferRecord{
			Record:     models.Record{CreatedAt: now},
			SenderID:   sender.ID,
			ReceiverID: receiver.ID,
			Amount:     req.Amount,
			Status:     models.TransferSucceeded,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("error creating transfer record: %w", err)
		}

		senderID := sender.ID
		err = ledger.AppendTx(tx, now, ledger.Batch{
			Debits: []models.DebitRecord{{
				PayerID:   sender.ID,
				Type:      models.DebitTransferSent,
				Amount:    req.Amount,
				Reference: record.ID.String(),
			}},
			Earnings: []models.EarningRecord{{
				ReceiverID:   receiver.ID,
				SourceUserID: &senderID,
				Type:         models.EarningTransferReceived,
				Amount:       req.Amount,
				EventID:      "transfer:" + record.ID.String(),
			}},
		})
		if err != nil {
			return err
		}

		result.TransferID = record.ID
		result.Balance = balance.Sub(req.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// authorize gates a money-moving operation on an active account and a
// matching T-PIN. Every check consumes a limiter token, so guessing is
// bounded whatever the outcome.
func (s *Service) authorize(user *models.User, pin string) error {
	if !user.IsActive {
		return errs.Unauthorized(errs.CodeInactiveAccount, "account is not active")
	}
	if s.pins != nil && !s.pins.Allow(user.ID) {
		return errs.Unauthorized(errs.CodeTooManyAttempts, "too many T-PIN attempts, try again later")
	}
	if !utils.IsValidPIN(pin) {
		return errs.Validation(errs.CodeInvalidPINFormat, "T-PIN must be 4 digits")
	}
	if !user.HasPIN() {
		return errs.Unauthorized(errs.CodePINNotSet, "set a T-PIN in your profile first")
	}
	if !utils.CheckPINHash(pin, user.TPINHash) {
		return errs.Unauthorized(errs.CodeBadCredential, "incorrect T-PIN")
	}
	return nil
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errs.Validation(errs.CodeInvalidAmount, "amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return errs.Validation(errs.CodeInvalidAmount, "amount has more than two decimal places")
	}
	return nil
}

func userByCode(db *gorm.DB, code int64, notFound string) (*models.User, error) {
	var user models.User
	if err := db.Where("referral_code = ?", code).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound(notFound, fmt.Sprintf("no partner with referral code %d", code))
		}
		return nil, errs.System(errs.CodeStorage, err)
	}
	return &user, nil
}

// payoutAddress resolves and validates the destination for method,
// falling back to the address saved in the partner's profile.
func payoutAddress(user *models.User, method models.PayoutMethod, address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		switch method {
		case models.PayoutCrypto:
			address = user.WalletAddress
		case models.PayoutBankUPI:
			address = user.UPIID
		}
	}
	if address == "" {
		return "", errs.Validation(errs.CodeMissingPayoutDetails, "add a payout address to your profile or supply one")
	}

	switch method {
	case models.PayoutCrypto:
		if !utils.IsValidCryptoAddress(address) {
			return "", errs.Validation(errs.CodeInvalidPayoutAddress, "not a valid wallet address")
		}
		return utils.NormalizeCryptoAddress(address), nil
	case models.PayoutBankUPI:
		if !utils.IsValidUPI(address) {
			return "", errs.Validation(errs.CodeInvalidPayoutAddress, "not a valid UPI id")
		}
		return address, nil
	}
	return "", errs.Validation(errs.CodeInvalidMethod, fmt.Sprintf("unsupported payout method %q", method))
}
