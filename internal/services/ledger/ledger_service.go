// Package ledger is the append-only store of earning and debit records.
// Balances and income figures are projections over it; nothing here updates
// or deletes a row.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/database"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/monitoring"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Batch is a set of rows appended together or not at all
type Batch struct {
	Earnings []models.EarningRecord
	Debits   []models.DebitRecord
}

// Empty reports whether the batch has no rows
func (b Batch) Empty() bool {
	return len(b.Earnings) == 0 && len(b.Debits) == 0
}

// Total is the sum of the batch's earning amounts
func (b Batch) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range b.Earnings {
		total = total.Add(e.Amount)
	}
	return total
}

// Service reads and appends ledger records
type Service struct {
	runner *database.Runner
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a ledger service
func NewService(runner *database.Runner, logger *zap.Logger) *Service {
	return &Service{
		runner: runner,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Append writes batch in its own transaction
func (s *Service) Append(ctx context.Context, batch Batch) error {
	return s.runner.InTx(ctx, func(tx *gorm.DB) error {
		return AppendTx(tx, s.now(), batch)
	})
}

// AppendTx validates every row of batch and inserts them with tx. A single
// invalid row fails the whole batch before anything is written. Rows with a
// zero CreatedAt are stamped with now.
func AppendTx(tx *gorm.DB, now time.Time, batch Batch) error {
	if batch.Empty() {
		return nil
	}

	owners := map[uuid.UUID]struct{}{}
	for i := range batch.Earnings {
		e := &batch.Earnings[i]
		if !e.Type.Valid() {
			return errs.InvalidRecord(fmt.Sprintf("unknown earning type %q", e.Type))
		}
		if err := checkAmount(e.Amount); err != nil {
			return err
		}
		if e.ReceiverID == uuid.Nil {
			return errs.InvalidRecord("earning record has no receiver")
		}
		owners[e.ReceiverID] = struct{}{}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}
	for i := range batch.Debits {
		d := &batch.Debits[i]
		if !d.Type.Valid() {
			return errs.InvalidRecord(fmt.Sprintf("unknown debit type %q", d.Type))
		}
		if err := checkAmount(d.Amount); err != nil {
			return err
		}
		if d.PayerID == uuid.Nil {
			return errs.InvalidRecord("debit record has no payer")
		}
		owners[d.PayerID] = struct{}{}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		if d.Status == "" {
			d.Status = "posted"
		}
	}

	ids := make([]uuid.UUID, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}
	var found int64
	if err := tx.Model(&models.User{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
		return fmt.Errorf("error checking record owners: %w", err)
	}
	if found != int64(len(ids)) {
		return errs.InvalidRecord("ledger record refers to a partner that does not exist")
	}

	if len(batch.Earnings) > 0 {
		if err := tx.Create(&batch.Earnings).Error; err != nil {
			return fmt.Errorf("error appending earnings: %w", err)
		}
	}
	if len(batch.Debits) > 0 {
		if err := tx.Create(&batch.Debits).Error; err != nil {
			return fmt.Errorf("error appending debits: %w", err)
		}
	}

	for _, e := range batch.Earnings {
		monitoring.LedgerRecordsAppended.WithLabelValues("earning", string(e.Type)).Inc()
	}
	for _, d := range batch.Debits {
		monitoring.LedgerRecordsAppended.WithLabelValues("debit", string(d.Type)).Inc()
	}
	return nil
}

func checkAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errs.InvalidRecord("ledger amount must not be negative")
	}
	if !amount.Equal(amount.Round(2)) {
		return errs.InvalidRecord("ledger amount has more than two decimal places")
	}
	return nil
}

// Balance returns total earnings minus total debits of userID as seen by db.
// Inside a transaction that holds the partner's row lock the result cannot
// change until commit.
func Balance(db *gorm.DB, userID uuid.UUID) (decimal.Decimal, error) {
	var earned, paid decimal.Decimal
	if err := db.Model(&models.EarningRecord{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("receiver_id = ?", userID).
		Row().Scan(&earned); err != nil {
		return decimal.Zero, fmt.Errorf("error summing earnings: %w", err)
	}
	if err := db.Model(&models.DebitRecord{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("payer_id = ?", userID).
		Row().Scan(&paid); err != nil {
		return decimal.Zero, fmt.Errorf("error summing debits: %w", err)
	}
	return earned.Sub(paid).Round(2), nil
}

// Balance returns the current balance of userID
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	balance, err := Balance(s.runner.DB(ctx), userID)
	if err != nil {
		return decimal.Zero, errs.System(errs.CodeStorage, err)
	}
	return balance, nil
}
