package commission

import (
	"context"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/auth"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/shopspring/decimal"
)

// DepositInput is an operator funding a partner's wallet
type DepositInput struct {
	TargetUserID uuid.UUID       `json:"target_user_id"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note"`
	// IdempotencyKey makes a retried deposit apply once
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

const maxIdempotencyKey = 100

// AdminDeposit credits the target with an admin_deposit earning. The caller
// must carry the admin capability.
func (s *Service) AdminDeposit(ctx context.Context, caller auth.Capability, in DepositInput) (*Result, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() || !in.Amount.Equal(in.Amount.Round(2)) {
		return nil, errs.Validation(errs.CodeInvalidAmount, "deposit amount must be a positive amount in cents")
	}
	if len(in.IdempotencyKey) > maxIdempotencyKey {
		return nil, errs.Validation(errs.CodeInvalidInput, "idempotency key is too long")
	}
	return s.Apply(ctx, Event{
		ID:           DepositEventID(in.IdempotencyKey),
		Type:         EventDeposit,
		SourceUserID: in.TargetUserID,
		Amount:       in.Amount,
		Note:         in.Note,
	})
}
