// Package commission turns business events into batches of earning records.
// Each event id is applied at most once; a replay is a successful no-op.
package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/database"
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

// EventType identifies what triggered a commission batch
type EventType string

const (
	EventActivation      EventType = "activation"
	EventDeposit         EventType = "deposit"
	EventPassiveMaturity EventType = "passive_maturity"
)

// Event is a business event to pay commissions for. SourceUserID is the
// partner who activated, the deposit target, or the matured partner.
type Event struct {
	ID           string
	Type         EventType
	SourceUserID uuid.UUID
	Amount       decimal.Decimal
	Note         string
}

// ActivationEventID is the event id of a partner's self-funded activation
func ActivationEventID(userID uuid.UUID) string {
	return "activation:" + userID.String()
}

// PassiveEventID is the event id of a partner reaching passive tier
func PassiveEventID(userID uuid.UUID, tier int) string {
	return fmt.Sprintf("passive:%s:%d", userID, tier)
}

// DepositEventID returns the event id of an admin deposit. Deposits sent
// with the same idempotency key share an id; without one each is fresh.
func DepositEventID(key string) string {
	if key == "" {
		key = uuid.NewString()
	}
	return "deposit:" + key
}

// Result describes the outcome of applying an event
type Result struct {
	EventID string                 `json:"event_id"`
	Applied bool                   `json:"applied"`
	Records []models.EarningRecord `json:"records,omitempty"`
	Total   decimal.Decimal        `json:"total"`
}

// Service is the commission calculator
type Service struct {
	runner *database.Runner
	plan   config.CommissionConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a commission calculator for plan
func NewService(runner *database.Runner, plan config.CommissionConfig, logger *zap.Logger) *Service {
	return &Service{
		runner: runner,
		plan:   plan,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Apply computes the earning records ev produces and appends them together
// with the event marker in one transaction. If any computed record is
// invalid nothing is written.
func (s *Service) Apply(ctx context.Context, ev Event) (*Result, error) {
	if err := validateEvent(ev); err != nil {
		monitoring.CommissionBatchesTotal.WithLabelValues(string(ev.Type), "rejected").Inc()
		return nil, err
	}

	var result *Result
	err := s.runner.InTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		marker := models.CommissionEvent{
			ID:           ev.ID,
			Type:         string(ev.Type),
			SourceUserID: ev.SourceUserID,
			Amount:       ev.Amount,
			Total:        decimal.Zero,
			CreatedAt:    now,
		}
		claim := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
		if claim.Error != nil {
			return fmt.Errorf("error claiming commission event: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			result = &Result{EventID: ev.ID, Total: decimal.Zero}
			return nil
		}

		records, err := s.compute(tx, ev)
		if err != nil {
			return err
		}
		for i := range records {
			records[i].EventID = ev.ID
			records[i].CreatedAt = now
		}

		batch := ledger.Batch{Earnings: records}
		if err := ledger.AppendTx(tx, now, batch); err != nil {
			return err
		}

		total := batch.Total()
		if err := tx.Model(&models.CommissionEvent{}).Where("id = ?", ev.ID).
			Updates(map[string]interface{}{"record_count": len(records), "total": total}).Error; err != nil {
			return fmt.Errorf("error recording commission event: %w", err)
		}
		result = &Result{EventID: ev.ID, Applied: true, Records: records, Total: total}
		return nil
	})
	if err != nil {
		monitoring.CommissionBatchesTotal.WithLabelValues(string(ev.Type), "failed").Inc()
		s.logger.Error("commission batch failed",
			zap.String("event_id", ev.ID),
			zap.String("event_type", string(ev.Type)),
			zap.Error(err))
		return nil, err
	}

	if !result.Applied {
		monitoring.CommissionBatchesTotal.WithLabelValues(string(ev.Type), "replayed").Inc()
		s.logger.Debug("commission event already applied", zap.String("event_id", ev.ID))
		return result, nil
	}

	monitoring.CommissionBatchesTotal.WithLabelValues(string(ev.Type), "applied").Inc()
	s.logger.Info("commission batch applied",
		zap.String("event_id", ev.ID),
		zap.String("event_type", string(ev.Type)),
		zap.Int("records", len(result.Records)),
		zap.String("total", result.Total.String()))
	return result, nil
}

func validateEvent(ev Event) error {
	if ev.ID == "" {
		return errs.Validation(errs.CodeInvalidInput, "commission event has no id")
	}
	if ev.SourceUserID == uuid.Nil {
		return errs.Validation(errs.CodeInvalidInput, "commission event has no source partner")
	}
	switch ev.Type {
	case EventActivation, EventDeposit, EventPassiveMaturity:
	default:
		return errs.Validation(errs.CodeUnknownEvent, fmt.Sprintf("unknown commission event %q", ev.Type))
	}
	if !ev.Amount.IsPositive() {
		return errs.Validation(errs.CodeInvalidAmount, "commission event amount must be positive")
	}
	return nil
}

func (s *Service) compute(tx *gorm.DB, ev Event) ([]models.EarningRecord, error) {
	source, err := referral.FindUser(tx, ev.SourceUserID)
	if err != nil {
		return nil, err
	}

	switch ev.Type {
	case EventDeposit:
		return []models.EarningRecord{{
			ReceiverID: source.ID,
			Type:       models.EarningAdminDeposit,
			Amount:     ev.Amount.Round(2),
			Note:       ev.Note,
		}}, nil
	case EventPassiveMaturity:
		if !source.IsActive {
			return nil, errs.Unauthorized(errs.CodeInactiveAccount, "passive income requires an active account")
		}
		return []models.EarningRecord{{
			ReceiverID: source.ID,
			Type:       models.EarningPassive,
			Amount:     ev.Amount.Round(2),
			Note:       ev.Note,
		}}, nil
	case EventActivation:
		if !source.IsActive {
			return nil, errs.Unauthorized(errs.CodeInactiveAccount, "activation commission requires an active account")
		}
		return s.activationPayouts(tx, source, ev.Amount)
	}
	return nil, errs.Validation(errs.CodeUnknownEvent, fmt.Sprintf("unknown commission event %q", ev.Type))
}

// activationPayouts pays the sponsor, the bounded upline and the top-ten pool
func (s *Service) activationPayouts(tx *gorm.DB, source *models.User, amount decimal.Decimal) ([]models.EarningRecord, error) {
	var records []models.EarningRecord
	sourceID := source.ID

	upline, err := referral.LoadAncestors(tx, source.ID, 1+len(s.plan.TeamRates))
	if err != nil {
		return nil, err
	}
	eligible, err := s.eligibleReceivers(tx, upline)
	if err != nil {
		return nil, err
	}

	for _, p := range upline {
		if !eligible[p.AncestorID] {
			continue
		}
		var rate decimal.Decimal
		typ := models.EarningTeam
		if p.Depth == 1 {
			rate = s.plan.DirectRate
			typ = models.EarningDirect
		} else {
			rate = s.plan.TeamRates[p.Depth-2]
		}
		payout := amount.Mul(rate).Round(2)
		if payout.IsZero() {
			continue
		}
		records = append(records, models.EarningRecord{
			ReceiverID:   p.AncestorID,
			SourceUserID: &sourceID,
			Type:         typ,
			Amount:       payout,
			Note:         fmt.Sprintf("level %d", p.Depth),
		})
	}

	pool, err := s.topTenShares(tx, amount)
	if err != nil {
		return nil, err
	}
	for i := range pool {
		pool[i].SourceUserID = &sourceID
	}
	return append(records, pool...), nil
}

func (s *Service) eligibleReceivers(tx *gorm.DB, upline []models.ReferralPath) (map[uuid.UUID]bool, error) {
	eligible := make(map[uuid.UUID]bool, len(upline))
	if len(upline) == 0 {
		return eligible, nil
	}
	ids := make([]uuid.UUID, 0, len(upline))
	for _, p := range upline {
		ids = append(ids, p.AncestorID)
	}
	var users []models.User
	if err := tx.Select("id", "is_active").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("error loading upline partners: %w", err)
	}
	for _, u := range users {
		eligible[u.ID] = u.IsActive || !s.plan.RequireActiveReceiver
	}
	return eligible, nil
}

// topTenShares splits the pool among the top earners in proportion to their
// realized income. Rounding leftovers go to the first earner so the shares
// always add up to the pool.
func (s *Service) topTenShares(tx *gorm.DB, amount decimal.Decimal) ([]models.EarningRecord, error) {
	pool := amount.Mul(s.plan.TopTenRate).Round(2)
	if !pool.IsPositive() || s.plan.TopTenSize <= 0 {
		return nil, nil
	}

	scope := tx
	if s.plan.RequireActiveReceiver {
		scope = tx.Where("u.is_active = ?", true)
	}
	earners, err := ledger.RankByRealizedIncome(scope, s.plan.TopTenSize)
	if err != nil {
		return nil, fmt.Errorf("error ranking top earners: %w", err)
	}

	sum := decimal.Zero
	for _, e := range earners {
		sum = sum.Add(e.Income)
	}
	if !sum.IsPositive() {
		return nil, nil
	}

	records := make([]models.EarningRecord, 0, len(earners))
	paid := decimal.Zero
	for _, e := range earners {
		share := pool.Mul(e.Income).Div(sum).Truncate(2)
		paid = paid.Add(share)
		records = append(records, models.EarningRecord{
			ReceiverID: e.UserID,
			Type:       models.EarningTopTen,
			Amount:     share,
			Note:       "top ten pool",
		})
	}
	records[0].Amount = records[0].Amount.Add(pool.Sub(paid))

	out := records[:0]
	for _, r := range records {
		if !r.Amount.IsZero() {
			out = append(out, r)
		}
	}
	return out, nil
}
