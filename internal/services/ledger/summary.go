package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/shopspring/decimal"
)

// IncomeSummary is the dashboard projection of a partner's ledger
type IncomeSummary struct {
	AllTimeIncome    decimal.Decimal `json:"all_time_income"`
	AllTimePaid      decimal.Decimal `json:"all_time_paid"`
	TodayIncome      decimal.Decimal `json:"today_income"`
	Last7DayIncome   decimal.Decimal `json:"last_7_day_income"`
	Last30DayIncome  decimal.Decimal `json:"last_30_day_income"`
	DirectIncome     decimal.Decimal `json:"direct_income"`
	TeamIncome       decimal.Decimal `json:"team_income"`
	PassiveIncome    decimal.Decimal `json:"passive_income"`
	ExcellenceIncome decimal.Decimal `json:"excellence_income"`
	TopTenIncome     decimal.Decimal `json:"top_ten_income"`
	AdminFunding     decimal.Decimal `json:"admin_funding"`
	FundReceived     decimal.Decimal `json:"fund_received"`
	Refunded         decimal.Decimal `json:"refunded"`
	Balance          decimal.Decimal `json:"balance"`
}

// Summarize aggregates the partner's earnings and debits. AllTimeIncome
// covers every earning, so AllTimeIncome - AllTimePaid is the balance; the
// windowed buckets count commissions and admin funding only. Windows are
// measured back from the service clock; "today" starts at UTC midnight.
func (s *Service) Summarize(ctx context.Context, userID uuid.UUID) (*IncomeSummary, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	income := models.IncomeEarningTypes()

	db := s.runner.DB(ctx)
	var users int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}
	if users == 0 {
		return nil, errs.NotFound(errs.CodeUserNotFound, "partner not found")
	}

	var sum IncomeSummary
	row := db.Model(&models.EarningRecord{}).
		Select(`
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(CASE WHEN type IN ? AND created_at >= ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type IN ? AND created_at >= ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type IN ? AND created_at >= ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN amount END), 0)`,
			income,
			income, today,
			income, now.Add(-7*24*time.Hour),
			income, now.Add(-30*24*time.Hour),
			models.EarningDirect,
			models.EarningTeam,
			models.EarningPassive,
			models.EarningExcellence,
			models.EarningTopTen,
			models.EarningAdminDeposit,
			models.EarningTransferReceived,
			models.EarningWithdrawalRefund,
		).
		Where("receiver_id = ?", userID).
		Row()
	if err := row.Scan(
		&sum.AllTimeIncome,
		&sum.TodayIncome,
		&sum.Last7DayIncome,
		&sum.Last30DayIncome,
		&sum.DirectIncome,
		&sum.TeamIncome,
		&sum.PassiveIncome,
		&sum.ExcellenceIncome,
		&sum.TopTenIncome,
		&sum.AdminFunding,
		&sum.FundReceived,
		&sum.Refunded,
	); err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}

	if err := db.Model(&models.DebitRecord{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("payer_id = ?", userID).
		Row().Scan(&sum.AllTimePaid); err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}

	sum.Balance = sum.AllTimeIncome.Sub(sum.AllTimePaid).Round(2)
	for _, d := range []*decimal.Decimal{
		&sum.AllTimeIncome, &sum.AllTimePaid, &sum.TodayIncome, &sum.Last7DayIncome, &sum.Last30DayIncome,
		&sum.DirectIncome, &sum.TeamIncome, &sum.PassiveIncome, &sum.ExcellenceIncome, &sum.TopTenIncome,
		&sum.AdminFunding, &sum.FundReceived, &sum.Refunded,
	} {
		*d = d.Round(2)
	}
	return &sum, nil
}
