package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxHistory caps a single history page
const MaxHistory = 100

// EarningEntry is one row of a partner's earning history
type EarningEntry struct {
	ID         uuid.UUID          `json:"id"`
	Type       models.EarningType `json:"type"`
	Amount     decimal.Decimal    `json:"amount"`
	CreatedAt  time.Time          `json:"created_at"`
	Note       string             `json:"note,omitempty"`
	SourceName string             `json:"source_name"`
	SourceCode *int64             `json:"source_code,omitempty"`
}

type earningRow struct {
	ID         uuid.UUID
	Type       models.EarningType
	Amount     decimal.Decimal
	CreatedAt  time.Time
	Note       string
	SourceName *string
	SourceCode *int64
}

// EarningHistory returns the newest earnings of userID with the name and
// code of the partner that triggered each one.
func (s *Service) EarningHistory(ctx context.Context, userID uuid.UUID, limit int) ([]EarningEntry, error) {
	if limit <= 0 || limit > MaxHistory {
		limit = MaxHistory
	}

	var rows []earningRow
	err := s.runner.DB(ctx).Table("earning_records AS e").
		Select("e.id, e.type, e.amount, e.created_at, e.note, u.name AS source_name, u.referral_code AS source_code").
		Joins("LEFT JOIN users u ON u.id = e.source_user_id").
		Where("e.receiver_id = ?", userID).
		Order("e.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}

	entries := make([]EarningEntry, 0, len(rows))
	for _, r := range rows {
		entry := EarningEntry{
			ID:         r.ID,
			Type:       r.Type,
			Amount:     r.Amount,
			CreatedAt:  r.CreatedAt,
			Note:       r.Note,
			SourceName: "System",
			SourceCode: r.SourceCode,
		}
		if r.SourceName != nil {
			entry.SourceName = *r.SourceName
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Earner is a partner with their realized income
type Earner struct {
	UserID   uuid.UUID       `json:"user_id"`
	Name     string          `json:"name"`
	TeamSize int             `json:"team_size"`
	Income   decimal.Decimal `json:"real_income"`
}

// RankByRealizedIncome returns up to limit partners with commission income,
// highest first, ties broken by ascending user id.
func RankByRealizedIncome(db *gorm.DB, limit int) ([]Earner, error) {
	var rows []Earner
	err := db.Table("users AS u").
		Select("u.id AS user_id, u.name, u.team_size, COALESCE(SUM(e.amount), 0) AS income").
		Joins("JOIN earning_records e ON e.receiver_id = u.id AND e.type IN ?", models.RealizedEarningTypes()).
		Group("u.id, u.name, u.team_size").
		Order("income DESC, u.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	// the database did the cut; this pins the order independent of how the
	// driver compares decimals and uuids
	for i := range rows {
		rows[i].Income = rows[i].Income.Round(2)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Income.Cmp(rows[j].Income); c != 0 {
			return c > 0
		}
		return rows[i].UserID.String() < rows[j].UserID.String()
	})
	return rows, nil
}
