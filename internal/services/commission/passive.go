package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"go.uber.org/zap"
)

// MaturitySummary counts the passive events a sweep produced
type MaturitySummary struct {
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
}

// MaturePassive pays every passive tier that active partners have reached
// by now. Tiers already paid are skipped; the event id keeps a concurrent
// sweep from paying twice.
func (s *Service) MaturePassive(ctx context.Context) (*MaturitySummary, error) {
	now := s.now()
	summary := &MaturitySummary{}

	for i, tier := range s.plan.PassiveSchedule {
		tierNo := i + 1
		cutoff := now.Add(-time.Duration(tier.AfterDays) * 24 * time.Hour)

		paid := s.runner.DB(ctx).Model(&models.CommissionEvent{}).
			Select("source_user_id").
			Where("type = ? AND id LIKE ?", string(EventPassiveMaturity), fmt.Sprintf("passive:%%:%d", tierNo))

		var due []uuid.UUID
		err := s.runner.DB(ctx).Model(&models.User{}).
			Where("is_active = ? AND activated_at IS NOT NULL AND activated_at <= ?", true, cutoff).
			Where("id NOT IN (?)", paid).
			Order("activated_at ASC").
			Pluck("id", &due).Error
		if err != nil {
			return summary, errs.System(errs.CodeStorage, err)
		}

		for _, userID := range due {
			_, err := s.Apply(ctx, Event{
				ID:           PassiveEventID(userID, tierNo),
				Type:         EventPassiveMaturity,
				SourceUserID: userID,
				Amount:       tier.Amount,
				Note:         fmt.Sprintf("passive tier %d (%d days)", tierNo, tier.AfterDays),
			})
			if err != nil {
				summary.Failed++
				if ctx.Err() != nil {
					return summary, errs.System(errs.CodeTimeout, ctx.Err())
				}
				continue
			}
			summary.Applied++
		}
	}

	s.logger.Info("passive maturity sweep finished",
		zap.Int("applied", summary.Applied),
		zap.Int("failed", summary.Failed))
	return summary, nil
}
