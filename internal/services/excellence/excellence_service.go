// Package excellence unlocks the Excellence Club milestones. Rules unlock
// strictly in order and each one pays its reward exactly once.
package excellence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/partnerhub/engine/internal/database"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/monitoring"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Unlock is a milestone reached by an evaluation
type Unlock struct {
	RuleID     uint            `json:"rule_id"`
	Code       string          `json:"code"`
	LevelName  string          `json:"level_name"`
	Reward     decimal.Decimal `json:"reward"`
	AchievedAt time.Time       `json:"achieved_at"`
}

// Service evaluates milestone progress
type Service struct {
	runner *database.Runner
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates an excellence engine
func NewService(runner *database.Runner, logger *zap.Logger) *Service {
	return &Service{
		runner: runner,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RuleCode is the stable identifier of a rule derived from its name
func RuleCode(rule models.ExcellenceRule) string {
	return slug.Make(rule.LevelName)
}

func loadRules(db *gorm.DB) ([]models.ExcellenceRule, error) {
	var rules []models.ExcellenceRule
	if err := db.Order("id ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("error loading excellence rules: %w", err)
	}
	return rules, nil
}

func loadAchieved(db *gorm.DB, userID uuid.UUID) (map[uint]time.Time, error) {
	var statuses []models.UserExcellenceStatus
	if err := db.Where("user_id = ?", userID).Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("error loading excellence status: %w", err)
	}
	achieved := make(map[uint]time.Time, len(statuses))
	for _, st := range statuses {
		achieved[st.LevelID] = st.AchievedAt
	}
	return achieved, nil
}

func qualifies(user *models.User, rule models.ExcellenceRule) bool {
	return user.DirectReferralsCount >= rule.DirectReq && user.TeamSize >= rule.TeamReq
}

// Evaluate unlocks every milestone the partner now qualifies for, in rule
// order, stopping at the first one they do not meet. Each unlock writes its
// status row and its reward in the same transaction; re-evaluating is a
// no-op.
func (s *Service) Evaluate(ctx context.Context, userID uuid.UUID) ([]Unlock, error) {
	var unlocks []Unlock
	err := s.runner.InTx(ctx, func(tx *gorm.DB) error {
		unlocks = nil
		now := s.now()
		user, err := referral.LockUser(tx, userID)
		if err != nil {
			return err
		}
		rules, err := loadRules(tx)
		if err != nil {
			return err
		}
		achieved, err := loadAchieved(tx, user.ID)
		if err != nil {
			return err
		}

		var batch ledger.Batch
		for _, rule := range rules {
			if _, ok := achieved[rule.ID]; ok {
				continue
			}
			if !qualifies(user, rule) {
				break
			}
			status := models.UserExcellenceStatus{UserID: user.ID, LevelID: rule.ID, AchievedAt: now}
			if err := tx.Create(&status).Error; err != nil {
				return fmt.Errorf("error recording excellence unlock: %w", err)
			}
			batch.Earnings = append(batch.Earnings, models.EarningRecord{
				ReceiverID: user.ID,
				Type:       models.EarningExcellence,
				Amount:     rule.RewardAmount,
				EventID:    fmt.Sprintf("excellence:%s:%d", user.ID, rule.ID),
				Note:       rule.LevelName,
			})
			unlocks = append(unlocks, Unlock{
				RuleID:     rule.ID,
				Code:       RuleCode(rule),
				LevelName:  rule.LevelName,
				Reward:     rule.RewardAmount,
				AchievedAt: now,
			})
		}
		return ledger.AppendTx(tx, now, batch)
	})
	if err != nil {
		return nil, err
	}

	for _, u := range unlocks {
		monitoring.ExcellenceUnlocks.Inc()
		s.logger.Info("excellence milestone unlocked",
			zap.String("user_id", userID.String()),
			zap.String("level", u.LevelName),
			zap.String("reward", u.Reward.String()))
	}
	return unlocks, nil
}

// EvaluateAll evaluates each partner in turn. Partners that no longer exist
// are skipped; any other failure stops the run.
func (s *Service) EvaluateAll(ctx context.Context, userIDs []uuid.UUID) (int, error) {
	total := 0
	for _, id := range userIDs {
		unlocks, err := s.Evaluate(ctx, id)
		if err != nil {
			if errs.KindOf(err) == errs.KindNotFound {
				continue
			}
			return total, err
		}
		total += len(unlocks)
	}
	return total, nil
}
