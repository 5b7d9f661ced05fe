package referral

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
	"github.com/partnerhub/engine/internal/queue"
	"github.com/partnerhub/engine/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FirstReferralCode is assigned to the root account
const FirstReferralCode = 1001

// NewPartner holds signup details supplied by the identity flow
type NewPartner struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

func (p NewPartner) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errs.Validation(errs.CodeInvalidInput, "name is required")
	}
	if p.Email != "" && !utils.IsValidEmail(p.Email) {
		return errs.Validation(errs.CodeInvalidInput, "email is malformed")
	}
	return nil
}

// PartnerSummary is the public view of a partner resolved by referral code
type PartnerSummary struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	ReferralCode int64     `json:"referral_code"`
	IsActive     bool      `json:"is_active"`
}

// Service maintains the sponsor forest, its ancestor closure and the
// per-user direct/team counters.
type Service struct {
	runner *database.Runner
	queue  queue.Enqueuer
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a referral service. q may be nil, in which case
// excellence evaluation is left to the on-demand path.
func NewService(runner *database.Runner, q queue.Enqueuer, logger *zap.Logger) *Service {
	return &Service{
		runner: runner,
		queue:  q,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Register inserts a partner under the sponsor owning sponsorCode. The node,
// its closure rows, the sponsor's direct count, every ancestor's team size
// and level are written in one transaction.
func (s *Service) Register(ctx context.Context, sponsorCode int64, p NewPartner) (*models.User, error) {
	if sponsorCode <= 0 {
		return nil, errs.Validation(errs.CodeInvalidCode, "sponsor code must be a positive integer")
	}
	if err := p.validate(); err != nil {
		return nil, err
	}

	var user *models.User
	var ancestors []uuid.UUID
	err := s.runner.InTx(ctx, func(tx *gorm.DB) error {
		var sponsor models.User
		if err := tx.Where("referral_code = ?", sponsorCode).First(&sponsor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.NotFound(errs.CodeSponsorNotFound, fmt.Sprintf("no partner with referral code %d", sponsorCode))
			}
			return fmt.Errorf("error finding sponsor: %w", err)
		}

		code, err := nextReferralCode(tx)
		if err != nil {
			return err
		}

		user = &models.User{
			ReferralCode: code,
			SponsorID:    &sponsor.ID,
			Name:         strings.TrimSpace(p.Name),
			Email:        strings.ToLower(strings.TrimSpace(p.Email)),
			Mobile:       strings.TrimSpace(p.Mobile),
			JoiningDate:  s.now(),
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("error creating partner: %w", err)
		}

		ancestors, err = insertPaths(tx, sponsor.ID, user.ID)
		if err != nil {
			return err
		}

		if err := tx.Model(&models.User{}).Where("id = ?", sponsor.ID).
			UpdateColumn("direct_referrals_count", gorm.Expr("direct_referrals_count + ?", 1)).Error; err != nil {
			return fmt.Errorf("error updating direct count: %w", err)
		}
		if err := tx.Model(&models.User{}).Where("id IN ?", ancestors).
			UpdateColumn("team_size", gorm.Expr("team_size + ?", 1)).Error; err != nil {
			return fmt.Errorf("error updating team sizes: %w", err)
		}

		return raiseLevels(tx, append([]uuid.UUID{user.ID}, ancestors...))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("partner registered",
		zap.String("user_id", user.ID.String()),
		zap.Int64("referral_code", user.ReferralCode),
		zap.Int64("sponsor_code", sponsorCode),
		zap.Int("upline_depth", len(ancestors)))

	s.notifyAncestors(ctx, ancestors)
	return user, nil
}

// RegisterRoot creates the sponsor-less root account of an empty forest
func (s *Service) RegisterRoot(ctx context.Context, p NewPartner) (*models.User, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.runner.InTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return fmt.Errorf("error counting partners: %w", err)
		}
		if count > 0 {
			return errs.Validation(errs.CodeRootExists, "root partner already exists")
		}

		now := s.now()
		user = &models.User{
			ReferralCode: FirstReferralCode,
			Name:         strings.TrimSpace(p.Name),
			Email:        strings.ToLower(strings.TrimSpace(p.Email)),
			Mobile:       strings.TrimSpace(p.Mobile),
			IsActive:     true,
			ActivatedAt:  &now,
			JoiningDate:  now,
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("error creating root partner: %w", err)
		}
		return raiseLevels(tx, []uuid.UUID{user.ID})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("root partner created", zap.String("user_id", user.ID.String()))
	return user, nil
}

// LookupByCode resolves a referral code to the partner's public profile
func (s *Service) LookupByCode(ctx context.Context, code int64) (*PartnerSummary, error) {
	if code <= 0 {
		return nil, errs.Validation(errs.CodeInvalidCode, "referral code must be a positive integer")
	}
	var user models.User
	if err := s.runner.DB(ctx).Where("referral_code = ?", code).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound(errs.CodeUserNotFound, fmt.Sprintf("no partner with referral code %d", code))
		}
		return nil, errs.System(errs.CodeStorage, err)
	}
	return &PartnerSummary{ID: user.ID, Name: user.Name, ReferralCode: user.ReferralCode, IsActive: user.IsActive}, nil
}

// GetUser loads a partner by id
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return FindUser(s.runner.DB(ctx), userID)
}

// Ancestors returns the upline of userID, nearest first
func (s *Service) Ancestors(ctx context.Context, userID uuid.UUID) ([]models.ReferralPath, error) {
	return LoadAncestors(s.runner.DB(ctx), userID, 0)
}

// EarningReferralCount counts the directs of userID whose activation falls
// within [start, end].
func (s *Service) EarningReferralCount(ctx context.Context, userID uuid.UUID, start, end time.Time) (int64, error) {
	if end.Before(start) {
		return 0, errs.Validation(errs.CodeInvalidInput, "end date is before start date")
	}
	var count int64
	err := s.runner.DB(ctx).Model(&models.User{}).
		Where("sponsor_id = ? AND is_active = ? AND activated_at >= ? AND activated_at <= ?", userID, true, start.UTC(), end.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, errs.System(errs.CodeStorage, err)
	}
	return count, nil
}

func (s *Service) notifyAncestors(ctx context.Context, ancestors []uuid.UUID) {
	if s.queue == nil || len(ancestors) == 0 {
		return
	}
	payload := queue.ExcellenceEvaluationPayload{UserIDs: ancestors}
	if _, err := s.queue.Enqueue(ctx, queue.JobTypeExcellenceEvaluation, payload); err != nil {
		// evaluation also runs on demand, so a lost job only delays an unlock
		s.logger.Warn("failed to enqueue excellence evaluation", zap.Int("users", len(ancestors)), zap.Error(err))
	}
}

// FindUser loads a partner by id with db, returning NotFound when absent
func FindUser(db *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound(errs.CodeUserNotFound, "partner not found")
		}
		return nil, fmt.Errorf("error finding partner: %w", err)
	}
	return &user, nil
}

// LockUser loads a partner row FOR UPDATE. Every balance check-then-write
// on the partner's ledger holds this lock.
func LockUser(tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	return FindUser(tx.Clauses(lockingUpdate), userID)
}
