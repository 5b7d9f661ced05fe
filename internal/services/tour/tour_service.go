// Package tour tracks tour-fund qualifiers: time-boxed contests counted in
// directs activated within the contest window.
package tour

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/partnerhub/engine/internal/auth"
	"github.com/partnerhub/engine/internal/database"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/services/referral"
	"go.uber.org/zap"
)

// QualifierInput defines a new qualifier. Code defaults to a slug of Name.
type QualifierInput struct {
	Code                   string          `json:"code"`
	Name                   string          `json:"name"`
	FundType               models.FundType `json:"fund_type"`
	TargetEarningReferrals int             `json:"target_earning_referrals"`
	StartDate              time.Time       `json:"start_date"`
	EndDate                time.Time       `json:"end_date"`
}

// QualifierProgress is a partner's standing in one qualifier
type QualifierProgress struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	FundType  models.FundType `json:"fund_type"`
	Target    int             `json:"target"`
	Achieved  int64           `json:"achieved"`
	Remaining int64           `json:"remaining"`
	Qualified bool            `json:"qualified"`
	Status    string          `json:"status"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
}

type Service struct {
	runner   *database.Runner
	referral *referral.Service
	logger   *zap.Logger
}

func NewService(runner *database.Runner, referrals *referral.Service, logger *zap.Logger) *Service {
	return &Service{runner: runner, referral: referrals, logger: logger}
}

// CreateQualifier adds a qualifier; operators only
func (s *Service) CreateQualifier(ctx context.Context, caller auth.Capability, in QualifierInput) (*models.TourQualifier, error) {
	if err := caller.RequireAdmin(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, errs.Validation(errs.CodeInvalidInput, "qualifier name is required")
	}
	if in.FundType != models.DomesticTourFund && in.FundType != models.InternationalTourFund {
		return nil, errs.Validation(errs.CodeInvalidInput, "unknown tour fund")
	}
	if in.TargetEarningReferrals <= 0 {
		return nil, errs.Validation(errs.CodeInvalidInput, "target must be positive")
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, errs.Validation(errs.CodeInvalidInput, "end date is before start date")
	}
	code := in.Code
	if code == "" {
		code = in.Name
	}

	q := &models.TourQualifier{
		Code:                   slug.Make(code),
		Name:                   in.Name,
		FundType:               in.FundType,
		TargetEarningReferrals: in.TargetEarningReferrals,
		StartDate:              in.StartDate.UTC(),
		EndDate:                in.EndDate.UTC(),
		Status:                 "active",
	}
	var existing int64
	if err := s.runner.DB(ctx).Model(&models.TourQualifier{}).Where("code = ?", q.Code).Count(&existing).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}
	if existing > 0 {
		return nil, errs.Validation(errs.CodeInvalidCode, "a qualifier with this code already exists")
	}
	if err := s.runner.DB(ctx).Create(q).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}
	s.logger.Info("tour qualifier created", zap.String("code", q.Code), zap.String("fund", string(q.FundType)))
	return q, nil
}

// Progress lists every qualifier ordered by start date. Earning referrals
// are only counted for active qualifiers; the rest report zero progress.
func (s *Service) Progress(ctx context.Context, userID uuid.UUID) ([]QualifierProgress, error) {
	if _, err := s.referral.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	var qualifiers []models.TourQualifier
	if err := s.runner.DB(ctx).Order("start_date ASC, id ASC").Find(&qualifiers).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}

	out := make([]QualifierProgress, 0, len(qualifiers))
	for i := range qualifiers {
		q := &qualifiers[i]
		var count int64
		if q.Active() {
			n, err := s.referral.EarningReferralCount(ctx, userID, q.StartDate, q.EndDate)
			if err != nil {
				return nil, err
			}
			count = n
		}
		remaining := int64(q.TargetEarningReferrals) - count
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, QualifierProgress{
			Code:      q.Code,
			Name:      q.Name,
			FundType:  q.FundType,
			Target:    q.TargetEarningReferrals,
			Achieved:  count,
			Remaining: remaining,
			Qualified: q.Active() && remaining == 0,
			Status:    q.Status,
			StartDate: q.StartDate,
			EndDate:   q.EndDate,
		})
	}
	return out, nil
}
