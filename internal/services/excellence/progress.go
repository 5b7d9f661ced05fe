package excellence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/shopspring/decimal"
)

// Target is the next milestone and what it takes
type Target struct {
	RuleID    uint            `json:"rule_id"`
	Code      string          `json:"code"`
	LevelName string          `json:"level_name"`
	DirectReq int             `json:"direct_req"`
	TeamReq   int             `json:"team_req"`
	Reward    decimal.Decimal `json:"reward"`
}

// Achievement is an unlocked milestone
type Achievement struct {
	Code       string    `json:"code"`
	LevelName  string    `json:"level_name"`
	AchievedAt time.Time `json:"achieved_at"`
}

// Progress is the partner's standing on the milestone ladder. Next is nil
// once Completed.
type Progress struct {
	Completed    bool          `json:"completed"`
	Next         *Target       `json:"next,omitempty"`
	Directs      int           `json:"directs"`
	TeamSize     int           `json:"team_size"`
	StrongestLeg int           `json:"strongest_leg"`
	OtherLegs    int           `json:"other_legs"`
	Achieved     []Achievement `json:"achieved"`
}

// Progress reports the next unachieved milestone against current counts
func (s *Service) Progress(ctx context.Context, userID uuid.UUID) (*Progress, error) {
	db := s.runner.DB(ctx)
	user, err := referral.FindUser(db, userID)
	if err != nil {
		if errs.KindOf(err) == errs.KindNotFound {
			return nil, err
		}
		return nil, errs.System(errs.CodeStorage, err)
	}
	rules, err := loadRules(db)
	if err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}
	achieved, err := loadAchieved(db, user.ID)
	if err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}

	var strongest int
	row := db.Model(&models.User{}).
		Select("COALESCE(MAX(team_size + 1), 0)").
		Where("sponsor_id = ?", user.ID).
		Row()
	if err := row.Scan(&strongest); err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}

	p := &Progress{
		Directs:      user.DirectReferralsCount,
		TeamSize:     user.TeamSize,
		StrongestLeg: strongest,
		OtherLegs:    user.TeamSize - strongest,
		Achieved:     []Achievement{},
	}
	for _, rule := range rules {
		if at, ok := achieved[rule.ID]; ok {
			p.Achieved = append(p.Achieved, Achievement{Code: RuleCode(rule), LevelName: rule.LevelName, AchievedAt: at})
			continue
		}
		if p.Next == nil {
			p.Next = &Target{
				RuleID:    rule.ID,
				Code:      RuleCode(rule),
				LevelName: rule.LevelName,
				DirectReq: rule.DirectReq,
				TeamReq:   rule.TeamReq,
				Reward:    rule.RewardAmount,
			}
		}
	}
	p.Completed = p.Next == nil
	return p, nil
}
