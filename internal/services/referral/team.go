package referral

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
)

// LevelInfo describes one rung of the level ladder
type LevelInfo struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	DirectReq   int    `json:"direct_req"`
	TeamSizeReq int    `json:"team_size_req"`
}

// DirectReferral is a partner sponsored directly by the viewer
type DirectReferral struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Mobile       string    `json:"mobile"`
	ReferralCode int64     `json:"referral_code"`
	IsActive     bool      `json:"is_active"`
	JoiningDate  time.Time `json:"joining_date"`
	TeamSize     int       `json:"team_size"`
	LevelName    string    `json:"level_name"`
}

// TeamOverview is the viewer's first line and level standing
type TeamOverview struct {
	Directs       []DirectReferral `json:"directs"`
	DirectCount   int              `json:"direct_count"`
	ActiveDirects int              `json:"active_directs"`
	TeamSize      int              `json:"team_size"`
	CurrentLevel  *LevelInfo       `json:"current_level"`
	NextLevel     *LevelInfo       `json:"next_level"`
}

// TeamOverview lists the direct referrals of userID with level progress
func (s *Service) TeamOverview(ctx context.Context, userID uuid.UUID) (*TeamOverview, error) {
	db := s.runner.DB(ctx)

	user, err := FindUser(db, userID)
	if err != nil {
		return nil, wrapStorage(err)
	}

	var levels []models.Level
	if err := db.Order("id ASC").Find(&levels).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}
	byID := make(map[uint]models.Level, len(levels))
	for _, l := range levels {
		byID[l.ID] = l
	}

	var directs []models.User
	if err := db.Where("sponsor_id = ?", userID).Order("joining_date DESC").Find(&directs).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}

	overview := &TeamOverview{
		Directs:     make([]DirectReferral, 0, len(directs)),
		DirectCount: user.DirectReferralsCount,
		TeamSize:    user.TeamSize,
	}
	for _, d := range directs {
		entry := DirectReferral{
			ID:           d.ID,
			Name:         d.Name,
			Mobile:       d.Mobile,
			ReferralCode: d.ReferralCode,
			IsActive:     d.IsActive,
			JoiningDate:  d.JoiningDate,
			TeamSize:     d.TeamSize,
		}
		if d.CurrentLevelID != nil {
			entry.LevelName = byID[*d.CurrentLevelID].Name
		}
		if d.IsActive {
			overview.ActiveDirects++
		}
		overview.Directs = append(overview.Directs, entry)
	}

	for _, l := range levels {
		if user.CurrentLevelID != nil && l.ID == *user.CurrentLevelID {
			info := levelInfo(l)
			overview.CurrentLevel = &info
			continue
		}
		if overview.NextLevel == nil && (user.CurrentLevelID == nil || l.ID > *user.CurrentLevelID) {
			info := levelInfo(l)
			overview.NextLevel = &info
		}
	}
	return overview, nil
}

func levelInfo(l models.Level) LevelInfo {
	return LevelInfo{ID: l.ID, Name: l.Name, DirectReq: l.DirectReq, TeamSizeReq: l.TeamSizeReq}
}

// wrapStorage passes *errs.Error through and wraps anything else as a
// storage failure.
func wrapStorage(err error) error {
	if _, ok := errs.As(err); ok {
		return err
	}
	return errs.System(errs.CodeStorage, err)
}
