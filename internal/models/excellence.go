package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExcellenceRule is one rank of the milestone ladder. Rules unlock in ID order.
type ExcellenceRule struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	LevelName    string          `gorm:"type:varchar(100);not null" json:"level_name"`
	DirectReq    int             `gorm:"not null" json:"direct_req"`
	TeamReq      int             `gorm:"not null" json:"team_req"`
	RewardAmount decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"reward_amount"`
}

// UserExcellenceStatus records one unlocked milestone
type UserExcellenceStatus struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_excellence_level" json:"user_id"`
	LevelID    uint      `gorm:"not null;uniqueIndex:idx_user_excellence_level" json:"level_id"`
	AchievedAt time.Time `gorm:"not null" json:"achieved_at"`
}

// TableName keeps the singular table name the rest of the schema uses
func (UserExcellenceStatus) TableName() string {
	return "user_excellence_status"
}

func (s *UserExcellenceStatus) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
