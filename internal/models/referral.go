package models

import "github.com/google/uuid"

// ReferralPath is one row of the ancestor closure: AncestorID is Depth levels
// above DescendantID. Depth 1 is the sponsor edge. Self rows are not stored.
type ReferralPath struct {
	AncestorID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"ancestor_id"`
	DescendantID uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"descendant_id"`
	Depth        int       `gorm:"not null;index" json:"depth"`
}

// Level is a display rank governing users.current_level_id.
type Level struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	DirectReq   int    `gorm:"not null;default:0" json:"direct_req"`
	TeamSizeReq int    `gorm:"not null;default:0" json:"team_size_req"`
}
