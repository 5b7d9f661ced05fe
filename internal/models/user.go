package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a partner node in the sponsor forest. SponsorID is written once at
// creation; the counters are maintained by the referral store only.
type User struct {
	Base
	ReferralCode         int64      `gorm:"uniqueIndex;not null" json:"referral_code"`
	SponsorID            *uuid.UUID `gorm:"type:uuid;index" json:"sponsor_id"`
	Name                 string     `gorm:"type:varchar(255);not null" json:"name"`
	Email                string     `gorm:"type:varchar(255);index" json:"email"`
	Mobile               string     `gorm:"type:varchar(20)" json:"mobile"`
	UPIID                string     `gorm:"column:upi_id;type:varchar(100)" json:"upi_id"`
	WalletAddress        string     `gorm:"type:varchar(100)" json:"wallet_address"`
	TPINHash             string     `gorm:"column:tpin_hash;type:varchar(255)" json:"-"`
	IsActive             bool       `gorm:"not null;default:false;index" json:"is_active"`
	ActivatedAt          *time.Time `gorm:"index" json:"activated_at"`
	SelfFunded           bool       `gorm:"not null;default:false" json:"-"` // activated from own balance
	CurrentLevelID       *uint      `json:"current_level_id"`
	DirectReferralsCount int        `gorm:"not null;default:0" json:"direct_referrals_count"`
	TeamSize             int        `gorm:"not null;default:0" json:"team_size"`
	JoiningDate          time.Time  `gorm:"not null" json:"joining_date"`
}

// IsRoot reports whether the user is the sponsor-less root account.
func (u *User) IsRoot() bool {
	return u.SponsorID == nil
}

// HasPIN reports whether a transfer PIN has been set.
func (u *User) HasPIN() bool {
	return u.TPINHash != ""
}
