package models

import "time"

// FundType names the pool a tour qualifier pays from
type FundType string

const (
	DomesticTourFund      FundType = "domestic_tour_fund"
	InternationalTourFund FundType = "international_tour_fund"
)

// TourQualifier is a time-boxed contest: partners qualify by bringing in
// TargetEarningReferrals activated directs between StartDate and EndDate.
type TourQualifier struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	Code                   string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"`
	Name                   string    `gorm:"type:varchar(255);not null" json:"name"`
	FundType               FundType  `gorm:"type:varchar(40);not null" json:"fund_type"`
	TargetEarningReferrals int       `gorm:"not null" json:"target_earning_referrals"`
	StartDate              time.Time `gorm:"not null" json:"start_date"`
	EndDate                time.Time `gorm:"not null" json:"end_date"`
	Status                 string    `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
}

// Active reports whether the qualifier is currently open for progress
func (t *TourQualifier) Active() bool {
	return t.Status == "active"
}
