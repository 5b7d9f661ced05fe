package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EarningType classifies credits to a receiver
type EarningType string

const (
	EarningDirect           EarningType = "direct"
	EarningTeam             EarningType = "team"
	EarningPassive          EarningType = "passive"
	EarningExcellence       EarningType = "excellence"
	EarningTopTen           EarningType = "top_ten"
	EarningAdminDeposit     EarningType = "admin_deposit"
	EarningTransferReceived EarningType = "transfer_received"
	EarningWithdrawalRefund EarningType = "withdrawal_refund"
)

// Valid reports whether t is a known earning type
func (t EarningType) Valid() bool {
	switch t {
	case EarningDirect, EarningTeam, EarningPassive, EarningExcellence, EarningTopTen,
		EarningAdminDeposit, EarningTransferReceived, EarningWithdrawalRefund:
		return true
	}
	return false
}

// Realized reports whether the type is commission income, the subset used
// for ranking and the top-ten pool.
func (t EarningType) Realized() bool {
	switch t {
	case EarningDirect, EarningTeam, EarningPassive, EarningExcellence, EarningTopTen:
		return true
	}
	return false
}

// Income reports whether the type counts toward a partner's income totals.
// Money moved between partners and refunds of their own payouts do not.
func (t EarningType) Income() bool {
	return t.Realized() || t == EarningAdminDeposit
}

// RealizedEarningTypes lists the commission types
func RealizedEarningTypes() []EarningType {
	return []EarningType{EarningDirect, EarningTeam, EarningPassive, EarningExcellence, EarningTopTen}
}

// IncomeEarningTypes lists the types summed into the windowed income buckets
func IncomeEarningTypes() []EarningType {
	return append(RealizedEarningTypes(), EarningAdminDeposit)
}

// DebitType classifies debits from a payer
type DebitType string

const (
	DebitTransferSent    DebitType = "transfer_sent"
	DebitWithdrawal      DebitType = "withdrawal"
	DebitActivationSpend DebitType = "activation_spend"
)

// Valid reports whether t is a known debit type
func (t DebitType) Valid() bool {
	switch t {
	case DebitTransferSent, DebitWithdrawal, DebitActivationSpend:
		return true
	}
	return false
}

// EarningRecord is an immutable credit. The sum of a user's earnings minus
// the sum of their debits is their balance.
type EarningRecord struct {
	Record
	ReceiverID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"receiver_id"`
	SourceUserID *uuid.UUID      `gorm:"type:uuid;index" json:"source_user_id"`
	Type         EarningType     `gorm:"type:varchar(32);not null;index" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	EventID      string          `gorm:"type:varchar(128);index" json:"event_id,omitempty"`
	Note         string          `gorm:"type:text" json:"note,omitempty"`
}

// DebitRecord is an immutable debit
type DebitRecord struct {
	Record
	PayerID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"payer_id"`
	Type      DebitType       `gorm:"type:varchar(32);not null;index" json:"type"`
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status    string          `gorm:"type:varchar(20);not null;default:'posted'" json:"status"`
	Reference string          `gorm:"type:varchar(128);index" json:"reference,omitempty"`
}

// CommissionEvent marks a business event whose commission batch has been
// applied. Its primary key makes replays no-ops.
type CommissionEvent struct {
	ID           string          `gorm:"type:varchar(128);primaryKey" json:"id"`
	Type         string          `gorm:"type:varchar(32);not null;index" json:"type"`
	SourceUserID uuid.UUID       `gorm:"type:uuid;not null;index" json:"source_user_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	RecordCount  int             `gorm:"not null" json:"record_count"`
	Total        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}
