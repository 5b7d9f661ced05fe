package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferStatus is the outcome of a peer transfer
type TransferStatus string

const (
	TransferSucceeded TransferStatus = "success"
	TransferFailed    TransferStatus = "failed"
)

// TransferRecord is a completed peer-to-peer transfer. Its debit and earning
// rows carry the transfer id as reference and event id.
type TransferRecord struct {
	Record
	SenderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID uuid.UUID       `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status     TransferStatus  `gorm:"type:varchar(20);not null" json:"status"`
	Reason     string          `gorm:"type:varchar(64)" json:"reason,omitempty"`
}

// PayoutMethod is the rail a withdrawal is paid out on
type PayoutMethod string

const (
	PayoutCrypto  PayoutMethod = "crypto"
	PayoutBankUPI PayoutMethod = "bank_upi"
)

// Valid reports whether m is a supported payout method
func (m PayoutMethod) Valid() bool {
	return m == PayoutCrypto || m == PayoutBankUPI
}

// WithdrawalStatus is the administrative state of a payout request
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// WithdrawalRequest reserves funds at request time through DebitID.
type WithdrawalRequest struct {
	Base
	UserID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount       decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"amount"`
	Method       PayoutMethod     `gorm:"type:varchar(20);not null" json:"method"`
	Address      string           `gorm:"type:varchar(255);not null" json:"address"`
	Status       WithdrawalStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	DebitID      uuid.UUID        `gorm:"type:uuid;not null" json:"-"`
	RequestedAt  time.Time        `gorm:"not null" json:"requested_at"`
	ProcessedAt  *time.Time       `json:"processed_at"`
	RejectReason string           `gorm:"type:text" json:"reject_reason,omitempty"`
	ProcessedBy  *uuid.UUID       `gorm:"type:uuid" json:"-"`
}
