package wallet

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/partnerhub/engine/internal/utils"
	"github.com/shopspring/decimal"
)

// EntryKind labels a wallet history row
type EntryKind string

const (
	EntrySent     EntryKind = "sent"
	EntryReceived EntryKind = "received"
	EntryPayout   EntryKind = "payout"
)

// HistoryEntry is one transfer or withdrawal seen from the partner's side
type HistoryEntry struct {
	ID               uuid.UUID       `json:"id"`
	Kind             EntryKind       `json:"kind"`
	Amount           decimal.Decimal `json:"amount"`
	Status           string          `json:"status"`
	CounterpartyName string          `json:"counterparty_name,omitempty"`
	CounterpartyCode int64           `json:"counterparty_code,omitempty"`
	Address          string          `json:"address,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// History merges the partner's transfers and withdrawals, newest first
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > ledger.MaxHistory {
		limit = ledger.MaxHistory
	}
	db := s.runner.DB(ctx)

	var transfers []models.TransferRecord
	if err := db.Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Order("created_at DESC").Limit(limit).Find(&transfers).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}
	var withdrawals []models.WithdrawalRequest
	if err := db.Where("user_id = ?", userID).
		Order("requested_at DESC").Limit(limit).Find(&withdrawals).Error; err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}

	others := map[uuid.UUID]models.User{}
	var otherIDs []uuid.UUID
	for _, t := range transfers {
		other := t.ReceiverID
		if other == userID {
			other = t.SenderID
		}
		otherIDs = append(otherIDs, other)
	}
	if len(otherIDs) > 0 {
		var users []models.User
		if err := db.Select("id", "name", "referral_code").Where("id IN ?", otherIDs).Find(&users).Error; err != nil {
			return nil, errs.System(errs.CodeStorage, err)
		}
		for _, u := range users {
			others[u.ID] = u
		}
	}

	entries := make([]HistoryEntry, 0, len(transfers)+len(withdrawals))
	for _, t := range transfers {
		entry := HistoryEntry{
			ID:        t.ID,
			Kind:      EntrySent,
			Amount:    t.Amount,
			Status:    string(t.Status),
			CreatedAt: t.CreatedAt,
		}
		other := t.ReceiverID
		if t.ReceiverID == userID {
			entry.Kind = EntryReceived
			other = t.SenderID
		}
		if u, ok := others[other]; ok {
			entry.CounterpartyName = u.Name
			entry.CounterpartyCode = u.ReferralCode
		}
		entries = append(entries, entry)
	}
	for _, w := range withdrawals {
		entries = append(entries, HistoryEntry{
			ID:        w.ID,
			Kind:      EntryPayout,
			Amount:    w.Amount,
			Status:    string(w.Status),
			Address:   utils.MaskAddress(w.Address),
			CreatedAt: w.RequestedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
