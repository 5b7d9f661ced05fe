// Package leaderboard serves the realized-income ranking from a snapshot
// cached in Redis. It never reads inside a money-moving transaction.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/database"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/monitoring"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const snapshotKey = "leaderboard:real_income"

// Entry is one ranked partner
type Entry struct {
	Rank       int             `json:"rank"`
	UserID     uuid.UUID       `json:"user_id"`
	Name       string          `json:"name"`
	RealIncome decimal.Decimal `json:"real_income"`
	TeamSize   int             `json:"team_size"`
}

// Snapshot is a ranking computed at GeneratedAt
type Snapshot struct {
	GeneratedAt time.Time `json:"generated_at"`
	Entries     []Entry   `json:"entries"`
}

// Board is what callers see: the top entries and how stale they may be
type Board struct {
	GeneratedAt time.Time `json:"generated_at"`
	StaleAfter  time.Time `json:"stale_after"`
	Entries     []Entry   `json:"entries"`
}

// Service maintains the leaderboard snapshot
type Service struct {
	runner *database.Runner
	redis  *redis.Client
	cfg    config.LeaderboardConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a leaderboard service. A nil client disables caching
// and every read ranks from the ledger.
func NewService(runner *database.Runner, client *redis.Client, cfg config.LeaderboardConfig, logger *zap.Logger) *Service {
	return &Service{
		runner: runner,
		redis:  client,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Refresh recomputes the snapshot from the ledger and stores it
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	earners, err := ledger.RankByRealizedIncome(s.runner.DB(ctx), s.cfg.SnapshotSize)
	if err != nil {
		return nil, errs.System(errs.CodeStorage, err)
	}
	monitoring.LeaderboardRefreshSeconds.Observe(time.Since(start).Seconds())

	snap := &Snapshot{GeneratedAt: s.now(), Entries: make([]Entry, 0, len(earners))}
	for i, e := range earners {
		snap.Entries = append(snap.Entries, Entry{
			Rank:       i + 1,
			UserID:     e.UserID,
			Name:       e.Name,
			RealIncome: e.Income,
			TeamSize:   e.TeamSize,
		})
	}

	if s.redis != nil {
		data, err := json.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("error encoding leaderboard: %w", err)
		}
		// keep serving the old snapshot for a while if refreshes stop
		if err := s.redis.Set(ctx, snapshotKey, data, 10*s.cfg.RefreshInterval).Err(); err != nil {
			s.logger.Warn("failed to cache leaderboard", zap.Error(err))
		}
	}
	s.logger.Debug("leaderboard refreshed", zap.Int("entries", len(snap.Entries)))
	return snap, nil
}

func (s *Service) cached(ctx context.Context) (*Snapshot, error) {
	if s.redis == nil {
		return nil, nil
	}
	data, err := s.redis.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Rank returns the top limit partners by realized income. A snapshot older
// than the refresh interval is recomputed first.
func (s *Service) Rank(ctx context.Context, limit int) (*Board, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit > s.cfg.SnapshotSize {
		limit = s.cfg.SnapshotSize
	}

	snap, err := s.cached(ctx)
	if err != nil {
		s.logger.Warn("leaderboard cache unavailable", zap.Error(err))
	}
	if snap == nil || s.now().Sub(snap.GeneratedAt) > s.cfg.RefreshInterval {
		if snap, err = s.Refresh(ctx); err != nil {
			return nil, err
		}
	}

	entries := snap.Entries
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return &Board{
		GeneratedAt: snap.GeneratedAt,
		StaleAfter:  snap.GeneratedAt.Add(s.cfg.RefreshInterval),
		Entries:     entries,
	}, nil
}
