// Package app assembles the engine's services from configuration.
package app

import (
	"github.com/go-redis/redis/v8"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/database"
	"github.com/partnerhub/engine/internal/handlers"
	"github.com/partnerhub/engine/internal/queue"
	"github.com/partnerhub/engine/internal/services/activation"
	"github.com/partnerhub/engine/internal/services/commission"
	"github.com/partnerhub/engine/internal/services/excellence"
	"github.com/partnerhub/engine/internal/services/leaderboard"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/partnerhub/engine/internal/services/tour"
	"github.com/partnerhub/engine/internal/services/wallet"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine is the wired set of services
type Engine struct {
	Runner   *database.Runner
	PINs     *wallet.PINLimiter
	Services handlers.Services
}

// New wires every service. q and client may be nil: commission events are
// then applied inline and the leaderboard is computed without a cache.
func New(cfg *config.Config, db *gorm.DB, client *redis.Client, q queue.Enqueuer, logger *zap.Logger) *Engine {
	runner := database.NewRunner(db, cfg.Database, logger)
	pins := wallet.NewPINLimiter(cfg.Security.PINAttemptsPerMinute, cfg.Security.PINBurst)

	referrals := referral.NewService(runner, q, logger)
	commissions := commission.NewService(runner, cfg.Commission, logger)

	return &Engine{
		Runner: runner,
		PINs:   pins,
		Services: handlers.Services{
			Referral:    referrals,
			Ledger:      ledger.NewService(runner, logger),
			Commission:  commissions,
			Activation:  activation.NewService(runner, cfg.Activation.Cost, q, commissions, logger),
			Wallet:      wallet.NewService(runner, pins, logger),
			Excellence:  excellence.NewService(runner, logger),
			Leaderboard: leaderboard.NewService(runner, client, cfg.Leaderboard, logger),
			Tour:        tour.NewService(runner, referrals, logger),
		},
	}
}
