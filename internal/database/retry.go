package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/monitoring"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Postgres error codes treated as transient contention
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// retryableConstraints are unique indexes whose violation means a concurrent
// writer took the value first, so running the transaction again succeeds.
var retryableConstraints = map[string]bool{
	"idx_users_referral_code": true,
}

// Runner executes transactional units of work, retrying on write conflicts.
type Runner struct {
	db         *gorm.DB
	txOptions  *sql.TxOptions
	maxRetries uint64
	logger     *zap.Logger
}

// NewRunner creates a Runner from database configuration
func NewRunner(db *gorm.DB, cfg config.DatabaseConfig, logger *zap.Logger) *Runner {
	r := &Runner{
		db:         db,
		maxRetries: uint64(cfg.MaxRetries),
		logger:     logger,
	}
	if cfg.Serializable {
		r.txOptions = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return r
}

// DB returns the handle for reads outside a transaction
func (r *Runner) DB(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// InTx runs fn inside a transaction. Serialization failures, deadlocks and
// Conflict errors returned by fn are retried with exponential backoff;
// other errors abort immediately. Errors that are not already *errs.Error
// come back as SystemError.
func (r *Runner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		if r.txOptions != nil {
			err = r.db.WithContext(ctx).Transaction(fn, r.txOptions)
		} else {
			err = r.db.WithContext(ctx).Transaction(fn)
		}
		if err == nil {
			return nil
		}
		if IsRetryable(err) && ctx.Err() == nil {
			monitoring.TxConflictRetries.Inc()
			r.logger.Debug("retrying transaction after conflict", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, r.maxRetries), ctx))
	if err == nil {
		return nil
	}
	return classify(ctx, err)
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errs.System(errs.CodeTimeout, err)
	}
	if IsRetryable(err) {
		return errs.System(errs.CodeRetriesExhausted, err)
	}
	if _, ok := errs.As(err); ok {
		return err
	}
	return errs.System(errs.CodeStorage, err)
}

// IsRetryable reports whether err is transient write contention
func IsRetryable(err error) bool {
	if errs.KindOf(err) == errs.KindConflict {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return true
		case pgUniqueViolation:
			return retryableConstraints[pgErr.ConstraintName]
		}
	}
	return false
}
