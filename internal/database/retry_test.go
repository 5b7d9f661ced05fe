package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/partnerhub/engine/internal/database"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInTxRetriesConflicts(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)

	attempts := 0
	err := runner.InTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if attempts < 3 {
			return errs.Conflict("busy", "row contended")
		}
		return tx.Create(&models.Level{ID: 99, Name: "Test"}).Error
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	var count int64
	require.NoError(t, db.Model(&models.Level{}).Where("id = ?", 99).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInTxExhaustedRetriesAreSystemErrors(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)

	attempts := 0
	err := runner.InTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "40001"}
	})

	require.Error(t, err)
	assert.Equal(t, errs.KindSystem, errs.KindOf(err))
	assert.Equal(t, errs.CodeRetriesExhausted, errs.CodeOf(err))
	// one initial attempt plus MaxRetries
	assert.Equal(t, 4, attempts)
}

func TestInTxDoesNotRetryDomainErrors(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)

	attempts := 0
	err := runner.InTx(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if err := tx.Create(&models.Level{ID: 98, Name: "Rolled back"}).Error; err != nil {
			return err
		}
		return errs.Validation(errs.CodeInvalidAmount, "amount must be positive")
	})

	assert.Equal(t, 1, attempts)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	var count int64
	require.NoError(t, db.Model(&models.Level{}).Where("id = ?", 98).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInTxWrapsForeignErrors(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)

	err := runner.InTx(context.Background(), func(tx *gorm.DB) error {
		return errors.New("disk full")
	})

	assert.Equal(t, errs.KindSystem, errs.KindOf(err))
	assert.Equal(t, errs.CodeStorage, errs.CodeOf(err))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, database.IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, database.IsRetryable(&pgconn.PgError{Code: "23505", ConstraintName: "idx_users_referral_code"}))
	assert.False(t, database.IsRetryable(&pgconn.PgError{Code: "23505", ConstraintName: "users_pkey"}))
	assert.False(t, database.IsRetryable(errors.New("nope")))
}

func TestMigrationsSeedLadders(t *testing.T) {
	db := testutil.NewDB(t)

	var levels, rules int64
	require.NoError(t, db.Model(&models.Level{}).Count(&levels).Error)
	require.NoError(t, db.Model(&models.ExcellenceRule{}).Count(&rules).Error)
	assert.Equal(t, int64(6), levels)
	assert.Equal(t, int64(4), rules)
}
