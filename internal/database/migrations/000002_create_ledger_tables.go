package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/partnerhub/engine/internal/models"
	"gorm.io/gorm"
)

func createLedgerTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_ledger_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.EarningRecord{}, &models.DebitRecord{}, &models.CommissionEvent{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.CommissionEvent{}, &models.DebitRecord{}, &models.EarningRecord{})
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createLedgerTables())
}
