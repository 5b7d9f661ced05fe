package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/partnerhub/engine/internal/models"
	"gorm.io/gorm"
)

func createWalletTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_wallet_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.TransferRecord{}, &models.WithdrawalRequest{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.WithdrawalRequest{}, &models.TransferRecord{})
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createWalletTables())
}
