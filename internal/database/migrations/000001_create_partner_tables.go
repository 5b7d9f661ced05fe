package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/partnerhub/engine/internal/models"
	"gorm.io/gorm"
)

// createPartnerTables creates users, the referral closure and the level ladder
func createPartnerTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_partner_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.User{}, &models.ReferralPath{}, &models.Level{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.Level{}, &models.ReferralPath{}, &models.User{})
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createPartnerTables())
}
