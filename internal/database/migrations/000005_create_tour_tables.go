package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/partnerhub/engine/internal/models"
	"gorm.io/gorm"
)

func createTourTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000005_create_tour_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.TourQualifier{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.TourQualifier{})
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createTourTables())
}
