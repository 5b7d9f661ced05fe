package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/partnerhub/engine/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultLevels is the display ladder seeded on a fresh database
var DefaultLevels = []models.Level{
	{ID: 1, Name: "Starter", DirectReq: 0, TeamSizeReq: 0},
	{ID: 2, Name: "Bronze", DirectReq: 3, TeamSizeReq: 10},
	{ID: 3, Name: "Silver", DirectReq: 5, TeamSizeReq: 25},
	{ID: 4, Name: "Gold", DirectReq: 10, TeamSizeReq: 100},
	{ID: 5, Name: "Platinum", DirectReq: 20, TeamSizeReq: 500},
	{ID: 6, Name: "Diamond", DirectReq: 50, TeamSizeReq: 2000},
}

// DefaultExcellenceRules is the milestone ladder seeded on a fresh database
var DefaultExcellenceRules = []models.ExcellenceRule{
	{ID: 1, LevelName: "Star", DirectReq: 5, TeamReq: 20, RewardAmount: decimal.NewFromInt(50)},
	{ID: 2, LevelName: "Senior Star", DirectReq: 10, TeamReq: 50, RewardAmount: decimal.NewFromInt(150)},
	{ID: 3, LevelName: "Team Leader", DirectReq: 15, TeamReq: 150, RewardAmount: decimal.NewFromInt(500)},
	{ID: 4, LevelName: "Director", DirectReq: 25, TeamReq: 500, RewardAmount: decimal.NewFromInt(1500)},
}

func createRankTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_rank_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&models.ExcellenceRule{}, &models.UserExcellenceStatus{}); err != nil {
				return err
			}
			levels := append([]models.Level(nil), DefaultLevels...)
			if err := tx.Create(&levels).Error; err != nil {
				return err
			}
			rules := append([]models.ExcellenceRule(nil), DefaultExcellenceRules...)
			if err := tx.Create(&rules).Error; err != nil {
				return err
			}
			// explicit ids leave the serial sequences behind
			if tx.Dialector.Name() == "postgres" {
				for _, table := range []string{"levels", "excellence_rules"} {
					if err := tx.Exec("SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), (SELECT MAX(id) FROM " + table + "))").Error; err != nil {
						return err
					}
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			if err := tx.Where("1 = 1").Delete(&models.Level{}).Error; err != nil {
				return err
			}
			return tx.Migrator().DropTable(&models.UserExcellenceStatus{}, &models.ExcellenceRule{})
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createRankTables())
}
