package referral

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var lockingUpdate = clause.Locking{Strength: "UPDATE"}

// nextReferralCode hands out codes sequentially. Two concurrent signups can
// read the same MAX; the unique index rejects the loser and the transaction
// is retried.
func nextReferralCode(tx *gorm.DB) (int64, error) {
	var code int64
	row := tx.Model(&models.User{}).Select("COALESCE(MAX(referral_code), ?) + 1", FirstReferralCode-1).Row()
	if err := row.Scan(&code); err != nil {
		return 0, fmt.Errorf("error allocating referral code: %w", err)
	}
	return code, nil
}

// LoadAncestors returns the closure rows above userID ordered nearest first.
// maxDepth <= 0 means the whole upline.
func LoadAncestors(db *gorm.DB, userID uuid.UUID, maxDepth int) ([]models.ReferralPath, error) {
	query := db.Where("descendant_id = ?", userID)
	if maxDepth > 0 {
		query = query.Where("depth <= ?", maxDepth)
	}
	var paths []models.ReferralPath
	if err := query.Order("depth ASC").Find(&paths).Error; err != nil {
		return nil, fmt.Errorf("error loading upline: %w", err)
	}
	return paths, nil
}

// insertPaths writes the closure rows of a new leaf under sponsorID and
// returns its ancestors, nearest first.
func insertPaths(tx *gorm.DB, sponsorID, userID uuid.UUID) ([]uuid.UUID, error) {
	upline, err := LoadAncestors(tx, sponsorID, 0)
	if err != nil {
		return nil, err
	}

	paths := make([]models.ReferralPath, 0, len(upline)+1)
	ancestors := make([]uuid.UUID, 0, len(upline)+1)
	paths = append(paths, models.ReferralPath{AncestorID: sponsorID, DescendantID: userID, Depth: 1})
	ancestors = append(ancestors, sponsorID)
	for _, p := range upline {
		paths = append(paths, models.ReferralPath{AncestorID: p.AncestorID, DescendantID: userID, Depth: p.Depth + 1})
		ancestors = append(ancestors, p.AncestorID)
	}

	if err := tx.Create(&paths).Error; err != nil {
		return nil, fmt.Errorf("error writing upline paths: %w", err)
	}
	return ancestors, nil
}

// raiseLevels moves each user to the highest level (by id) whose direct and
// team requirements they meet. Counters only grow, and a level is never
// replaced by a lower one.
func raiseLevels(tx *gorm.DB, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	err := tx.Exec(`
		UPDATE users SET current_level_id = (
			SELECT MAX(l.id) FROM levels l
			WHERE l.direct_req <= users.direct_referrals_count AND l.team_size_req <= users.team_size
		)
		WHERE id IN ? AND EXISTS (
			SELECT 1 FROM levels l
			WHERE l.direct_req <= users.direct_referrals_count AND l.team_size_req <= users.team_size
			AND (users.current_level_id IS NULL OR l.id > users.current_level_id)
		)`, userIDs).Error
	if err != nil {
		return fmt.Errorf("error updating levels: %w", err)
	}
	return nil
}
