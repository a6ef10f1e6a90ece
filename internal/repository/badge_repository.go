package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/eventhub/checkin-service/internal/models"
)

// BadgeRepository handles badge award persistence.
type BadgeRepository struct {
	db *DB
}

// NewBadgeRepository creates a new badge repository.
func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// Award inserts a badge for a user. It reports false, without error, when the user
// already holds a badge of that kind.
func (r *BadgeRepository) Award(ctx context.Context, badge *models.Badge) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(badge)
	if result.Error != nil {
		return false, fmt.Errorf("failed to award badge %s to user %d: %w", badge.BadgeType, badge.UserID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// HasBadge checks if a user holds a badge kind.
func (r *BadgeRepository) HasBadge(ctx context.Context, userID uint, badgeType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Badge{}).
		Where("user_id = ? AND badge_type = ?", userID, badgeType).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check badge %s for user %d: %w", badgeType, userID, err)
	}
	return count > 0, nil
}

// GetUserBadges retrieves all badges earned by a user, most recent first.
func (r *BadgeRepository) GetUserBadges(ctx context.Context, userID uint) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at DESC, id DESC").
		Find(&badges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get badges for user %d: %w", userID, err)
	}
	return badges, nil
}

// GetUserBadgeCount returns the total number of badges a user has earned.
func (r *BadgeRepository) GetUserBadgeCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Badge{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count badges for user %d: %w", userID, err)
	}
	return count, nil
}

// CountByUsers returns badge counts keyed by user ID. Users without badges are absent.
func (r *BadgeRepository) CountByUsers(ctx context.Context, userIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		UserID uint
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.Badge{}).
		Select("user_id, COUNT(*) AS count").
		Where("user_id IN ?", userIDs).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count badges by user: %w", err)
	}
	for _, row := range rows {
		counts[row.UserID] = row.Count
	}
	return counts, nil
}

// GetHolderCounts returns the number of holders per badge kind.
func (r *BadgeRepository) GetHolderCounts(ctx context.Context) ([]models.BadgeHolderCount, error) {
	var rows []models.BadgeHolderCount
	err := r.db.WithContext(ctx).Model(&models.Badge{}).
		Select("badge_type, COUNT(*) AS holders").
		Group("badge_type").
		Order("badge_type ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count badge holders: %w", err)
	}
	return rows, nil
}
