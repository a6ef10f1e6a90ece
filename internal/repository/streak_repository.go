package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/eventhub/checkin-service/internal/models"
)

// StreakRepository handles per-user streak aggregates.
type StreakRepository struct {
	db *DB
}

// NewStreakRepository creates a new streak repository.
func NewStreakRepository(db *DB) *StreakRepository {
	return &StreakRepository{db: db}
}

// GetByUserID retrieves a user's streak row, or ErrNotFound if the user never checked in.
func (r *StreakRepository) GetByUserID(ctx context.Context, userID uint) (*models.CheckInStreak, error) {
	var streak models.CheckInStreak
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&streak).Error; err != nil {
		return nil, wrapNotFound(err, "get streak for user %d", userID)
	}
	return &streak, nil
}

// Upsert inserts the streak row or overwrites the user's existing one.
func (r *StreakRepository) Upsert(ctx context.Context, streak *models.CheckInStreak) error {
	if streak.ID != 0 {
		if err := r.db.WithContext(ctx).Save(streak).Error; err != nil {
			return fmt.Errorf("failed to update streak for user %d: %w", streak.UserID, err)
		}
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"current_streak", "longest_streak", "last_check_in_date",
				"total_check_ins", "total_points", "updated_at",
			}),
		}).
		Create(streak).Error
	if err != nil {
		return fmt.Errorf("failed to create streak for user %d: %w", streak.UserID, err)
	}
	return nil
}

// ListAll returns every streak row in insertion order.
func (r *StreakRepository) ListAll(ctx context.Context) ([]models.CheckInStreak, error) {
	var streaks []models.CheckInStreak
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&streaks).Error; err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}
	return streaks, nil
}
