package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eventhub/checkin-service/internal/models"
)

// CheckInRepository handles check-in record persistence.
type CheckInRepository struct {
	db *DB
}

// NewCheckInRepository creates a new check-in repository.
func NewCheckInRepository(db *DB) *CheckInRepository {
	return &CheckInRepository{db: db}
}

// Create inserts a check-in record. It reports false, without error, when a record
// for the same (user, event, day) already exists.
func (r *CheckInRepository) Create(ctx context.Context, checkIn *models.CheckIn) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(checkIn)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create check-in: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindCheckInsSince returns the user's check-ins created at or after since, oldest first.
func (r *CheckInRepository) FindCheckInsSince(ctx context.Context, userID uint, since time.Time) ([]models.CheckIn, error) {
	var checkIns []models.CheckIn
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Order("created_at ASC, id ASC").
		Find(&checkIns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find check-ins for user %d: %w", userID, err)
	}
	return checkIns, nil
}

// FindLatestForUser returns the user's most recent check-in, or ErrNotFound.
func (r *CheckInRepository) FindLatestForUser(ctx context.Context, userID uint) (*models.CheckIn, error) {
	var checkIn models.CheckIn
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&checkIn).Error
	if err != nil {
		return nil, wrapNotFound(err, "get latest check-in for user %d", userID)
	}
	return &checkIn, nil
}

// FindAllForUser returns every check-in of a user, most recent first.
func (r *CheckInRepository) FindAllForUser(ctx context.Context, userID uint) ([]models.CheckIn, error) {
	var checkIns []models.CheckIn
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&checkIns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins for user %d: %w", userID, err)
	}
	return checkIns, nil
}

// ListByEvent returns all check-ins of an event in chronological order.
func (r *CheckInRepository) ListByEvent(ctx context.Context, eventID uint) ([]models.CheckIn, error) {
	var checkIns []models.CheckIn
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC, id ASC").
		Find(&checkIns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list check-ins for event %d: %w", eventID, err)
	}
	return checkIns, nil
}

// ListFlagged returns flagged check-ins, highest fraud score first.
func (r *CheckInRepository) ListFlagged(ctx context.Context) ([]models.CheckIn, error) {
	var checkIns []models.CheckIn
	err := r.db.WithContext(ctx).
		Where("is_flagged = ?", true).
		Order("fraud_score DESC, created_at DESC, id DESC").
		Find(&checkIns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged check-ins: %w", err)
	}
	return checkIns, nil
}

// ListFlaggedSince returns at most limit flagged check-ins created at or after since,
// highest fraud score first.
func (r *CheckInRepository) ListFlaggedSince(ctx context.Context, since time.Time, limit int) ([]models.CheckIn, error) {
	var checkIns []models.CheckIn
	err := r.db.WithContext(ctx).
		Where("is_flagged = ? AND created_at >= ?", true, since.UTC()).
		Order("fraud_score DESC, created_at DESC, id DESC").
		Limit(limit).
		Find(&checkIns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged check-ins since %s: %w", since.Format(time.RFC3339), err)
	}
	return checkIns, nil
}

// CheckInCounts summarizes check-in activity over a period.
type CheckInCounts struct {
	Total   int64
	Flagged int64
}

// CountSince counts check-ins, and the flagged subset, created at or after since.
func (r *CheckInRepository) CountSince(ctx context.Context, since time.Time) (*CheckInCounts, error) {
	var counts CheckInCounts

	base := r.db.WithContext(ctx).Model(&models.CheckIn{}).Where("created_at >= ?", since.UTC())
	if err := base.Session(&gorm.Session{}).Count(&counts.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count check-ins: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("is_flagged = ?", true).Count(&counts.Flagged).Error; err != nil {
		return nil, fmt.Errorf("failed to count flagged check-ins: %w", err)
	}
	return &counts, nil
}
