package repository

import (
	"context"
	"fmt"

	"github.com/eventhub/checkin-service/internal/models"
)

// RegistrationRepository reads event registrations.
type RegistrationRepository struct {
	db *DB
}

// NewRegistrationRepository creates a new registration repository.
func NewRegistrationRepository(db *DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create creates a new registration.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	if err := r.db.WithContext(ctx).Create(registration).Error; err != nil {
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

// GetByID retrieves a registration by ID.
func (r *RegistrationRepository) GetByID(ctx context.Context, id uint) (*models.Registration, error) {
	var registration models.Registration
	if err := r.db.WithContext(ctx).First(&registration, id).Error; err != nil {
		return nil, wrapNotFound(err, "get registration by id %d", id)
	}
	return &registration, nil
}

// FindByUserAndEvent retrieves the registration of a user for an event.
func (r *RegistrationRepository) FindByUserAndEvent(ctx context.Context, userID, eventID uint) (*models.Registration, error) {
	var registration models.Registration
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ?", userID, eventID).
		First(&registration).Error
	if err != nil {
		return nil, wrapNotFound(err, "get registration for user %d and event %d", userID, eventID)
	}
	return &registration, nil
}
