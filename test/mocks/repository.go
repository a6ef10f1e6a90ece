package mocks

import (
	"context"

	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/repository"
)

// MockRegistrationRepository is a simple mock for registration repository
type MockRegistrationRepository struct {
	FindByUserAndEventFunc func(ctx context.Context, userID, eventID uint) (*models.Registration, error)
	GetByIDFunc            func(ctx context.Context, id uint) (*models.Registration, error)
}

func (m *MockRegistrationRepository) FindByUserAndEvent(ctx context.Context, userID, eventID uint) (*models.Registration, error) {
	if m.FindByUserAndEventFunc != nil {
		return m.FindByUserAndEventFunc(ctx, userID, eventID)
	}
	return nil, repository.ErrNotFound
}

func (m *MockRegistrationRepository) GetByID(ctx context.Context, id uint) (*models.Registration, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

// MockEventRepository is a simple mock for event repository
type MockEventRepository struct {
	GetByIDFunc func(ctx context.Context, id uint) (*models.Event, error)
}

func (m *MockEventRepository) GetByID(ctx context.Context, id uint) (*models.Event, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}
