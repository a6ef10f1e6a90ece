package checkin

import (
	"context"
	"time"

	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/repository"
	"github.com/eventhub/checkin-service/internal/service/badges"
	"github.com/eventhub/checkin-service/internal/service/streak"
)

// RegistrationFinder reads registrations.
type RegistrationFinder interface {
	FindByUserAndEvent(ctx context.Context, userID, eventID uint) (*models.Registration, error)
	GetByID(ctx context.Context, id uint) (*models.Registration, error)
}

// EventFinder reads events.
type EventFinder interface {
	GetByID(ctx context.Context, id uint) (*models.Event, error)
}

// CheckInHistory reads committed check-ins.
type CheckInHistory interface {
	FindCheckInsSince(ctx context.Context, userID uint, since time.Time) ([]models.CheckIn, error)
	FindLatestForUser(ctx context.Context, userID uint) (*models.CheckIn, error)
	FindAllForUser(ctx context.Context, userID uint) ([]models.CheckIn, error)
	ListByEvent(ctx context.Context, eventID uint) ([]models.CheckIn, error)
	ListFlagged(ctx context.Context) ([]models.CheckIn, error)
}

// CheckInWriter inserts check-in records, reporting false on a same-day conflict.
type CheckInWriter interface {
	Create(ctx context.Context, checkIn *models.CheckIn) (bool, error)
}

// Repositories are the transaction-scoped writers of one check-in.
type Repositories struct {
	CheckIns CheckInWriter
	Streaks  streak.Repository
	Badges   badges.AwardRepository
}

// UnitOfWork runs fn atomically: every write made through the given
// repositories commits together or not at all.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}

type gormUnitOfWork struct {
	db *repository.DB
}

// NewUnitOfWork returns a UnitOfWork backed by a database transaction.
func NewUnitOfWork(db *repository.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	return u.db.Transaction(ctx, func(tx *repository.DB) error {
		return fn(Repositories{
			CheckIns: repository.NewCheckInRepository(tx),
			Streaks:  repository.NewStreakRepository(tx),
			Badges:   repository.NewBadgeRepository(tx),
		})
	})
}
