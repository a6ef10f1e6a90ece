// Package streak maintains per-user consecutive-day check-in streaks and points.
package streak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/repository"
)

// DefaultPointsPerCheckIn is awarded for every recorded check-in.
const DefaultPointsPerCheckIn = 10

// Repository is the streak storage used within a check-in transaction.
type Repository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.CheckInStreak, error)
	Upsert(ctx context.Context, streak *models.CheckInStreak) error
}

// Tracker applies check-ins to streak aggregates.
type Tracker struct {
	pointsPerCheckIn int
}

// NewTracker creates a tracker. A non-positive points value falls back to DefaultPointsPerCheckIn.
func NewTracker(pointsPerCheckIn int) *Tracker {
	if pointsPerCheckIn <= 0 {
		pointsPerCheckIn = DefaultPointsPerCheckIn
	}
	return &Tracker{pointsPerCheckIn: pointsPerCheckIn}
}

// Advance returns the state after a check-in on day. It does not mutate state.
// day must be a calendar day as produced by models.Day.
//
// A check-in on the day after the last one extends the streak, one on the same day
// leaves streak lengths unchanged, any other gap restarts the streak at 1. Totals
// and points always grow.
func (t *Tracker) Advance(state models.CheckInStreak, day time.Time) models.CheckInStreak {
	next := state
	last := state.LastCheckInDate

	switch {
	case last == nil:
		next.CurrentStreak = 1
	case sameDay(last.AddDate(0, 0, 1), day):
		next.CurrentStreak = state.CurrentStreak + 1
	case sameDay(*last, day):
		// already counted today
	default:
		next.CurrentStreak = 1
	}

	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}

	d := day
	next.LastCheckInDate = &d
	next.TotalCheckIns = state.TotalCheckIns + 1
	next.TotalPoints = state.TotalPoints + t.pointsPerCheckIn

	return next
}

// Record loads the user's streak (creating it lazily), advances it and persists it.
// Run it with a transaction-scoped repository.
func (t *Tracker) Record(ctx context.Context, repo Repository, userID uint, day time.Time) (*models.CheckInStreak, error) {
	current, err := repo.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load streak: %w", err)
		}
		current = &models.CheckInStreak{UserID: userID}
	}

	next := t.Advance(*current, day)
	if err := repo.Upsert(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to save streak: %w", err)
	}
	return &next, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
