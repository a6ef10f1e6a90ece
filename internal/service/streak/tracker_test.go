package streak

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/repository"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func withLast(s models.CheckInStreak, last time.Time) models.CheckInStreak {
	s.LastCheckInDate = &last
	return s
}

func TestTracker_Advance(t *testing.T) {
	tracker := NewTracker(10)
	today := day(2026, 10, 18)

	tests := []struct {
		name            string
		state           models.CheckInStreak
		on              time.Time
		wantCurrent     int
		wantLongest     int
		wantTotal       int
		wantTotalPoints int
	}{
		{
			name:            "first check-in",
			state:           models.CheckInStreak{},
			wantCurrent:     1,
			wantLongest:     1,
			wantTotal:       1,
			wantTotalPoints: 10,
		},
		{
			name:            "consecutive day",
			state:           withLast(models.CheckInStreak{CurrentStreak: 4, LongestStreak: 4, TotalCheckIns: 4, TotalPoints: 40}, day(2026, 10, 17)),
			wantCurrent:     5,
			wantLongest:     5,
			wantTotal:       5,
			wantTotalPoints: 50,
		},
		{
			name:            "same day keeps streak",
			state:           withLast(models.CheckInStreak{CurrentStreak: 3, LongestStreak: 6, TotalCheckIns: 9, TotalPoints: 90}, today),
			wantCurrent:     3,
			wantLongest:     6,
			wantTotal:       10,
			wantTotalPoints: 100,
		},
		{
			name:            "gap resets streak",
			state:           withLast(models.CheckInStreak{CurrentStreak: 7, LongestStreak: 7, TotalCheckIns: 7, TotalPoints: 70}, day(2026, 10, 16)),
			wantCurrent:     1,
			wantLongest:     7,
			wantTotal:       8,
			wantTotalPoints: 80,
		},
		{
			name:            "last date in the future resets",
			state:           withLast(models.CheckInStreak{CurrentStreak: 2, LongestStreak: 2, TotalCheckIns: 2, TotalPoints: 20}, day(2026, 10, 20)),
			wantCurrent:     1,
			wantLongest:     2,
			wantTotal:       3,
			wantTotalPoints: 30,
		},
		{
			name:            "across month boundary",
			state:           withLast(models.CheckInStreak{CurrentStreak: 1, LongestStreak: 1, TotalCheckIns: 1, TotalPoints: 10}, day(2026, 9, 30)),
			on:              day(2026, 10, 1),
			wantCurrent:     2,
			wantLongest:     2,
			wantTotal:       2,
			wantTotalPoints: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := today
			if !tt.on.IsZero() {
				target = tt.on
			}

			got := tracker.Advance(tt.state, target)

			assert.Equal(t, tt.wantCurrent, got.CurrentStreak)
			assert.Equal(t, tt.wantLongest, got.LongestStreak)
			assert.Equal(t, tt.wantTotal, got.TotalCheckIns)
			assert.Equal(t, tt.wantTotalPoints, got.TotalPoints)
			require.NotNil(t, got.LastCheckInDate)
			assert.True(t, got.LastCheckInDate.Equal(target))
			assert.LessOrEqual(t, got.CurrentStreak, got.LongestStreak)
		})
	}
}

func TestTracker_AdvanceDoesNotMutateInput(t *testing.T) {
	last := day(2026, 10, 17)
	state := models.CheckInStreak{CurrentStreak: 1, LongestStreak: 1, TotalCheckIns: 1, TotalPoints: 10, LastCheckInDate: &last}

	_ = NewTracker(10).Advance(state, day(2026, 10, 18))

	assert.Equal(t, 1, state.CurrentStreak)
	assert.True(t, state.LastCheckInDate.Equal(last))
}

func TestTracker_FiveConsecutiveDays(t *testing.T) {
	tracker := NewTracker(0)
	state := models.CheckInStreak{}
	for i := 0; i < 5; i++ {
		state = tracker.Advance(state, day(2026, 10, 1+i))
	}

	assert.Equal(t, 5, state.CurrentStreak)
	assert.Equal(t, 5, state.LongestStreak)
	assert.Equal(t, 5, state.TotalCheckIns)
	assert.Equal(t, 5*DefaultPointsPerCheckIn, state.TotalPoints)
}

type memoryRepo struct {
	rows    map[uint]models.CheckInStreak
	saveErr error
}

func (m *memoryRepo) GetByUserID(ctx context.Context, userID uint) (*models.CheckInStreak, error) {
	s, ok := m.rows[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (m *memoryRepo) Upsert(ctx context.Context, s *models.CheckInStreak) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if s.ID == 0 {
		s.ID = uint(len(m.rows) + 1)
	}
	m.rows[s.UserID] = *s
	return nil
}

func TestTracker_Record(t *testing.T) {
	repo := &memoryRepo{rows: map[uint]models.CheckInStreak{}}
	tracker := NewTracker(10)
	ctx := context.Background()

	first, err := tracker.Record(ctx, repo, 42, day(2026, 10, 17))
	require.NoError(t, err)
	assert.Equal(t, 1, first.CurrentStreak)
	assert.Equal(t, uint(42), first.UserID)

	second, err := tracker.Record(ctx, repo, 42, day(2026, 10, 18))
	require.NoError(t, err)
	assert.Equal(t, 2, second.CurrentStreak)
	assert.Equal(t, 20, second.TotalPoints)
	assert.Equal(t, first.ID, second.ID)

	repo.saveErr = errors.New("disk full")
	_, err = tracker.Record(ctx, repo, 42, day(2026, 10, 19))
	assert.Error(t, err)
	assert.Equal(t, 2, repo.rows[42].CurrentStreak, "failed save must not change stored state")
}
