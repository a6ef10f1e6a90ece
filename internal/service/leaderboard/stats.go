package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventhub/checkin-service/internal/repository"
)

// UserStats is a user's attendance snapshot.
type UserStats struct {
	UserID          uint       `json:"user_id"`
	Name            string     `json:"name"`
	TotalCheckIns   int        `json:"total_check_ins"`
	CurrentStreak   int        `json:"current_streak"`
	LongestStreak   int        `json:"longest_streak"`
	TotalPoints     int        `json:"total_points"`
	LastCheckInDate *time.Time `json:"last_check_in_date"`
	BadgeCount      int        `json:"badge_count"`
	Rank            int        `json:"rank"`
}

// GetUserStats returns the user's streak and points. Users who never checked in get zeros.
func (s *Service) GetUserStats(ctx context.Context, userID uint) (*UserStats, error) {
	stats := &UserStats{UserID: userID}

	user, err := s.userRepo.GetByID(ctx, userID)
	switch {
	case err == nil:
		stats.Name = user.Name
	case errors.Is(err, repository.ErrNotFound):
		s.log.Debug().Uint("user_id", userID).Msg("Stats requested for unknown user")
	default:
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	streak, err := s.streakRepo.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		stats.TotalCheckIns = streak.TotalCheckIns
		stats.CurrentStreak = streak.CurrentStreak
		stats.LongestStreak = streak.LongestStreak
		stats.TotalPoints = streak.TotalPoints
		stats.LastCheckInDate = streak.LastCheckInDate
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to get streak: %w", err)
	}

	count, err := s.badgeRepo.GetUserBadgeCount(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get badge count")
	} else {
		stats.BadgeCount = int(count)
	}

	if stats.TotalCheckIns > 0 {
		rank, err := s.GetUserRank(ctx, userID)
		if err != nil {
			s.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to get rank")
		} else {
			stats.Rank = rank
		}
	}

	return stats, nil
}
