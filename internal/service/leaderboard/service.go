// Package leaderboard provides point rankings and per-user statistics.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/eventhub/checkin-service/internal/cache"
	prommetrics "github.com/eventhub/checkin-service/internal/metrics"
	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/repository"
	"github.com/eventhub/checkin-service/pkg/logger"
)

const (
	// CacheKey holds the serialized full ranking.
	CacheKey = "leaderboard:points"

	// MaxEntries caps every ranking.
	MaxEntries = 100

	defaultCacheTTL = 5 * time.Minute
)

// StreakRepository interface for streak read operations.
type StreakRepository interface {
	GetByUserID(ctx context.Context, userID uint) (*models.CheckInStreak, error)
	ListAll(ctx context.Context) ([]models.CheckInStreak, error)
}

// BadgeRepository interface for badge counts.
type BadgeRepository interface {
	GetUserBadgeCount(ctx context.Context, userID uint) (int64, error)
	CountByUsers(ctx context.Context, userIDs []uint) (map[uint]int64, error)
}

// UserRepository interface for user operations.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
}

// Entry represents a single entry in a leaderboard.
type Entry struct {
	UserID        uint   `json:"user_id"`
	Name          string `json:"name"`
	TotalPoints   int    `json:"total_points"`
	TotalCheckIns int    `json:"total_check_ins"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	BadgeCount    int    `json:"badge_count"`
	Rank          int    `json:"rank"`
}

// Service handles leaderboard generation and user statistics.
type Service struct {
	streakRepo StreakRepository
	badgeRepo  BadgeRepository
	userRepo   UserRepository
	cache      cache.Cache
	limit      int
	ttl        time.Duration
	log        *logger.Logger
}

// NewService creates a new leaderboard service with concrete repository types.
func NewService(
	streakRepo *repository.StreakRepository,
	badgeRepo *repository.BadgeRepository,
	userRepo *repository.UserRepository,
	c cache.Cache,
	limit int,
	ttl time.Duration,
	log *logger.Logger,
) *Service {
	return NewServiceWithInterfaces(streakRepo, badgeRepo, userRepo, c, limit, ttl, log)
}

// NewServiceWithInterfaces creates a new leaderboard service with interface dependencies (useful for testing).
// A nil cache disables caching.
func NewServiceWithInterfaces(
	streakRepo StreakRepository,
	badgeRepo BadgeRepository,
	userRepo UserRepository,
	c cache.Cache,
	limit int,
	ttl time.Duration,
	log *logger.Logger,
) *Service {
	if limit <= 0 || limit > MaxEntries {
		limit = MaxEntries
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Service{
		streakRepo: streakRepo,
		badgeRepo:  badgeRepo,
		userRepo:   userRepo,
		cache:      c,
		limit:      limit,
		ttl:        ttl,
		log:        log,
	}
}

// GetLeaderboard returns users ranked by total points, highest first. Ties keep
// the order in which users first checked in. limit is clamped to the configured cap.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := s.ranking(ctx)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Warm rebuilds the cached ranking.
func (s *Service) Warm(ctx context.Context) error {
	entries, err := s.build(ctx)
	if err != nil {
		return err
	}
	return s.store(ctx, entries)
}

// Invalidate drops the cached ranking so the next read rebuilds it.
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Del(ctx, CacheKey); err != nil {
		return fmt.Errorf("failed to invalidate leaderboard: %w", err)
	}
	return nil
}

// ranking returns the full capped ranking, from cache when possible.
func (s *Service) ranking(ctx context.Context) ([]Entry, error) {
	if entries, ok := s.load(ctx); ok {
		prommetrics.RecordLeaderboardCache("hit")
		return entries, nil
	}
	prommetrics.RecordLeaderboardCache("miss")

	entries, err := s.build(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, entries); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache leaderboard")
	}
	return entries, nil
}

func (s *Service) load(ctx context.Context) ([]Entry, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, CacheKey)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read cached leaderboard")
		return nil, false
	}
	if raw == "" {
		return nil, false
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.log.Warn().Err(err).Msg("Discarding unreadable cached leaderboard")
		return nil, false
	}
	return entries, true
}

func (s *Service) store(ctx context.Context, entries []Entry) error {
	if s.cache == nil {
		return nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode leaderboard: %w", err)
	}
	if err := s.cache.Set(ctx, CacheKey, string(data), s.ttl); err != nil {
		return fmt.Errorf("failed to cache leaderboard: %w", err)
	}
	return nil
}

// build ranks every streak row and keeps the top MaxEntries.
func (s *Service) build(ctx context.Context) ([]Entry, error) {
	streaks, err := s.streakRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}

	sort.SliceStable(streaks, func(i, j int) bool {
		return streaks[i].TotalPoints > streaks[j].TotalPoints
	})
	if len(streaks) > MaxEntries {
		streaks = streaks[:MaxEntries]
	}

	ids := make([]uint, 0, len(streaks))
	for _, st := range streaks {
		ids = append(ids, st.UserID)
	}

	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get users for leaderboard")
		users = map[uint]models.User{}
	}

	badgeCounts, err := s.badgeRepo.CountByUsers(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get badge counts for leaderboard")
		badgeCounts = map[uint]int64{}
	}

	entries := make([]Entry, 0, len(streaks))
	for i, st := range streaks {
		entries = append(entries, Entry{
			UserID:        st.UserID,
			Name:          users[st.UserID].Name,
			TotalPoints:   st.TotalPoints,
			TotalCheckIns: st.TotalCheckIns,
			CurrentStreak: st.CurrentStreak,
			LongestStreak: st.LongestStreak,
			BadgeCount:    int(badgeCounts[st.UserID]),
			Rank:          i + 1,
		})
	}
	return entries, nil
}

// GetUserRank returns the user's position in the ranking, or 0 when outside it.
func (s *Service) GetUserRank(ctx context.Context, userID uint) (int, error) {
	entries, err := s.ranking(ctx)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.UserID == userID {
			return e.Rank, nil
		}
	}
	return 0, nil
}
