// Package badges provides milestone badge evaluation and management services.
package badges

import (
	"context"
	"fmt"
	"time"

	prommetrics "github.com/eventhub/checkin-service/internal/metrics"
	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/repository"
	"github.com/eventhub/checkin-service/pkg/logger"
)

// AwardRepository is the badge storage used within a check-in transaction.
type AwardRepository interface {
	HasBadge(ctx context.Context, userID uint, badgeType string) (bool, error)
	Award(ctx context.Context, badge *models.Badge) (bool, error)
}

// BadgeRepository interface for badge read operations.
type BadgeRepository interface {
	GetUserBadges(ctx context.Context, userID uint) ([]models.Badge, error)
	GetHolderCounts(ctx context.Context) ([]models.BadgeHolderCount, error)
}

// Service handles badge evaluation and awarding.
type Service struct {
	catalog   []Milestone
	badgeRepo BadgeRepository
	log       *logger.Logger
}

// NewService creates a new badge service.
func NewService(badgeRepo *repository.BadgeRepository, catalog []Milestone, log *logger.Logger) *Service {
	return NewServiceWithInterfaces(badgeRepo, catalog, log)
}

// NewServiceWithInterfaces creates a new badge service with interface dependencies (useful for testing).
func NewServiceWithInterfaces(badgeRepo BadgeRepository, catalog []Milestone, log *logger.Logger) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Service{
		catalog:   catalog,
		badgeRepo: badgeRepo,
		log:       log,
	}
}

// Catalog returns every milestone a user can earn.
func (s *Service) Catalog() []Milestone {
	out := make([]Milestone, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// Evaluate checks every milestone against the user's post-check-in state and awards
// the ones newly reached. Kinds the user already holds are skipped. Pass a
// transaction-scoped repo so awards commit or roll back with the check-in.
func (s *Service) Evaluate(
	ctx context.Context,
	repo AwardRepository,
	userID uint,
	state models.CheckInStreak,
	now time.Time,
) ([]models.Badge, error) {
	var awarded []models.Badge

	for _, m := range s.catalog {
		ok, err := qualifies(m.Criteria, state)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate badge %s: %w", m.Kind, err)
		}
		if !ok {
			continue
		}

		held, err := repo.HasBadge(ctx, userID, m.Kind)
		if err != nil {
			return nil, err
		}
		if held {
			continue
		}

		badge := models.Badge{
			UserID:           userID,
			BadgeType:        m.Kind,
			BadgeName:        m.Name,
			BadgeDescription: m.Description,
			BadgeIcon:        m.Icon,
			Points:           m.Points,
			EarnedAt:         now.UTC(),
		}
		inserted, err := repo.Award(ctx, &badge)
		if err != nil {
			return nil, err
		}
		if !inserted {
			// Lost a race with a concurrent award of the same kind.
			continue
		}

		s.log.Debug().
			Uint("user_id", userID).
			Str("badge_type", m.Kind).
			Msg("Badge awarded")
		awarded = append(awarded, badge)
	}

	return awarded, nil
}

// GetUserBadges retrieves all badges earned by a user.
func (s *Service) GetUserBadges(ctx context.Context, userID uint) ([]models.Badge, error) {
	badges, err := s.badgeRepo.GetUserBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	if badges == nil {
		badges = []models.Badge{}
	}
	return badges, nil
}

// CatalogEntry is a milestone with the number of users holding it.
type CatalogEntry struct {
	Milestone
	Holders int64 `json:"holders"`
}

// CatalogWithHolders returns the catalog annotated with holder counts.
func (s *Service) CatalogWithHolders(ctx context.Context) ([]CatalogEntry, error) {
	byKind, err := s.holderCounts(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]CatalogEntry, 0, len(s.catalog))
	for _, m := range s.catalog {
		entries = append(entries, CatalogEntry{Milestone: m, Holders: byKind[m.Kind]})
	}
	return entries, nil
}

// RefreshHolderMetrics publishes the number of holders per badge kind.
func (s *Service) RefreshHolderMetrics(ctx context.Context) error {
	byKind, err := s.holderCounts(ctx)
	if err != nil {
		return err
	}
	for _, m := range s.catalog {
		prommetrics.SetActiveBadgeHolders(m.Kind, int(byKind[m.Kind]))
	}
	return nil
}

func (s *Service) holderCounts(ctx context.Context) (map[string]int64, error) {
	counts, err := s.badgeRepo.GetHolderCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get badge holder counts: %w", err)
	}

	byKind := make(map[string]int64, len(counts))
	for _, c := range counts {
		byKind[c.BadgeType] = c.Holders
	}
	return byKind, nil
}
