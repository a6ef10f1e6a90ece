package badges

import (
	"fmt"

	"github.com/eventhub/checkin-service/internal/config"
	"github.com/eventhub/checkin-service/internal/models"
)

// Metrics a milestone can be evaluated against.
const (
	MetricTotalCheckIns = "total_check_ins"
	MetricCurrentStreak = "current_streak"
	MetricLongestStreak = "longest_streak"
	MetricTotalPoints   = "total_points"
)

// Milestone is a badge kind and the condition that earns it.
type Milestone struct {
	Kind        string               `json:"badge_type"`
	Name        string               `json:"badge_name"`
	Description string               `json:"badge_description"`
	Icon        string               `json:"badge_icon"`
	Points      int                  `json:"points"`
	Criteria    models.BadgeCriteria `json:"criteria"`
}

// DefaultCatalog returns the built-in milestones.
func DefaultCatalog() []Milestone {
	return []Milestone{
		{
			Kind:        models.BadgeFirstCheckIn,
			Name:        "First Check-in",
			Description: "You've checked in for the first time!",
			Icon:        "🎉",
			Points:      50,
			Criteria:    models.BadgeCriteria{Metric: MetricTotalCheckIns, Operator: "==", Value: 1},
		},
		{
			Kind:        models.BadgeStreak5,
			Name:        "5-Day Streak",
			Description: "5 consecutive check-ins!",
			Icon:        "🔥",
			Points:      100,
			Criteria:    models.BadgeCriteria{Metric: MetricCurrentStreak, Operator: "==", Value: 5},
		},
		{
			Kind:        models.BadgeStreak10,
			Name:        "10-Day Streak",
			Description: "10 consecutive check-ins!",
			Icon:        "🌟",
			Points:      200,
			Criteria:    models.BadgeCriteria{Metric: MetricCurrentStreak, Operator: "==", Value: 10},
		},
		{
			Kind:        models.BadgeStreak30,
			Name:        "30-Day Streak",
			Description: "30 consecutive check-ins!",
			Icon:        "👑",
			Points:      500,
			Criteria:    models.BadgeCriteria{Metric: MetricCurrentStreak, Operator: "==", Value: 30},
		},
	}
}

// BuildCatalog appends configured milestones to the built-in ones. A configured
// milestone with a built-in kind replaces it.
func BuildCatalog(extra []config.BadgeConfig) ([]Milestone, error) {
	catalog := DefaultCatalog()
	index := make(map[string]int, len(catalog))
	for i, m := range catalog {
		index[m.Kind] = i
	}

	for _, b := range extra {
		m := Milestone{
			Kind:        b.Kind,
			Name:        b.Name,
			Description: b.Description,
			Icon:        b.Icon,
			Points:      b.Points,
			Criteria: models.BadgeCriteria{
				Metric:   b.Criteria.Metric,
				Operator: b.Criteria.Operator,
				Value:    b.Criteria.Value,
			},
		}
		if m.Name == "" {
			m.Name = m.Kind
		}
		if err := validateCriteria(m.Criteria); err != nil {
			return nil, fmt.Errorf("invalid badge %s: %w", m.Kind, err)
		}

		if i, ok := index[m.Kind]; ok {
			catalog[i] = m
			continue
		}
		index[m.Kind] = len(catalog)
		catalog = append(catalog, m)
	}

	return catalog, nil
}

func validateCriteria(c models.BadgeCriteria) error {
	if _, err := metricValue(models.CheckInStreak{}, c.Metric); err != nil {
		return err
	}
	if _, err := compare(c.Operator, 0, 0); err != nil {
		return err
	}
	return nil
}
