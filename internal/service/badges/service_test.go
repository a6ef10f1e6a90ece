package badges

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/eventhub/checkin-service/internal/config"
	prommetrics "github.com/eventhub/checkin-service/internal/metrics"
	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/pkg/logger"
)

// Mock repositories for testing
type mockBadgeRepository struct {
	held     map[uint]map[string]models.Badge // userID -> kind -> badge
	awardErr error
	// raceKinds simulates a concurrent award landing between HasBadge and Award.
	raceKinds map[string]bool
}

func newMockBadgeRepository() *mockBadgeRepository {
	return &mockBadgeRepository{
		held:      make(map[uint]map[string]models.Badge),
		raceKinds: make(map[string]bool),
	}
}

func (m *mockBadgeRepository) HasBadge(ctx context.Context, userID uint, badgeType string) (bool, error) {
	_, ok := m.held[userID][badgeType]
	return ok, nil
}

func (m *mockBadgeRepository) Award(ctx context.Context, badge *models.Badge) (bool, error) {
	if m.awardErr != nil {
		return false, m.awardErr
	}
	if m.raceKinds[badge.BadgeType] {
		return false, nil
	}
	if m.held[badge.UserID] == nil {
		m.held[badge.UserID] = make(map[string]models.Badge)
	}
	if _, ok := m.held[badge.UserID][badge.BadgeType]; ok {
		return false, nil
	}
	badge.ID = uint(len(m.held[badge.UserID]) + 1)
	m.held[badge.UserID][badge.BadgeType] = *badge
	return true, nil
}

func (m *mockBadgeRepository) GetUserBadges(ctx context.Context, userID uint) ([]models.Badge, error) {
	var result []models.Badge
	for _, b := range m.held[userID] {
		result = append(result, b)
	}
	return result, nil
}

func (m *mockBadgeRepository) GetHolderCounts(ctx context.Context) ([]models.BadgeHolderCount, error) {
	counts := make(map[string]int64)
	for _, kinds := range m.held {
		for kind := range kinds {
			counts[kind]++
		}
	}
	var result []models.BadgeHolderCount
	for kind, n := range counts {
		result = append(result, models.BadgeHolderCount{BadgeType: kind, Holders: n})
	}
	return result, nil
}

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestService(repo *mockBadgeRepository) *Service {
	return NewServiceWithInterfaces(repo, nil, logger.Nop())
}

func kinds(badges []models.Badge) []string {
	out := make([]string, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.BadgeType)
	}
	return out
}

func TestEvaluate_FirstCheckIn(t *testing.T) {
	repo := newMockBadgeRepository()
	svc := newTestService(repo)

	state := models.CheckInStreak{CurrentStreak: 1, LongestStreak: 1, TotalCheckIns: 1, TotalPoints: 10}
	awarded, err := svc.Evaluate(context.Background(), repo, 1, state, now)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}

	if len(awarded) != 1 || awarded[0].BadgeType != models.BadgeFirstCheckIn {
		t.Fatalf("Expected only first-checkin, got %v", kinds(awarded))
	}
	b := awarded[0]
	if b.BadgeName != "First Check-in" || b.BadgeIcon != "🎉" || b.Points != 50 {
		t.Errorf("Unexpected badge details: %+v", b)
	}
	if !b.EarnedAt.Equal(now) {
		t.Errorf("Expected EarnedAt %v, got %v", now, b.EarnedAt)
	}
}

func TestEvaluate_StreakMilestones(t *testing.T) {
	tests := []struct {
		streak int
		want   string
		points int
	}{
		{streak: 5, want: models.BadgeStreak5, points: 100},
		{streak: 10, want: models.BadgeStreak10, points: 200},
		{streak: 30, want: models.BadgeStreak30, points: 500},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			repo := newMockBadgeRepository()
			svc := newTestService(repo)
			state := models.CheckInStreak{CurrentStreak: tt.streak, LongestStreak: tt.streak, TotalCheckIns: tt.streak}

			awarded, err := svc.Evaluate(context.Background(), repo, 1, state, now)
			if err != nil {
				t.Fatalf("Evaluate() failed: %v", err)
			}
			if len(awarded) != 1 || awarded[0].BadgeType != tt.want {
				t.Fatalf("Expected %s, got %v", tt.want, kinds(awarded))
			}
			if awarded[0].Points != tt.points {
				t.Errorf("Expected %d points, got %d", tt.points, awarded[0].Points)
			}
		})
	}
}

func TestEvaluate_NoMilestoneBetweenThresholds(t *testing.T) {
	repo := newMockBadgeRepository()
	svc := newTestService(repo)

	for _, streak := range []int{2, 4, 6, 11, 31} {
		state := models.CheckInStreak{CurrentStreak: streak, LongestStreak: streak, TotalCheckIns: streak + 3}
		awarded, err := svc.Evaluate(context.Background(), repo, 1, state, now)
		if err != nil {
			t.Fatalf("Evaluate() failed: %v", err)
		}
		if len(awarded) != 0 {
			t.Errorf("streak %d: expected no badge, got %v", streak, kinds(awarded))
		}
	}
}

func TestEvaluate_AwardedOnlyOnce(t *testing.T) {
	repo := newMockBadgeRepository()
	svc := newTestService(repo)
	state := models.CheckInStreak{CurrentStreak: 5, LongestStreak: 5, TotalCheckIns: 5}

	first, err := svc.Evaluate(context.Background(), repo, 1, state, now)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("Expected one badge, got %d", len(first))
	}

	// Streak broken and rebuilt to 5 again.
	second, err := svc.Evaluate(context.Background(), repo, 1, state, now.AddDate(0, 0, 10))
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("Expected streak-5 not to be awarded twice, got %v", kinds(second))
	}
}

func TestEvaluate_LostRaceIsNotReported(t *testing.T) {
	repo := newMockBadgeRepository()
	repo.raceKinds[models.BadgeFirstCheckIn] = true
	svc := newTestService(repo)

	awarded, err := svc.Evaluate(context.Background(), repo, 1, models.CheckInStreak{CurrentStreak: 1, LongestStreak: 1, TotalCheckIns: 1}, now)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if len(awarded) != 0 {
		t.Errorf("Expected no newly awarded badge, got %v", kinds(awarded))
	}
}

func TestEvaluate_StorageErrorAborts(t *testing.T) {
	repo := newMockBadgeRepository()
	repo.awardErr = errors.New("connection reset")
	svc := newTestService(repo)

	_, err := svc.Evaluate(context.Background(), repo, 1, models.CheckInStreak{CurrentStreak: 1, LongestStreak: 1, TotalCheckIns: 1}, now)
	if err == nil {
		t.Fatal("Expected error from failing repository")
	}
}

func TestBuildCatalog(t *testing.T) {
	catalog, err := BuildCatalog([]config.BadgeConfig{
		{
			Kind:     "regular",
			Name:     "Regular",
			Icon:     "🎟️",
			Points:   150,
			Criteria: config.CriteriaConfig{Metric: MetricTotalCheckIns, Operator: ">=", Value: 25},
		},
		{
			Kind:     models.BadgeStreak30,
			Name:     "Monthly Devotee",
			Points:   1000,
			Criteria: config.CriteriaConfig{Metric: MetricCurrentStreak, Operator: "==", Value: 30},
		},
	})
	if err != nil {
		t.Fatalf("BuildCatalog() failed: %v", err)
	}
	if len(catalog) != 5 {
		t.Fatalf("Expected 5 milestones, got %d", len(catalog))
	}
	if catalog[3].Name != "Monthly Devotee" || catalog[3].Points != 1000 {
		t.Errorf("Expected built-in streak-30 to be replaced, got %+v", catalog[3])
	}

	svc := NewServiceWithInterfaces(newMockBadgeRepository(), catalog, logger.Nop())
	repo := newMockBadgeRepository()
	awarded, err := svc.Evaluate(context.Background(), repo, 1, models.CheckInStreak{CurrentStreak: 1, LongestStreak: 3, TotalCheckIns: 26}, now)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if len(awarded) != 1 || awarded[0].BadgeType != "regular" {
		t.Errorf("Expected regular badge, got %v", kinds(awarded))
	}
}

func TestBuildCatalog_RejectsUnknownMetric(t *testing.T) {
	_, err := BuildCatalog([]config.BadgeConfig{
		{Kind: "x", Criteria: config.CriteriaConfig{Metric: "likes", Operator: ">=", Value: 1}},
	})
	if err == nil {
		t.Error("Expected error for unknown metric")
	}

	_, err = BuildCatalog([]config.BadgeConfig{
		{Kind: "x", Criteria: config.CriteriaConfig{Metric: MetricTotalPoints, Operator: "top", Value: 1}},
	})
	if err == nil {
		t.Error("Expected error for unknown operator")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		op        string
		threshold int
		actual    int
		want      bool
	}{
		{"<", 5, 4, true},
		{"<=", 5, 5, true},
		{">", 5, 5, false},
		{">=", 5, 5, true},
		{"==", 5, 5, true},
		{"!=", 5, 5, false},
	}

	for _, tt := range tests {
		got, err := compare(tt.op, tt.threshold, tt.actual)
		if err != nil {
			t.Fatalf("compare(%s) failed: %v", tt.op, err)
		}
		if got != tt.want {
			t.Errorf("compare(%s, %d, %d) = %v, want %v", tt.op, tt.threshold, tt.actual, got, tt.want)
		}
	}
}

func TestRefreshHolderMetrics(t *testing.T) {
	repo := newMockBadgeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	for _, user := range []uint{1, 2} {
		if _, err := svc.Evaluate(ctx, repo, user, models.CheckInStreak{CurrentStreak: 1, LongestStreak: 1, TotalCheckIns: 1}, now); err != nil {
			t.Fatalf("Evaluate() failed: %v", err)
		}
	}

	if err := svc.RefreshHolderMetrics(ctx); err != nil {
		t.Fatalf("RefreshHolderMetrics() failed: %v", err)
	}

	if got := testutil.ToFloat64(prommetrics.ActiveBadgeHolders.WithLabelValues(models.BadgeFirstCheckIn)); got != 2 {
		t.Errorf("Expected 2 first-checkin holders, got %v", got)
	}
	if got := testutil.ToFloat64(prommetrics.ActiveBadgeHolders.WithLabelValues(models.BadgeStreak5)); got != 0 {
		t.Errorf("Expected 0 streak-5 holders, got %v", got)
	}
}

func TestGetUserBadges_EmptyIsNotNil(t *testing.T) {
	svc := newTestService(newMockBadgeRepository())

	badges, err := svc.GetUserBadges(context.Background(), 99)
	if err != nil {
		t.Fatalf("GetUserBadges() failed: %v", err)
	}
	if badges == nil || len(badges) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", badges)
	}
}

func TestCatalogWithHolders(t *testing.T) {
	repo := newMockBadgeRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Evaluate(ctx, repo, 1, models.CheckInStreak{CurrentStreak: 1, LongestStreak: 1, TotalCheckIns: 1}, now); err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}

	entries, err := svc.CatalogWithHolders(ctx)
	if err != nil {
		t.Fatalf("CatalogWithHolders() failed: %v", err)
	}
	if len(entries) != len(DefaultCatalog()) {
		t.Fatalf("Expected %d entries, got %d", len(DefaultCatalog()), len(entries))
	}
	for _, e := range entries {
		want := int64(0)
		if e.Kind == models.BadgeFirstCheckIn {
			want = 1
		}
		if e.Holders != want {
			t.Errorf("Expected %d holders of %s, got %d", want, e.Kind, e.Holders)
		}
	}
}
