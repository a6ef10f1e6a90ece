//nolint:noctx // Test file uses http.NewRequest for simplicity
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/eventhub/checkin-service/internal/api/middleware"
	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/service/badges"
	"github.com/eventhub/checkin-service/internal/service/leaderboard"
	"github.com/eventhub/checkin-service/pkg/logger"
)

// Mock Badge Service
type mockBadgeService struct {
	userBadges map[uint][]models.Badge
	catalog    []badges.CatalogEntry
	err        error
}

func newMockBadgeService() *mockBadgeService {
	return &mockBadgeService{
		userBadges: make(map[uint][]models.Badge),
	}
}

func (m *mockBadgeService) GetUserBadges(ctx context.Context, userID uint) ([]models.Badge, error) {
	if m.err != nil {
		return nil, m.err
	}
	userBadges, exists := m.userBadges[userID]
	if !exists {
		return []models.Badge{}, nil
	}
	return userBadges, nil
}

func (m *mockBadgeService) CatalogWithHolders(ctx context.Context) ([]badges.CatalogEntry, error) {
	return m.catalog, m.err
}

// Mock Leaderboard Service
type mockLeaderboardService struct {
	entries   []leaderboard.Entry
	userStats map[uint]*leaderboard.UserStats
	lastLimit int
	err       error
}

func newMockLeaderboardService() *mockLeaderboardService {
	return &mockLeaderboardService{
		userStats: make(map[uint]*leaderboard.UserStats),
	}
}

func (m *mockLeaderboardService) GetLeaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	entries := m.entries
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *mockLeaderboardService) GetUserStats(ctx context.Context, userID uint) (*leaderboard.UserStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	stats, exists := m.userStats[userID]
	if !exists {
		return &leaderboard.UserStats{UserID: userID}, nil
	}
	return stats, nil
}

// Test Setup
func setupTestHandler() (*Handler, *mockBadgeService, *mockLeaderboardService) {
	badgeService := newMockBadgeService()
	leaderboardService := newMockLeaderboardService()

	handler := NewHandlerWithInterfaces(badgeService, leaderboardService, logger.Nop())

	return handler, badgeService, leaderboardService
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/api/v1", middleware.Identity())
	handler.RegisterRoutes(api)

	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, http.NoBody)
	req.Header.Set(middleware.HeaderUserID, "1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// Tests

func TestGetLeaderboard_Success(t *testing.T) {
	handler, _, leaderboardService := setupTestHandler()
	router := setupRouter(handler)

	leaderboardService.entries = []leaderboard.Entry{
		{Rank: 1, UserID: 1, Name: "alice", TotalPoints: 500},
		{Rank: 2, UserID: 2, Name: "bob", TotalPoints: 450},
	}

	w := get(router, "/api/v1/leaderboard?limit=10")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)

	assert.Equal(t, float64(2), response["total_entries"])
	assert.Equal(t, 10, leaderboardService.lastLimit)
}

func TestGetLeaderboard_DefaultLimit(t *testing.T) {
	handler, _, leaderboardService := setupTestHandler()
	router := setupRouter(handler)

	w := get(router, "/api/v1/leaderboard")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, leaderboard.MaxEntries, leaderboardService.lastLimit)
}

func TestGetLeaderboard_InvalidLimit(t *testing.T) {
	handler, _, _ := setupTestHandler()
	router := setupRouter(handler)

	tests := []struct {
		name  string
		limit string
	}{
		{"non-numeric", "abc"},
		{"zero", "0"},
		{"negative", "-5"},
		{"too large", "101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, "/api/v1/leaderboard?limit="+tt.limit)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestGetLeaderboard_ServiceError(t *testing.T) {
	handler, _, leaderboardService := setupTestHandler()
	router := setupRouter(handler)
	leaderboardService.err = errors.New("db down")

	w := get(router, "/api/v1/leaderboard")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetMyStats(t *testing.T) {
	handler, _, leaderboardService := setupTestHandler()
	router := setupRouter(handler)

	leaderboardService.userStats[1] = &leaderboard.UserStats{
		UserID:        1,
		Name:          "alice",
		TotalCheckIns: 12,
		CurrentStreak: 3,
		LongestStreak: 7,
		TotalPoints:   120,
		Rank:          4,
	}

	w := get(router, "/api/v1/my-stats")

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Stats leaderboard.UserStats `json:"stats"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, 120, response.Stats.TotalPoints)
	assert.Equal(t, 7, response.Stats.LongestStreak)
}

func TestGetMyStats_Unauthenticated(t *testing.T) {
	handler, _, _ := setupTestHandler()
	router := setupRouter(handler)

	req, _ := http.NewRequest("GET", "/api/v1/my-stats", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetUserStats_InvalidID(t *testing.T) {
	handler, _, _ := setupTestHandler()
	router := setupRouter(handler)

	w := get(router, "/api/v1/users/invalid/stats")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Contains(t, response["error"], "invalid user ID")
}

func TestGetMyBadges(t *testing.T) {
	handler, badgeService, _ := setupTestHandler()
	router := setupRouter(handler)

	badgeService.userBadges[1] = []models.Badge{
		{ID: 1, UserID: 1, BadgeType: models.BadgeFirstCheckIn, Points: 50},
		{ID: 2, UserID: 1, BadgeType: models.BadgeStreak5, Points: 100},
	}

	w := get(router, "/api/v1/my-badges")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(2), response["total_badges"])
}

func TestGetUserBadges_Empty(t *testing.T) {
	handler, _, _ := setupTestHandler()
	router := setupRouter(handler)

	w := get(router, "/api/v1/users/5/badges")

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float64(0), response["total_badges"])
	assert.NotNil(t, response["badges"])
}

func TestGetBadgeCatalog(t *testing.T) {
	handler, badgeService, _ := setupTestHandler()
	router := setupRouter(handler)

	for _, m := range badges.DefaultCatalog() {
		badgeService.catalog = append(badgeService.catalog, badges.CatalogEntry{Milestone: m})
	}
	badgeService.catalog[0].Holders = 3

	w := get(router, "/api/v1/badges")

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Badges      []badges.CatalogEntry `json:"badges"`
		TotalBadges int                   `json:"total_badges"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, len(badges.DefaultCatalog()), response.TotalBadges)
	assert.Equal(t, int64(3), response.Badges[0].Holders)
	assert.Equal(t, models.BadgeFirstCheckIn, response.Badges[0].Kind)
}

func TestGetBadgeCatalog_ServiceError(t *testing.T) {
	handler, badgeService, _ := setupTestHandler()
	router := setupRouter(handler)
	badgeService.err = errors.New("db down")

	w := get(router, "/api/v1/badges")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
