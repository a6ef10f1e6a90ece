// Package dashboard provides REST API handlers for the gamification dashboard.
// It exposes endpoints for the points leaderboard, user statistics and badges.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventhub/checkin-service/internal/api/middleware"
	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/service/badges"
	"github.com/eventhub/checkin-service/internal/service/leaderboard"
	"github.com/eventhub/checkin-service/pkg/logger"
)

// BadgeService interface for badge operations.
type BadgeService interface {
	GetUserBadges(ctx context.Context, userID uint) ([]models.Badge, error)
	CatalogWithHolders(ctx context.Context) ([]badges.CatalogEntry, error)
}

// LeaderboardService interface for leaderboard operations.
type LeaderboardService interface {
	GetLeaderboard(ctx context.Context, limit int) ([]leaderboard.Entry, error)
	GetUserStats(ctx context.Context, userID uint) (*leaderboard.UserStats, error)
}

// Handler handles dashboard API requests.
type Handler struct {
	badgeService       BadgeService
	leaderboardService LeaderboardService
	log                *logger.Logger
}

// NewHandler creates a new dashboard handler.
func NewHandler(badgeService *badges.Service, leaderboardService *leaderboard.Service, log *logger.Logger) *Handler {
	return NewHandlerWithInterfaces(badgeService, leaderboardService, log)
}

// NewHandlerWithInterfaces creates a new dashboard handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(badgeService BadgeService, leaderboardService LeaderboardService, log *logger.Logger) *Handler {
	return &Handler{
		badgeService:       badgeService,
		leaderboardService: leaderboardService,
		log:                log,
	}
}

// RegisterRoutes mounts the dashboard endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/leaderboard", h.GetLeaderboard)
	rg.GET("/my-stats", h.GetMyStats)
	rg.GET("/my-badges", h.GetMyBadges)
	rg.GET("/users/:id/stats", h.GetUserStats)
	rg.GET("/users/:id/badges", h.GetUserBadges)
	rg.GET("/badges", h.GetBadgeCatalog)
}

// GetLeaderboard returns users ranked by points.
// GET /api/v1/leaderboard?limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	limit, err := h.parseLimit(c, leaderboard.MaxEntries)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.GetLeaderboard(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get leaderboard")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve leaderboard")
		return
	}

	h.log.Debug().
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetMyStats returns the caller's statistics.
// GET /api/v1/my-stats.
func (h *Handler) GetMyStats(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}
	h.respondStats(c, actor.UserID)
}

// GetUserStats returns statistics for a specific user.
// GET /api/v1/users/:id/stats.
func (h *Handler) GetUserStats(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	h.respondStats(c, userID)
}

func (h *Handler) respondStats(c *gin.Context, userID uint) {
	stats, err := h.leaderboardService.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user stats")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve user statistics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":        stats,
		"generated_at": time.Now().UTC(),
	})
}

// GetMyBadges returns badges earned by the caller.
// GET /api/v1/my-badges.
func (h *Handler) GetMyBadges(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "authentication required")
		return
	}
	h.respondBadges(c, actor.UserID)
}

// GetUserBadges returns badges earned by a specific user.
// GET /api/v1/users/:id/badges.
func (h *Handler) GetUserBadges(c *gin.Context) {
	userID, err := h.parseUserID(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	h.respondBadges(c, userID)
}

func (h *Handler) respondBadges(c *gin.Context, userID uint) {
	userBadges, err := h.badgeService.GetUserBadges(c.Request.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Uint("user_id", userID).Msg("Failed to get user badges")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve user badges")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"badges":       userBadges,
		"total_badges": len(userBadges),
		"generated_at": time.Now().UTC(),
	})
}

// GetBadgeCatalog returns all available badges with holder counts.
// GET /api/v1/badges.
func (h *Handler) GetBadgeCatalog(c *gin.Context) {
	catalog, err := h.badgeService.CatalogWithHolders(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get badge catalog")
		h.errorResponse(c, http.StatusInternalServerError, "Failed to retrieve badge catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"badges":       catalog,
		"total_badges": len(catalog),
		"generated_at": time.Now().UTC(),
	})
}

// Helper functions

// parseUserID extracts and validates the user ID from the URL parameter.
func (h *Handler) parseUserID(c *gin.Context) (uint, error) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user ID: %s", idStr)
	}
	return uint(id), nil
}

// parseLimit extracts and validates the limit query parameter.
func (h *Handler) parseLimit(c *gin.Context, defaultLimit int) (int, error) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %s", limitStr)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be greater than 0")
	}

	if limit > leaderboard.MaxEntries {
		return 0, fmt.Errorf("limit cannot exceed %d", leaderboard.MaxEntries)
	}

	return limit, nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"trace_id":  middleware.GetTraceID(c),
		"timestamp": time.Now().UTC(),
	})
}
