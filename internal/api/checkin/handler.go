// Package checkin provides the REST handlers for submitting and listing check-ins.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventhub/checkin-service/internal/api/middleware"
	"github.com/eventhub/checkin-service/internal/models"
	checkinsvc "github.com/eventhub/checkin-service/internal/service/checkin"
	"github.com/eventhub/checkin-service/pkg/logger"
)

// Service is the check-in behavior the handlers need.
type Service interface {
	CheckIn(ctx context.Context, actor checkinsvc.Actor, req checkinsvc.Request) (*checkinsvc.Result, error)
	AdminCheckIn(ctx context.Context, actor checkinsvc.Actor, registrationID uint, req checkinsvc.Request) (*checkinsvc.Result, error)
	ListEventCheckIns(ctx context.Context, actor checkinsvc.Actor, eventID uint) ([]models.CheckIn, error)
	ListFlaggedCheckIns(ctx context.Context, actor checkinsvc.Actor) ([]models.CheckIn, error)
	ListMyCheckIns(ctx context.Context, actor checkinsvc.Actor) ([]models.CheckIn, error)
}

// adminCheckInBody is the optional body of an admin check-in. The event and method
// may be omitted: the registration names the event and the method defaults to manual.
type adminCheckInBody struct {
	EventID    uint     `json:"event_id"`
	Latitude   *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude  *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
	DeviceInfo string   `json:"device_info" binding:"max=512"`
	Method     string   `json:"verification_method" binding:"omitempty,oneof=qr_code gps manual ticket_code"`
	TicketCode string   `json:"ticket_code" binding:"max=64"`
}

// Handler handles check-in API requests.
type Handler struct {
	service Service
	log     *logger.Logger
}

// NewHandler creates a new check-in handler.
func NewHandler(service *checkinsvc.Service, log *logger.Logger) *Handler {
	return NewHandlerWithInterfaces(service, log)
}

// NewHandlerWithInterfaces creates a new check-in handler with interface dependencies (useful for testing).
func NewHandlerWithInterfaces(service Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// RegisterRoutes mounts the check-in endpoints on an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/check-in")
	g.POST("", h.CheckIn)
	g.POST("/admin/:registrationId", h.AdminCheckIn)
	g.GET("/event/:eventId", h.ListEventCheckIns)
	g.GET("/flagged", h.ListFlaggedCheckIns)
	g.GET("/my-check-ins", h.ListMyCheckIns)
}

// CheckIn records a check-in for the caller.
// POST /api/v1/check-in.
func (h *Handler) CheckIn(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req checkinsvc.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	req.IPAddress = c.ClientIP()

	result, err := h.service.CheckIn(c.Request.Context(), actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// AdminCheckIn records a check-in on behalf of a registration's owner.
// POST /api/v1/check-in/admin/:registrationId.
func (h *Handler) AdminCheckIn(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	registrationID, err := parseID(c, "registrationId")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var body adminCheckInBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			h.errorResponse(c, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}
	if body.Method == "" {
		body.Method = models.MethodManual
	}

	req := checkinsvc.Request{
		EventID:    body.EventID,
		Latitude:   body.Latitude,
		Longitude:  body.Longitude,
		DeviceInfo: body.DeviceInfo,
		Method:     body.Method,
		TicketCode: body.TicketCode,
		IPAddress:  c.ClientIP(),
	}

	result, err := h.service.AdminCheckIn(c.Request.Context(), actor, registrationID, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.log.Info().
		Uint("admin_id", actor.UserID).
		Uint("registration_id", registrationID).
		Uint("check_in_id", result.CheckIn.ID).
		Msg("Admin check-in recorded")

	c.JSON(http.StatusCreated, result)
}

// ListEventCheckIns returns every check-in of an event.
// GET /api/v1/check-in/event/:eventId.
func (h *Handler) ListEventCheckIns(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	eventID, err := parseID(c, "eventId")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	checkIns, err := h.service.ListEventCheckIns(c.Request.Context(), actor, eventID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id":     eventID,
		"check_ins":    checkIns,
		"total":        len(checkIns),
		"generated_at": time.Now().UTC(),
	})
}

// ListFlaggedCheckIns returns flagged check-ins, highest fraud score first.
// GET /api/v1/check-in/flagged.
func (h *Handler) ListFlaggedCheckIns(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	checkIns, err := h.service.ListFlaggedCheckIns(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"check_ins":    checkIns,
		"total":        len(checkIns),
		"generated_at": time.Now().UTC(),
	})
}

// ListMyCheckIns returns the caller's check-ins, newest first.
// GET /api/v1/check-in/my-check-ins.
func (h *Handler) ListMyCheckIns(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	checkIns, err := h.service.ListMyCheckIns(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"check_ins":    checkIns,
		"total":        len(checkIns),
		"generated_at": time.Now().UTC(),
	})
}

func (h *Handler) actor(c *gin.Context) (checkinsvc.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		h.errorResponse(c, http.StatusUnauthorized, "authentication required")
	}
	return actor, ok
}

// handleServiceError maps service error kinds to HTTP statuses.
func (h *Handler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, checkinsvc.ErrValidation):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkinsvc.ErrNotFound):
		h.errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, checkinsvc.ErrForbidden):
		h.errorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, checkinsvc.ErrRegistrationNotApproved),
		errors.Is(err, checkinsvc.ErrDuplicateCheckIn),
		errors.Is(err, checkinsvc.ErrCheckInInProgress):
		h.errorResponse(c, http.StatusConflict, err.Error())
	default:
		h.log.Error().
			Err(err).
			Str("trace_id", middleware.GetTraceID(c)).
			Str("path", c.FullPath()).
			Msg("Check-in request failed")
		h.errorResponse(c, http.StatusInternalServerError, "internal server error")
	}
}

// parseID extracts and validates a numeric path parameter.
func parseID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s: %s", name, raw)
	}
	return uint(id), nil
}

// errorResponse sends a standardized error response.
func (h *Handler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":     message,
		"trace_id":  middleware.GetTraceID(c),
		"timestamp": time.Now().UTC(),
	})
}
