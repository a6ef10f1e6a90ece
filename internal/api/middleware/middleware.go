// Package middleware holds the gin middleware shared by every API route.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/service/checkin"
	"github.com/eventhub/checkin-service/pkg/logger"
)

// Header names.
const (
	HeaderTraceID  = "X-Trace-ID"
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

const (
	traceIDKey = "trace_id"
	actorKey   = "actor"
)

// TraceID tags each request with an id, reusing the caller's when present.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(HeaderTraceID)
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(traceIDKey, traceID)
		c.Writer.Header().Set(HeaderTraceID, traceID)
		c.Next()
	}
}

// GetTraceID returns the request's trace id.
func GetTraceID(c *gin.Context) string {
	return c.GetString(traceIDKey)
}

// RequestLogger logs every request once it completes.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = log.Error()
		}
		event.
			Str("trace_id", GetTraceID(c)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// Identity resolves the caller from the gateway headers and rejects anonymous requests.
// The headers are trusted: the service sits behind the authenticating gateway.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "missing or invalid " + HeaderUserID + " header",
				"trace_id":  GetTraceID(c),
				"timestamp": time.Now().UTC(),
			})
			return
		}

		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole)))
		if role == "" {
			role = models.RoleUser
		}

		c.Set(actorKey, checkin.Actor{UserID: uint(id), Role: role})
		c.Next()
	}
}

// ActorFrom returns the caller resolved by Identity.
func ActorFrom(c *gin.Context) (checkin.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return checkin.Actor{}, false
	}
	actor, ok := v.(checkin.Actor)
	return actor, ok
}
