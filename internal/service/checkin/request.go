package checkin

import (
	"strings"

	"github.com/eventhub/checkin-service/internal/models"
	"github.com/eventhub/checkin-service/internal/service/geo"
)

// Actor is the authenticated caller, resolved upstream and passed explicitly.
type Actor struct {
	UserID uint
	Role   string
}

// IsAdmin reports whether the actor may perform admin operations.
func (a Actor) IsAdmin() bool {
	return strings.EqualFold(a.Role, models.RoleAdmin)
}

// Request is a check-in submission. The binding tags reject malformed bodies at the
// HTTP edge; validate re-checks what every caller must satisfy, including the
// cross-field rules tags cannot express.
type Request struct {
	EventID    uint     `json:"event_id" binding:"required"`
	Latitude   *float64 `json:"latitude,omitempty" binding:"omitempty,min=-90,max=90"`
	Longitude  *float64 `json:"longitude,omitempty" binding:"omitempty,min=-180,max=180"`
	DeviceInfo string   `json:"device_info,omitempty" binding:"max=512"`
	Method     string   `json:"verification_method" binding:"required,oneof=qr_code gps manual ticket_code"`
	TicketCode string   `json:"ticket_code,omitempty" binding:"max=64"`
	IPAddress  string   `json:"-"`
}

// HasLocation reports whether both coordinates were supplied.
func (r *Request) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// normalize trims free-text fields and lowercases the method.
func (r *Request) normalize() {
	r.Method = strings.ToLower(strings.TrimSpace(r.Method))
	r.DeviceInfo = strings.TrimSpace(r.DeviceInfo)
	r.TicketCode = strings.TrimSpace(r.TicketCode)
}

func (r *Request) validate(maxDeviceInfo int) error {
	if !knownMethod(r.Method) {
		return validationError("verification method must be one of %s", strings.Join(models.VerificationMethods, ", "))
	}

	if (r.Latitude == nil) != (r.Longitude == nil) {
		return validationError("latitude and longitude must be supplied together")
	}
	if r.HasLocation() {
		if err := geo.ValidateCoordinates(*r.Latitude, *r.Longitude); err != nil {
			return validationError("%v", err)
		}
	}
	if r.Method == models.MethodGPS && !r.HasLocation() {
		return validationError("gps check-in requires coordinates")
	}
	if r.Method == models.MethodTicketCode && r.TicketCode == "" {
		return validationError("ticket_code check-in requires a ticket code")
	}

	if maxDeviceInfo > 0 && len(r.DeviceInfo) > maxDeviceInfo {
		return validationError("device info exceeds %d characters", maxDeviceInfo)
	}
	return nil
}

func knownMethod(method string) bool {
	for _, m := range models.VerificationMethods {
		if m == method {
			return true
		}
	}
	return false
}
