package models

import (
	"time"
)

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a platform account. Owned by the account system; read-only here.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:255" json:"email"`
	Role      string    `gorm:"size:20;not null" json:"role"` // 'user' or 'admin'
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model.
func (User) TableName() string {
	return "users"
}

// Event is the event being attended. Coordinates are optional.
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Event model.
func (Event) TableName() string {
	return "events"
}

// HasLocation reports whether both event coordinates are known.
func (e *Event) HasLocation() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// Registration statuses.
const (
	RegistrationPending  = "pending"
	RegistrationApproved = "approved"
	RegistrationRejected = "rejected"
)

// Registration links a user to an event.
type Registration struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_registrations_user_event,priority:1" json:"user_id"`
	EventID    uint      `gorm:"not null;uniqueIndex:idx_registrations_user_event,priority:2;index" json:"event_id"`
	Status     string    `gorm:"size:20;not null;index" json:"status"` // 'pending', 'approved', 'rejected'
	TicketCode string    `gorm:"size:64" json:"ticket_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName specifies the table name for Registration model.
func (Registration) TableName() string {
	return "registrations"
}

// IsApproved reports whether the registration allows a check-in.
func (r *Registration) IsApproved() bool {
	return r.Status == RegistrationApproved
}
