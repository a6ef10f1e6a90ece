package models

import (
	"time"
)

// Verification methods accepted on a check-in.
const (
	MethodQRCode     = "qr_code"
	MethodGPS        = "gps"
	MethodManual     = "manual"
	MethodTicketCode = "ticket_code"
)

// VerificationMethods lists every accepted verification method.
var VerificationMethods = []string{MethodQRCode, MethodGPS, MethodManual, MethodTicketCode}

// CheckIn is an immutable attendance record. One per (user, event, calendar day).
type CheckIn struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	UserID             uint      `gorm:"not null;index;uniqueIndex:idx_check_ins_user_event_day,priority:1" json:"user_id"`
	EventID            uint      `gorm:"not null;index;uniqueIndex:idx_check_ins_user_event_day,priority:2" json:"event_id"`
	RegistrationID     uint      `gorm:"not null;index" json:"registration_id"`
	CheckInDate        time.Time `gorm:"type:date;not null;uniqueIndex:idx_check_ins_user_event_day,priority:3" json:"check_in_date"`
	Latitude           *float64  `json:"latitude,omitempty"`
	Longitude          *float64  `json:"longitude,omitempty"`
	DeviceInfo         string    `gorm:"size:512" json:"device_info,omitempty"`
	IPAddress          string    `gorm:"size:64" json:"ip_address,omitempty"`
	VerificationMethod string    `gorm:"size:20;not null" json:"verification_method"`
	IsVerified         *bool     `json:"is_verified"` // nil when no coordinates were supplied
	FraudScore         float64   `gorm:"not null" json:"fraud_score"`
	IsFlagged          bool      `gorm:"not null;index" json:"is_flagged"`
	FlagReason         string    `gorm:"type:text" json:"flag_reason,omitempty"`
	CreatedAt          time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName specifies the table name for CheckIn model.
func (CheckIn) TableName() string {
	return "check_ins"
}

// HasLocation reports whether both coordinates were captured.
func (c *CheckIn) HasLocation() bool {
	return c.Latitude != nil && c.Longitude != nil
}

// LocationRejected reports whether location verification ran and failed.
func (c *CheckIn) LocationRejected() bool {
	return c.IsVerified != nil && !*c.IsVerified
}

// CheckInStreak is the per-user attendance aggregate. Created lazily, never deleted.
type CheckInStreak struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"not null;uniqueIndex" json:"user_id"`
	CurrentStreak   int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak   int        `gorm:"not null;default:0" json:"longest_streak"`
	LastCheckInDate *time.Time `gorm:"type:date" json:"last_check_in_date"`
	TotalCheckIns   int        `gorm:"not null;default:0" json:"total_check_ins"`
	TotalPoints     int        `gorm:"not null;default:0" json:"total_points"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for CheckInStreak model.
func (CheckInStreak) TableName() string {
	return "check_in_streaks"
}

// Day truncates t to its calendar day in loc and returns that day as midnight UTC,
// the canonical form stored in date columns.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
