// Package models defines domain models for the check-in and gamification system.
package models

import (
	"time"
)

// Badge kinds of the built-in milestone catalog.
const (
	BadgeFirstCheckIn = "first-checkin"
	BadgeStreak5      = "streak-5"
	BadgeStreak10     = "streak-10"
	BadgeStreak30     = "streak-30"
)

// Badge represents a milestone badge earned by a user. A kind is held at most once per user.
type Badge struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"not null;uniqueIndex:idx_badges_user_type,priority:1" json:"user_id"`
	BadgeType        string    `gorm:"not null;size:50;uniqueIndex:idx_badges_user_type,priority:2;index" json:"badge_type"`
	BadgeName        string    `gorm:"not null;size:100" json:"badge_name"`
	BadgeDescription string    `gorm:"type:text" json:"badge_description"`
	BadgeIcon        string    `gorm:"size:50" json:"badge_icon"`
	Points           int       `gorm:"not null" json:"points"`
	EarnedAt         time.Time `gorm:"not null" json:"earned_at"`
}

// TableName specifies the table name for Badge model.
func (Badge) TableName() string {
	return "badges"
}

// BadgeCriteria represents the criteria for earning a badge.
type BadgeCriteria struct {
	Metric   string `json:"metric"`
	Operator string `json:"operator"` // "<", ">", ">=", "<=", "==", "!="
	Value    int    `json:"value"`
}

// BadgeHolderCount is the number of users holding a badge kind.
type BadgeHolderCount struct {
	BadgeType string `json:"badge_type"`
	Holders   int64  `json:"holders"`
}
