package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification interval options in minutes
const (
	Interval10Min  = 10
	Interval30Min  = 30
	Interval1Hour  = 60
	Interval3Hour  = 180
	Interval12Hour = 720
	Interval1Day   = 1440
)

// ValidIntervals returns the allowed notification intervals in minutes
func ValidIntervals() []int {
	return []int{Interval10Min, Interval30Min, Interval1Hour, Interval3Hour, Interval12Hour, Interval1Day}
}

// IsValidInterval checks if the interval is one of the allowed options
func IsValidInterval(minutes int) bool {
	for _, valid := range ValidIntervals() {
		if minutes == valid {
			return true
		}
	}
	return false
}

// Subscriber represents a user that tracks a set of assets and receives
// periodic price notifications. The ID is the external chat identifier
// assigned by the messaging platform, not an auto-increment.
type Subscriber struct {
	ID              uint       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name            string     `gorm:"size:100" json:"name"`
	IntervalMinutes int        `gorm:"not null" json:"interval_minutes"`
	LastNotifiedAt  *time.Time `json:"last_notified_at"`
	JoinedAt        time.Time  `gorm:"autoCreateTime" json:"joined_at"`
	TrackedAssets   []Asset    `gorm:"many2many:subscriber_assets" json:"tracked_assets,omitempty"`
}

// MigrateSubscriberModels runs database migrations for subscriber-related models
func MigrateSubscriberModels(db *gorm.DB) error {
	return db.AutoMigrate(&Subscriber{})
}
