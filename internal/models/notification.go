package models

import "time"

// Event categories a user can be notified about.
const (
	EventArrival          = "arrival"
	EventInspectionPassed = "inspection_passed"
	EventInspectionFailed = "inspection_failed"
	EventCapacityWarning  = "capacity_warning"
	EventDelayed          = "delayed"
	EventStored           = "stored"
)

// Email frequencies.
const (
	FrequencyImmediate = "immediate"
	FrequencyDaily     = "daily"
	FrequencyWeekly    = "weekly"
)

type User struct {
	ID        uint64
	Username  string
	Email     string
	CreatedAt time.Time
}

// NotificationPreference holds one user's notification settings. A missing
// row is equivalent to DefaultPreference(userID).
type NotificationPreference struct {
	UserID         uint64
	Categories     map[string]bool
	EmailEnabled   bool
	EmailFrequency string
	EmailAddress   *string
	UpdatedAt      time.Time
}

// DefaultPreference is the documented default: every category on, immediate
// delivery, no override address. Synthesized, not persisted.
func DefaultPreference(userID uint64) *NotificationPreference {
	return &NotificationPreference{
		UserID: userID,
		Categories: map[string]bool{
			EventArrival:          true,
			EventInspectionPassed: true,
			EventInspectionFailed: true,
			EventCapacityWarning:  true,
			EventDelayed:          true,
			EventStored:           true,
		},
		EmailEnabled:   true,
		EmailFrequency: FrequencyImmediate,
	}
}

// WantsCategory treats unknown categories as enabled, matching the
// all-flags-true default for absent rows.
func (p *NotificationPreference) WantsCategory(category string) bool {
	if p.Categories == nil {
		return true
	}
	v, ok := p.Categories[category]
	if !ok {
		return true
	}
	return v
}

// DigestQueueEntry is one notifiable event waiting to be batched. Eligible
// for a digest only while ProcessedAt is nil; set exactly once.
type DigestQueueEntry struct {
	ID          uint64
	UserID      uint64
	EventType   string
	ShipmentID  *uint64
	EventData   *string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
