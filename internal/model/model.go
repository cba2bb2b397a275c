package model

import "time"

// WeeklyRule is the recurring availability for one weekday (0=Sunday .. 6=Saturday).
// Times of day are minutes from midnight; sessions step by SessionDurationMinutes.
type WeeklyRule struct {
	ProviderID             string
	Weekday                int
	IsAvailable            bool
	StartMinute            int
	EndMinute              int
	SessionDurationMinutes int
}

// BlackoutDate excludes a specific calendar date regardless of the weekly rule.
type BlackoutDate struct {
	ProviderID string
	Date       string // YYYY-MM-DD
	Reason     string
}

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

type Appointment struct {
	ID          string
	ProviderID  string
	ClientName  string
	ClientEmail string
	ClientPhone string
	Date        string // YYYY-MM-DD
	StartTime   string // HH:MM
	EndTime     string // HH:MM
	Notes       string
	Status      string
	CreatedAt   time.Time
}

// Subscription is the read-only tuple the plan resolver consumes.
// It is maintained by the billing webhook, never by the booking path.
type Subscription struct {
	ProviderID      string
	Subscribed      bool
	Tier            string
	SubscriptionEnd *time.Time
}

// Slot is one bookable start time on a given date.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}
