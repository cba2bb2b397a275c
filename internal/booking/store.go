package booking

import (
	"context"
	"errors"

	"github.com/rafaelbst/agendly/internal/model"
)

// ErrSlotTaken is returned by Store.InsertAppointment when the ledger's
// uniqueness constraint on (provider, date, start_time, status=confirmed)
// rejects the insert. It is the authoritative conflict signal; the advisory
// slot read earlier in the admission may already be stale by insert time.
var ErrSlotTaken = errors.New("slot already booked")

// Store is the persistence surface the admission service depends on.
// Reads are independent of each other and may be served in any order; the
// single write is InsertAppointment.
type Store interface {
	// WeeklyRule returns the rule for (provider, weekday), reporting absence
	// via found=false rather than an error.
	WeeklyRule(ctx context.Context, providerID string, weekday int) (rule model.WeeklyRule, found bool, err error)
	// BlackoutDates returns all blackout dates for the provider.
	BlackoutDates(ctx context.Context, providerID string) ([]string, error)
	// ConfirmedStartTimes returns the start times (HH:MM) of confirmed
	// appointments on the given date.
	ConfirmedStartTimes(ctx context.Context, providerID, date string) ([]string, error)
	// Subscription returns the provider's subscription record, or nil when
	// none exists.
	Subscription(ctx context.Context, providerID string) (*model.Subscription, error)
	// CountConfirmedBetween counts confirmed appointments with
	// monthStart <= date < monthEnd.
	CountConfirmedBetween(ctx context.Context, providerID, monthStart, monthEnd string) (int, error)
	// InsertAppointment persists the appointment, returning ErrSlotTaken on a
	// uniqueness conflict. Implementations pair the insert with the confirmed
	// event in one transaction.
	InsertAppointment(ctx context.Context, appt *model.Appointment) error
}
