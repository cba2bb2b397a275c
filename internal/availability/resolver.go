package availability

import (
	"time"

	"github.com/rafaelbst/agendly/internal/model"
)

// Resolve computes the ordered slot list for one date from the weekly rule of
// that date's weekday, the provider's blackout dates, and the start times of
// already-confirmed appointments. It is pure: identical inputs yield identical
// output, and nothing is cached between calls.
//
// Candidate starts step from StartMinute by SessionDurationMinutes while
// strictly below EndMinute. The final slot's nominal end may exceed EndMinute
// when the duration does not divide the window evenly; that is intentional.
func Resolve(date string, rule model.WeeklyRule, blackouts []string, bookedStarts []string, now time.Time) []model.Slot {
	for _, b := range blackouts {
		if b == date {
			return nil
		}
	}
	if !rule.IsAvailable || rule.SessionDurationMinutes <= 0 {
		return nil
	}

	booked := make(map[string]struct{}, len(bookedStarts))
	for _, s := range bookedStarts {
		booked[s] = struct{}{}
	}

	isToday := date == model.FormatDate(now)
	nowMinute := now.Hour()*60 + now.Minute()

	var slots []model.Slot
	for m := rule.StartMinute; m < rule.EndMinute; m += rule.SessionDurationMinutes {
		clock := model.FormatClock(m)
		_, taken := booked[clock]
		past := isToday && m <= nowMinute
		slots = append(slots, model.Slot{
			Time:      clock,
			Available: !taken && !past,
		})
	}
	return slots
}
