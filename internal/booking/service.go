package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rafaelbst/agendly/internal/availability"
	"github.com/rafaelbst/agendly/internal/model"
	"github.com/rafaelbst/agendly/internal/plan"
)

// Service validates booking requests against the provider's schedule, the
// ledger, and the plan quota, then commits exactly one appointment on success.
type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

type Request struct {
	ProviderID  string
	ClientName  string
	ClientEmail string
	ClientPhone string
	Date        string // YYYY-MM-DD
	StartTime   string // HH:MM
	Notes       string
}

type Result struct {
	Appointment model.Appointment
	Tier        plan.Tier
	// Remaining is the free-tier quota left after this booking; nil for
	// unlimited providers.
	Remaining *int
}

// Slots recomputes the bookable slot list for a date from current store state.
// The same path backs the public slots endpoint and the admission re-check, so
// a slot the admission accepts is always one this function would have offered.
func (s *Service) Slots(ctx context.Context, providerID, date string, now time.Time) ([]model.Slot, error) {
	if _, err := model.ParseDate(date); err != nil {
		return nil, invalidRequest("appointment_date must be YYYY-MM-DD")
	}

	rule, found, err := s.store.WeeklyRule(ctx, providerID, model.Weekday(date))
	if err != nil {
		return nil, storageUnavailable(err)
	}
	if !found {
		return nil, nil
	}
	blackouts, err := s.store.BlackoutDates(ctx, providerID)
	if err != nil {
		return nil, storageUnavailable(err)
	}
	booked, err := s.store.ConfirmedStartTimes(ctx, providerID, date)
	if err != nil {
		return nil, storageUnavailable(err)
	}

	return availability.Resolve(date, rule, blackouts, booked, now), nil
}

// Admit runs the full admission: validate, re-resolve slots from fresh reads,
// enforce the plan quota, and insert. The reads are advisory; the ledger's
// uniqueness constraint is the final arbiter of slot conflicts (step 5 maps
// ErrSlotTaken to a SlotUnavailable rejection rather than a generic failure).
func (s *Service) Admit(ctx context.Context, req Request, now time.Time) (Result, error) {
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientEmail = strings.TrimSpace(req.ClientEmail)
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)

	if req.ProviderID == "" {
		return Result{}, invalidRequest("provider_id is required")
	}
	if req.ClientName == "" || req.ClientEmail == "" {
		return Result{}, invalidRequest("client_name and client_email are required")
	}
	if _, err := model.ParseDate(req.Date); err != nil {
		return Result{}, invalidRequest("appointment_date must be YYYY-MM-DD")
	}
	startMinute, err := model.ParseClock(req.StartTime)
	if err != nil {
		return Result{}, invalidRequest("start_time must be HH:MM")
	}

	rule, found, err := s.store.WeeklyRule(ctx, req.ProviderID, model.Weekday(req.Date))
	if err != nil {
		return Result{}, storageUnavailable(err)
	}
	if !found || !rule.IsAvailable {
		return Result{}, slotUnavailable("provider is not available on this date")
	}
	blackouts, err := s.store.BlackoutDates(ctx, req.ProviderID)
	if err != nil {
		return Result{}, storageUnavailable(err)
	}
	booked, err := s.store.ConfirmedStartTimes(ctx, req.ProviderID, req.Date)
	if err != nil {
		return Result{}, storageUnavailable(err)
	}

	if !slotOffered(availability.Resolve(req.Date, rule, blackouts, booked, now), req.StartTime) {
		return Result{}, slotUnavailable("requested time is not available")
	}

	sub, err := s.store.Subscription(ctx, req.ProviderID)
	if err != nil {
		return Result{}, storageUnavailable(err)
	}
	tier := plan.Resolve(sub, now)

	monthCount := 0
	if tier == plan.TierFree {
		monthStart, monthEnd := model.MonthBounds(now)
		monthCount, err = s.store.CountConfirmedBetween(ctx, req.ProviderID, monthStart, monthEnd)
		if err != nil {
			return Result{}, storageUnavailable(err)
		}
		if monthCount >= plan.FreeMonthlyLimit {
			return Result{}, &Error{
				Kind:    KindMonthlyLimitReached,
				Message: "monthly appointment limit reached, upgrade to book more",
				Limit:   plan.FreeMonthlyLimit,
				Current: monthCount,
			}
		}
	}

	appt := model.Appointment{
		ID:          uuid.NewString(),
		ProviderID:  req.ProviderID,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
		Date:        req.Date,
		StartTime:   model.FormatClock(startMinute),
		EndTime:     model.FormatClock(startMinute + rule.SessionDurationMinutes),
		Notes:       strings.TrimSpace(req.Notes),
		Status:      model.StatusConfirmed,
		CreatedAt:   now.UTC(),
	}
	if err := s.store.InsertAppointment(ctx, &appt); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return Result{}, slotUnavailable("requested time was booked by someone else")
		}
		return Result{}, storageUnavailable(err)
	}

	res := Result{Appointment: appt, Tier: tier}
	if tier == plan.TierFree {
		remaining := plan.FreeMonthlyLimit - (monthCount + 1)
		res.Remaining = &remaining
	}
	s.logger.Info("appointment admitted",
		"provider_id", appt.ProviderID,
		"date", appt.Date,
		"start_time", appt.StartTime,
		"tier", string(tier),
	)
	return res, nil
}

func slotOffered(slots []model.Slot, start string) bool {
	for _, slot := range slots {
		if slot.Time == start {
			return slot.Available
		}
	}
	return false
}
