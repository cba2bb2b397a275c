package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rafaelbst/agendly/internal/model"
	"github.com/rafaelbst/agendly/internal/plan"
)

// fakeStore is an in-memory Store with the same uniqueness semantics the
// database enforces: one confirmed appointment per (provider, date, start).
type fakeStore struct {
	mu           sync.Mutex
	rules        map[int]model.WeeklyRule
	blackouts    []string
	subscription *model.Subscription
	appointments []model.Appointment
	failReads    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rules: map[int]model.WeeklyRule{}}
}

var errStoreDown = errors.New("store down")

func (f *fakeStore) WeeklyRule(_ context.Context, _ string, weekday int) (model.WeeklyRule, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return model.WeeklyRule{}, false, errStoreDown
	}
	rule, ok := f.rules[weekday]
	return rule, ok, nil
}

func (f *fakeStore) BlackoutDates(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errStoreDown
	}
	return append([]string(nil), f.blackouts...), nil
}

func (f *fakeStore) ConfirmedStartTimes(_ context.Context, _ string, date string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errStoreDown
	}
	var starts []string
	for _, a := range f.appointments {
		if a.Date == date && a.Status == model.StatusConfirmed {
			starts = append(starts, a.StartTime)
		}
	}
	return starts, nil
}

func (f *fakeStore) Subscription(_ context.Context, _ string) (*model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errStoreDown
	}
	return f.subscription, nil
}

func (f *fakeStore) CountConfirmedBetween(_ context.Context, _ string, monthStart, monthEnd string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return 0, errStoreDown
	}
	count := 0
	for _, a := range f.appointments {
		if a.Status == model.StatusConfirmed && a.Date >= monthStart && a.Date < monthEnd {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) InsertAppointment(_ context.Context, appt *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appointments {
		if a.ProviderID == appt.ProviderID && a.Date == appt.Date &&
			a.StartTime == appt.StartTime && a.Status == model.StatusConfirmed {
			return ErrSlotTaken
		}
	}
	f.appointments = append(f.appointments, *appt)
	return nil
}

// seedConfirmed inserts n confirmed appointments on distinct days of the month
// containing date, avoiding the given start time.
func (f *fakeStore) seedConfirmed(n int, month string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.appointments = append(f.appointments, model.Appointment{
			ProviderID: "p1",
			Date:       month + "-01",
			StartTime:  model.FormatClock(i),
			Status:     model.StatusConfirmed,
		})
	}
}

func testService(store Store) *Service {
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testRequest() Request {
	return Request{
		ProviderID:  "p1",
		ClientName:  "Ana Souza",
		ClientEmail: "ana@example.com",
		Date:        "2026-02-02", // Monday
		StartTime:   "09:00",
	}
}

// now is a weekday in the same month as the test date but a different day, so
// past-time filtering never interferes.
var testNow = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func storeWithMonday() *fakeStore {
	store := newFakeStore()
	store.rules[1] = model.WeeklyRule{
		ProviderID:             "p1",
		Weekday:                1,
		IsAvailable:            true,
		StartMinute:            540,
		EndMinute:              720,
		SessionDurationMinutes: 60,
	}
	return store
}

func TestAdmit_Success(t *testing.T) {
	store := storeWithMonday()
	svc := testService(store)

	res, err := svc.Admit(context.Background(), testRequest(), testNow)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if res.Appointment.StartTime != "09:00" || res.Appointment.EndTime != "10:00" {
		t.Fatalf("unexpected times: %s-%s", res.Appointment.StartTime, res.Appointment.EndTime)
	}
	if res.Appointment.Status != model.StatusConfirmed {
		t.Fatalf("status = %q", res.Appointment.Status)
	}
	if res.Tier != plan.TierFree {
		t.Fatalf("tier = %q", res.Tier)
	}
	if res.Remaining == nil || *res.Remaining != 9 {
		t.Fatalf("remaining = %v, want 9", res.Remaining)
	}
}

func TestAdmit_Validation(t *testing.T) {
	svc := testService(storeWithMonday())

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing provider", func(r *Request) { r.ProviderID = " " }},
		{"missing name", func(r *Request) { r.ClientName = "" }},
		{"missing email", func(r *Request) { r.ClientEmail = "" }},
		{"bad date", func(r *Request) { r.Date = "02/02/2026" }},
		{"bad time", func(r *Request) { r.StartTime = "9am" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := testRequest()
			tc.mutate(&req)
			_, err := svc.Admit(context.Background(), req, testNow)
			if KindOf(err) != KindInvalidRequest {
				t.Fatalf("expected InvalidRequest, got %v", err)
			}
		})
	}
}

func TestAdmit_SlotNotOffered(t *testing.T) {
	svc := testService(storeWithMonday())

	req := testRequest()
	req.StartTime = "12:00" // outside the 09:00-12:00 window
	if _, err := svc.Admit(context.Background(), req, testNow); KindOf(err) != KindSlotUnavailable {
		t.Fatalf("expected SlotUnavailable, got %v", err)
	}

	req = testRequest()
	req.Date = "2026-02-01" // Sunday, no rule
	if _, err := svc.Admit(context.Background(), req, testNow); KindOf(err) != KindSlotUnavailable {
		t.Fatalf("expected SlotUnavailable, got %v", err)
	}
}

func TestAdmit_BlackoutDate(t *testing.T) {
	store := storeWithMonday()
	store.blackouts = []string{"2026-02-02"}
	svc := testService(store)

	if _, err := svc.Admit(context.Background(), testRequest(), testNow); KindOf(err) != KindSlotUnavailable {
		t.Fatalf("expected SlotUnavailable, got %v", err)
	}
}

func TestAdmit_AlreadyBooked(t *testing.T) {
	store := storeWithMonday()
	svc := testService(store)

	if _, err := svc.Admit(context.Background(), testRequest(), testNow); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := svc.Admit(context.Background(), testRequest(), testNow); KindOf(err) != KindSlotUnavailable {
		t.Fatalf("expected SlotUnavailable for duplicate, got %v", err)
	}
}

func TestAdmit_MonthlyLimit(t *testing.T) {
	store := storeWithMonday()
	store.seedConfirmed(plan.FreeMonthlyLimit, "2026-02")
	svc := testService(store)

	_, err := svc.Admit(context.Background(), testRequest(), testNow)
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindMonthlyLimitReached {
		t.Fatalf("expected MonthlyLimitReached, got %v", err)
	}
	if be.Limit != plan.FreeMonthlyLimit || be.Current != plan.FreeMonthlyLimit {
		t.Fatalf("limit/current = %d/%d", be.Limit, be.Current)
	}
}

func TestAdmit_LastFreeSlotOfMonth(t *testing.T) {
	store := storeWithMonday()
	store.seedConfirmed(plan.FreeMonthlyLimit-1, "2026-02")
	svc := testService(store)

	res, err := svc.Admit(context.Background(), testRequest(), testNow)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if res.Remaining == nil || *res.Remaining != 0 {
		t.Fatalf("remaining = %v, want 0", res.Remaining)
	}
}

func TestAdmit_UnlimitedBypassesQuota(t *testing.T) {
	store := storeWithMonday()
	store.seedConfirmed(plan.FreeMonthlyLimit+5, "2026-02")
	store.subscription = &model.Subscription{ProviderID: "p1", Subscribed: true}
	svc := testService(store)

	res, err := svc.Admit(context.Background(), testRequest(), testNow)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if res.Tier != plan.TierUnlimited {
		t.Fatalf("tier = %q", res.Tier)
	}
	if res.Remaining != nil {
		t.Fatalf("remaining should be nil for unlimited, got %d", *res.Remaining)
	}
}

func TestAdmit_StorageUnavailable(t *testing.T) {
	store := storeWithMonday()
	store.failReads = true
	svc := testService(store)

	_, err := svc.Admit(context.Background(), testRequest(), testNow)
	if KindOf(err) != KindStorageUnavailable {
		t.Fatalf("expected StorageUnavailable, got %v", err)
	}
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("cause not preserved: %v", err)
	}
}

func TestAdmit_ConcurrentSameSlot(t *testing.T) {
	store := storeWithMonday()
	svc := testService(store)

	const attempts = 8
	results := make(chan error, attempts)
	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		go func() {
			start.Wait()
			_, err := svc.Admit(context.Background(), testRequest(), testNow)
			results <- err
		}()
	}
	start.Done()

	successes, conflicts := 0, 0
	for i := 0; i < attempts; i++ {
		err := <-results
		switch {
		case err == nil:
			successes++
		case KindOf(err) == KindSlotUnavailable:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
}

func TestSlots_ReflectsBookings(t *testing.T) {
	store := storeWithMonday()
	svc := testService(store)

	if _, err := svc.Admit(context.Background(), testRequest(), testNow); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	slots, err := svc.Slots(context.Background(), "p1", "2026-02-02", testNow)
	if err != nil {
		t.Fatalf("Slots failed: %v", err)
	}
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	for _, s := range slots {
		wantAvail := s.Time != "09:00"
		if s.Available != wantAvail {
			t.Fatalf("slot %s: available=%v", s.Time, s.Available)
		}
	}
}

func TestSlots_NoRule(t *testing.T) {
	svc := testService(newFakeStore())
	slots, err := svc.Slots(context.Background(), "p1", "2026-02-02", testNow)
	if err != nil {
		t.Fatalf("Slots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}
