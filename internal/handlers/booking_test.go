package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rafaelbst/agendly/internal/booking"
	"github.com/rafaelbst/agendly/internal/model"
)

type memStore struct {
	mu           sync.Mutex
	rules        map[int]model.WeeklyRule
	blackouts    []string
	subscription *model.Subscription
	appointments []model.Appointment
}

func (f *memStore) WeeklyRule(_ context.Context, _ string, weekday int) (model.WeeklyRule, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule, ok := f.rules[weekday]
	return rule, ok, nil
}

func (f *memStore) BlackoutDates(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.blackouts...), nil
}

func (f *memStore) ConfirmedStartTimes(_ context.Context, _ string, date string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var starts []string
	for _, a := range f.appointments {
		if a.Date == date && a.Status == model.StatusConfirmed {
			starts = append(starts, a.StartTime)
		}
	}
	return starts, nil
}

func (f *memStore) Subscription(_ context.Context, _ string) (*model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscription, nil
}

func (f *memStore) CountConfirmedBetween(_ context.Context, _ string, monthStart, monthEnd string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.appointments {
		if a.Status == model.StatusConfirmed && a.Date >= monthStart && a.Date < monthEnd {
			count++
		}
	}
	return count, nil
}

func (f *memStore) InsertAppointment(_ context.Context, appt *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.appointments {
		if a.ProviderID == appt.ProviderID && a.Date == appt.Date &&
			a.StartTime == appt.StartTime && a.Status == model.StatusConfirmed {
			return booking.ErrSlotTaken
		}
	}
	f.appointments = append(f.appointments, *appt)
	return nil
}

func testBookingHandler(store booking.Store) *BookingHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewBookingHandler(booking.NewService(store, logger), logger)
	h.now = func() time.Time { return time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC) }
	return h
}

func mondayStore() *memStore {
	return &memStore{rules: map[int]model.WeeklyRule{
		1: {
			ProviderID:             "p1",
			Weekday:                1,
			IsAvailable:            true,
			StartMinute:            540,
			EndMinute:              720,
			SessionDurationMinutes: 60,
		},
	}}
}

const bookBody = `{
	"provider_id": "p1",
	"client_name": "Ana Souza",
	"client_email": "ana@example.com",
	"appointment_date": "2026-02-02",
	"start_time": "09:00"
}`

func TestSlotsEndpoint(t *testing.T) {
	h := testBookingHandler(mondayStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?provider_id=p1&date=2026-02-02", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var slots []model.Slot
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(slots) != 3 || slots[0].Time != "09:00" || !slots[0].Available {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestSlotsEndpoint_MissingParams(t *testing.T) {
	h := testBookingHandler(mondayStore())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?provider_id=p1", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSlotsEndpoint_NoRuleIsEmptyList(t *testing.T) {
	h := testBookingHandler(&memStore{rules: map[int]model.WeeklyRule{}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/slots?provider_id=p1&date=2026-02-02", nil)
	rec := httptest.NewRecorder()
	h.Slots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want []", got)
	}
}

func TestBookEndpoint_Success(t *testing.T) {
	h := testBookingHandler(mondayStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(bookBody))
	rec := httptest.NewRecorder()
	h.Book(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success     bool `json:"success"`
		Appointment struct {
			StartTime string `json:"start_time"`
			EndTime   string `json:"end_time"`
			Status    string `json:"status"`
		} `json:"appointment"`
		Remaining *int `json:"remainingAppointments"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if !resp.Success || resp.Appointment.StartTime != "09:00" || resp.Appointment.EndTime != "10:00" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Appointment.Status != "confirmed" {
		t.Fatalf("status = %q", resp.Appointment.Status)
	}
	if resp.Remaining == nil || *resp.Remaining != 9 {
		t.Fatalf("remainingAppointments = %v, want 9", resp.Remaining)
	}
}

func TestBookEndpoint_Conflict(t *testing.T) {
	h := testBookingHandler(mondayStore())

	rec := httptest.NewRecorder()
	h.Book(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(bookBody)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first booking failed: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Book(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(bookBody)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var resp rejectionJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Success || resp.Error != string(booking.KindSlotUnavailable) {
		t.Fatalf("unexpected rejection: %+v", resp)
	}
}

func TestBookEndpoint_MonthlyLimit(t *testing.T) {
	store := mondayStore()
	for i := 0; i < 10; i++ {
		store.appointments = append(store.appointments, model.Appointment{
			ProviderID: "p1",
			Date:       "2026-02-03",
			StartTime:  model.FormatClock(540 + i),
			Status:     model.StatusConfirmed,
		})
	}
	h := testBookingHandler(store)

	rec := httptest.NewRecorder()
	h.Book(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader(bookBody)))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	var resp rejectionJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Error != string(booking.KindMonthlyLimitReached) || resp.Limit != 10 || resp.Current != 10 {
		t.Fatalf("unexpected rejection: %+v", resp)
	}
}

func TestBookEndpoint_InvalidJSON(t *testing.T) {
	h := testBookingHandler(mondayStore())

	rec := httptest.NewRecorder()
	h.Book(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/book", strings.NewReader("{not json")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBookEndpoint_MethodNotAllowed(t *testing.T) {
	h := testBookingHandler(mondayStore())

	rec := httptest.NewRecorder()
	h.Book(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/book", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
