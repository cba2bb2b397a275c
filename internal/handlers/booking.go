package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rafaelbst/agendly/internal/booking"
	"github.com/rafaelbst/agendly/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
	now    func() time.Time
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger, now: time.Now}
}

type bookRequest struct {
	ProviderID  string `json:"provider_id"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone"`
	Date        string `json:"appointment_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Notes       string `json:"notes"`
}

type bookResponse struct {
	Success               bool            `json:"success"`
	Appointment           appointmentJSON `json:"appointment"`
	RemainingAppointments *int            `json:"remainingAppointments,omitempty"`
}

// Slots serves the public slot list for one provider and date.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if providerID == "" || date == "" {
		http.Error(w, "provider_id and date are required", http.StatusBadRequest)
		return
	}

	slots, err := h.svc.Slots(r.Context(), providerID, date, h.now())
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if slots == nil {
		slots = []model.Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

// Book admits a public booking request.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, rejectionJSON{
			Success: false,
			Error:   string(booking.KindInvalidRequest),
			Message: "invalid json body",
		})
		return
	}

	res, err := h.svc.Admit(r.Context(), booking.Request{
		ProviderID:  req.ProviderID,
		ClientName:  req.ClientName,
		ClientEmail: req.ClientEmail,
		ClientPhone: req.ClientPhone,
		Date:        req.Date,
		StartTime:   req.StartTime,
		Notes:       req.Notes,
	}, h.now())
	if err != nil {
		writeBookingError(w, err)
		return
	}

	// The caller-computed end_time is advisory only; the admitted appointment
	// carries the end recomputed from the weekly rule.
	if et := strings.TrimSpace(req.EndTime); et != "" && et != res.Appointment.EndTime {
		h.logger.Warn("caller end_time ignored",
			"provider_id", res.Appointment.ProviderID,
			"submitted", et,
			"computed", res.Appointment.EndTime,
		)
	}

	writeJSON(w, http.StatusCreated, bookResponse{
		Success:               true,
		Appointment:           toAppointmentJSON(res.Appointment),
		RemainingAppointments: res.Remaining,
	})
}
