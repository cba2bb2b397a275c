package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rafaelbst/agendly/internal/booking"
	"github.com/rafaelbst/agendly/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type appointmentJSON struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	ClientName  string `json:"client_name"`
	ClientEmail string `json:"client_email"`
	ClientPhone string `json:"client_phone,omitempty"`
	Date        string `json:"appointment_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Notes       string `json:"notes,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

func toAppointmentJSON(a model.Appointment) appointmentJSON {
	return appointmentJSON{
		ID:          a.ID,
		ProviderID:  a.ProviderID,
		ClientName:  a.ClientName,
		ClientEmail: a.ClientEmail,
		ClientPhone: a.ClientPhone,
		Date:        a.Date,
		StartTime:   a.StartTime,
		EndTime:     a.EndTime,
		Notes:       a.Notes,
		Status:      a.Status,
		CreatedAt:   a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

type rejectionJSON struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Current int    `json:"current,omitempty"`
}

// writeBookingError maps the admission taxonomy onto HTTP statuses. Anything
// that is not a typed rejection is reported as a storage failure rather than
// leaking internals.
func writeBookingError(w http.ResponseWriter, err error) {
	var be *booking.Error
	if !errors.As(err, &be) {
		writeJSON(w, http.StatusInternalServerError, rejectionJSON{
			Success: false,
			Error:   string(booking.KindStorageUnavailable),
			Message: "unexpected error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch be.Kind {
	case booking.KindInvalidRequest:
		status = http.StatusBadRequest
	case booking.KindSlotUnavailable:
		status = http.StatusConflict
	case booking.KindMonthlyLimitReached:
		status = http.StatusPaymentRequired
	case booking.KindStorageUnavailable:
		status = http.StatusServiceUnavailable
	}

	body := rejectionJSON{
		Success: false,
		Error:   string(be.Kind),
		Message: be.Message,
	}
	if be.Kind == booking.KindMonthlyLimitReached {
		body.Limit = be.Limit
		body.Current = be.Current
	}
	writeJSON(w, status, body)
}
