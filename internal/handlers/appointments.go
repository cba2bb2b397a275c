package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rafaelbst/agendly/internal/model"
	"github.com/rafaelbst/agendly/internal/storage"
)

type AppointmentsHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewAppointmentsHandler(repo *storage.Repository, logger *slog.Logger) *AppointmentsHandler {
	return &AppointmentsHandler{repo: repo, logger: logger}
}

func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID := ProviderIDFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	appts, err := h.repo.ListAppointments(r.Context(), providerID, limit)
	if err != nil {
		h.logger.Error("list appointments failed", "provider_id", providerID, "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	out := make([]appointmentJSON, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

type statusChangeRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, model.StatusCancelled)
}

func (h *AppointmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, model.StatusCompleted)
}

// changeStatus moves a confirmed appointment to its terminal state. Only
// confirmed rows transition; repeated calls get a 409.
func (h *AppointmentsHandler) changeStatus(w http.ResponseWriter, r *http.Request, newStatus string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID := ProviderIDFromContext(r.Context())

	var req statusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id is required", http.StatusBadRequest)
		return
	}

	appt, err := h.repo.UpdateAppointmentStatus(r.Context(), providerID, req.AppointmentID, newStatus)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidTransition) {
			http.Error(w, "appointment is not confirmed", http.StatusConflict)
			return
		}
		h.logger.Error("status change failed",
			"provider_id", providerID,
			"appointment_id", req.AppointmentID,
			"status", newStatus,
			"error", err,
		)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	h.logger.Info("appointment status changed",
		"provider_id", providerID,
		"appointment_id", appt.ID,
		"status", appt.Status,
	)
	writeJSON(w, http.StatusOK, toAppointmentJSON(appt))
}
