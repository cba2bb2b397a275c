package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rafaelbst/agendly/internal/model"
	"github.com/rafaelbst/agendly/internal/storage"
)

type ScheduleHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewScheduleHandler(repo *storage.Repository, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{repo: repo, logger: logger}
}

type weeklyRuleJSON struct {
	Weekday                int    `json:"weekday"`
	IsAvailable            bool   `json:"is_available"`
	StartTime              string `json:"start_time"`
	EndTime                string `json:"end_time"`
	SessionDurationMinutes int    `json:"session_duration_minutes"`
}

type blackoutJSON struct {
	Date   string `json:"date"`
	Reason string `json:"reason,omitempty"`
}

type scheduleJSON struct {
	WeeklyRules   []weeklyRuleJSON `json:"weekly_rules"`
	BlackoutDates []blackoutJSON   `json:"blackout_dates"`
}

func (h *ScheduleHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) get(w http.ResponseWriter, r *http.Request) {
	providerID := ProviderIDFromContext(r.Context())

	rules, err := h.repo.ListWeeklyRules(r.Context(), providerID)
	if err != nil {
		h.logger.Error("list weekly rules failed", "provider_id", providerID, "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	blackouts, err := h.repo.ListBlackoutEntries(r.Context(), providerID)
	if err != nil {
		h.logger.Error("list blackout dates failed", "provider_id", providerID, "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	out := scheduleJSON{
		WeeklyRules:   make([]weeklyRuleJSON, 0, len(rules)),
		BlackoutDates: make([]blackoutJSON, 0, len(blackouts)),
	}
	for _, rule := range rules {
		out.WeeklyRules = append(out.WeeklyRules, weeklyRuleJSON{
			Weekday:                rule.Weekday,
			IsAvailable:            rule.IsAvailable,
			StartTime:              model.FormatClock(rule.StartMinute),
			EndTime:                model.FormatClock(rule.EndMinute),
			SessionDurationMinutes: rule.SessionDurationMinutes,
		})
	}
	for _, b := range blackouts {
		out.BlackoutDates = append(out.BlackoutDates, blackoutJSON{Date: b.Date, Reason: b.Reason})
	}
	writeJSON(w, http.StatusOK, out)
}

// put replaces the whole schedule. Partial updates are not supported; the
// client always submits all seven weekday rules plus the full blackout list.
func (h *ScheduleHandler) put(w http.ResponseWriter, r *http.Request) {
	providerID := ProviderIDFromContext(r.Context())

	var req scheduleJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	rules, blackouts, err := validateSchedule(providerID, req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.ReplaceSchedule(r.Context(), providerID, rules, blackouts); err != nil {
		h.logger.Error("schedule replace failed", "provider_id", providerID, "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	h.logger.Info("schedule replaced",
		"provider_id", providerID,
		"rules", len(rules),
		"blackouts", len(blackouts),
	)
	w.WriteHeader(http.StatusNoContent)
}

func validateSchedule(providerID string, req scheduleJSON) ([]model.WeeklyRule, []model.BlackoutDate, error) {
	if len(req.WeeklyRules) != 7 {
		return nil, nil, fmt.Errorf("expected 7 weekly rules, got %d", len(req.WeeklyRules))
	}

	seen := [7]bool{}
	rules := make([]model.WeeklyRule, 0, 7)
	for _, in := range req.WeeklyRules {
		if in.Weekday < 0 || in.Weekday > 6 {
			return nil, nil, fmt.Errorf("weekday %d out of range", in.Weekday)
		}
		if seen[in.Weekday] {
			return nil, nil, fmt.Errorf("duplicate rule for weekday %d", in.Weekday)
		}
		seen[in.Weekday] = true

		rule := model.WeeklyRule{
			ProviderID:             providerID,
			Weekday:                in.Weekday,
			IsAvailable:            in.IsAvailable,
			SessionDurationMinutes: in.SessionDurationMinutes,
		}
		if in.IsAvailable {
			start, err := model.ParseClock(in.StartTime)
			if err != nil {
				return nil, nil, fmt.Errorf("weekday %d: %w", in.Weekday, err)
			}
			end, err := model.ParseClock(in.EndTime)
			if err != nil {
				return nil, nil, fmt.Errorf("weekday %d: %w", in.Weekday, err)
			}
			if start >= end {
				return nil, nil, fmt.Errorf("weekday %d: start_time must be before end_time", in.Weekday)
			}
			if in.SessionDurationMinutes <= 0 {
				return nil, nil, fmt.Errorf("weekday %d: session_duration_minutes must be positive", in.Weekday)
			}
			rule.StartMinute = start
			rule.EndMinute = end
		}
		rules = append(rules, rule)
	}

	blackouts := make([]model.BlackoutDate, 0, len(req.BlackoutDates))
	dates := map[string]bool{}
	for _, in := range req.BlackoutDates {
		date := strings.TrimSpace(in.Date)
		if _, err := model.ParseDate(date); err != nil {
			return nil, nil, fmt.Errorf("blackout date %q is not a valid date", in.Date)
		}
		if dates[date] {
			return nil, nil, fmt.Errorf("duplicate blackout date %s", date)
		}
		dates[date] = true
		blackouts = append(blackouts, model.BlackoutDate{
			ProviderID: providerID,
			Date:       date,
			Reason:     strings.TrimSpace(in.Reason),
		})
	}
	return rules, blackouts, nil
}
