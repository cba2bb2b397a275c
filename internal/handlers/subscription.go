package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rafaelbst/agendly/internal/model"
	"github.com/rafaelbst/agendly/internal/plan"
	"github.com/rafaelbst/agendly/internal/storage"
)

type SubscriptionHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewSubscriptionHandler(repo *storage.Repository, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{repo: repo, logger: logger, now: time.Now}
}

type subscriptionJSON struct {
	Tier            string  `json:"tier"`
	Subscribed      bool    `json:"subscribed"`
	SubscriptionEnd *string `json:"subscription_end,omitempty"`
	MonthlyLimit    *int    `json:"monthly_limit,omitempty"`
	MonthlyUsed     *int    `json:"monthly_used,omitempty"`
}

// Get reports the effective tier plus current-month usage for free accounts.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID := ProviderIDFromContext(r.Context())
	now := h.now()

	sub, err := h.repo.Subscription(r.Context(), providerID)
	if err != nil {
		h.logger.Error("subscription lookup failed", "provider_id", providerID, "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	tier := plan.Resolve(sub, now)
	out := subscriptionJSON{Tier: string(tier)}
	if sub != nil {
		out.Subscribed = sub.Subscribed
		if sub.SubscriptionEnd != nil {
			s := sub.SubscriptionEnd.UTC().Format(time.RFC3339)
			out.SubscriptionEnd = &s
		}
	}

	if tier == plan.TierFree {
		monthStart, monthEnd := model.MonthBounds(now)
		used, err := h.repo.CountConfirmedBetween(r.Context(), providerID, monthStart, monthEnd)
		if err != nil {
			h.logger.Error("monthly usage count failed", "provider_id", providerID, "error", err)
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		limit := plan.FreeMonthlyLimit
		out.MonthlyLimit = &limit
		out.MonthlyUsed = &used
	}

	writeJSON(w, http.StatusOK, out)
}
