package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/rafaelbst/agendly/internal/model"
	"github.com/rafaelbst/agendly/internal/plan"
	"github.com/rafaelbst/agendly/internal/storage"
)

type BillingHandler struct {
	repo             *storage.Repository
	logger           *slog.Logger
	webhookSecret    string
	webhookTolerance time.Duration
}

func NewBillingHandler(repo *storage.Repository, logger *slog.Logger, webhookSecret string, tolerance time.Duration) *BillingHandler {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &BillingHandler{repo: repo, logger: logger, webhookSecret: webhookSecret, webhookTolerance: tolerance}
}

// StripeWebhook ingests subscription lifecycle events. No JWT here; the
// signature verification is the auth.
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.webhookSecret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.webhookSecret, h.webhookTolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("billing provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
	)

	tx, err := h.repo.Begin(r.Context())
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	// Idempotency: replayed deliveries are acknowledged without reapplying.
	if err := h.repo.InsertProviderEvent(r.Context(), tx, "stripe", evt.ID, evtType, body); err != nil {
		if errors.Is(err, storage.ErrDuplicateProviderEvent) {
			_ = tx.Commit(r.Context())
			writeJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
			return
		}
		http.Error(w, "failed to record provider event", http.StatusInternalServerError)
		return
	}

	switch evtType {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		providerID := strings.TrimSpace(session.Metadata["provider_id"])
		if providerID == "" {
			h.logger.Warn("stripe: missing provider_id metadata on checkout session")
			break
		}
		if err := h.repo.UpsertSubscription(r.Context(), tx, model.Subscription{
			ProviderID: providerID,
			Subscribed: true,
			Tier:       string(plan.TierUnlimited),
		}); err != nil {
			http.Error(w, "failed to apply subscription", http.StatusInternalServerError)
			return
		}

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			h.logger.Error("stripe: invalid subscription payload", "err", err)
			break
		}
		providerID := strings.TrimSpace(sub.Metadata["provider_id"])
		if providerID == "" {
			h.logger.Warn("stripe: missing provider_id metadata on subscription")
			break
		}
		active := sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing
		var end *time.Time
		if sub.CurrentPeriodEnd > 0 {
			t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			end = &t
		}
		tier := ""
		if active {
			tier = string(plan.TierUnlimited)
		}
		if err := h.repo.UpsertSubscription(r.Context(), tx, model.Subscription{
			ProviderID:      providerID,
			Subscribed:      active,
			Tier:            tier,
			SubscriptionEnd: end,
		}); err != nil {
			http.Error(w, "failed to apply subscription", http.StatusInternalServerError)
			return
		}

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			h.logger.Error("stripe: invalid subscription payload", "err", err)
			break
		}
		providerID := strings.TrimSpace(sub.Metadata["provider_id"])
		if providerID == "" {
			h.logger.Warn("stripe: missing provider_id metadata on subscription")
			break
		}
		if err := h.repo.UpsertSubscription(r.Context(), tx, model.Subscription{
			ProviderID: providerID,
			Subscribed: false,
		}); err != nil {
			http.Error(w, "failed to apply cancellation", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
