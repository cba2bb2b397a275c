package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rafaelbst/agendly/internal/model"
	"github.com/rafaelbst/agendly/internal/outbox"
)

func (r *Repository) Subscription(ctx context.Context, providerID string) (*model.Subscription, error) {
	var sub model.Subscription
	var end *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT provider_id::text, subscribed, COALESCE(subscription_tier, ''), subscription_end
		FROM subscribers
		WHERE provider_id = $1
	`, providerID).Scan(&sub.ProviderID, &sub.Subscribed, &sub.Tier, &end)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	sub.SubscriptionEnd = end
	return &sub, nil
}

// UpsertSubscription replaces the subscription tuple and records the change
// event in the caller's transaction.
func (r *Repository) UpsertSubscription(ctx context.Context, tx pgx.Tx, sub model.Subscription) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO subscribers (provider_id, subscribed, subscription_tier, subscription_end)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (provider_id)
		DO UPDATE SET subscribed = EXCLUDED.subscribed,
		              subscription_tier = EXCLUDED.subscription_tier,
		              subscription_end = EXCLUDED.subscription_end,
		              updated_at = now()
	`, sub.ProviderID, sub.Subscribed, sub.Tier, sub.SubscriptionEnd)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"provider_id":      sub.ProviderID,
		"subscribed":       sub.Subscribed,
		"tier":             sub.Tier,
		"subscription_end": sub.SubscriptionEnd,
	})
	if err != nil {
		return err
	}
	return r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "subscription",
		AggregateID:   sub.ProviderID,
		EventType:     outbox.EventSubscriptionUpdated,
		Payload:       payload,
	})
}

var ErrDuplicateProviderEvent = errors.New("duplicate provider event")

// InsertProviderEvent dedupes webhook deliveries from the payment provider.
func (r *Repository) InsertProviderEvent(ctx context.Context, tx pgx.Tx, provider, providerEventID, eventType string, payload []byte) error {
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, provider, providerEventID, eventType, decoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateProviderEvent
	}
	return nil
}
