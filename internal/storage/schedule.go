package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rafaelbst/agendly/internal/model"
	"github.com/rafaelbst/agendly/internal/outbox"
)

// Default schedule: Mon-Fri 09:00-17:00 with 60-minute sessions, Sat/Sun closed.
func defaultWeeklyRules(providerID string) []model.WeeklyRule {
	rules := make([]model.WeeklyRule, 0, 7)
	for wd := 0; wd <= 6; wd++ {
		working := wd >= 1 && wd <= 5
		rule := model.WeeklyRule{
			ProviderID:             providerID,
			Weekday:                wd,
			IsAvailable:            working,
			SessionDurationMinutes: 60,
		}
		if working {
			rule.StartMinute = 540
			rule.EndMinute = 1020
		}
		rules = append(rules, rule)
	}
	return rules
}

// EnsureWeeklyDefaults seeds the 7 default rules for a new provider. Existing
// rows are left untouched.
func (r *Repository) EnsureWeeklyDefaults(ctx context.Context, providerID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rule := range defaultWeeklyRules(providerID) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO weekly_rules (provider_id, weekday, is_available, start_minute, end_minute, session_duration_minutes)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (provider_id, weekday) DO NOTHING
		`, rule.ProviderID, rule.Weekday, rule.IsAvailable, rule.StartMinute, rule.EndMinute, rule.SessionDurationMinutes); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *Repository) WeeklyRule(ctx context.Context, providerID string, weekday int) (model.WeeklyRule, bool, error) {
	var rule model.WeeklyRule
	err := r.pool.QueryRow(ctx, `
		SELECT provider_id::text, weekday, is_available, start_minute, end_minute, session_duration_minutes
		FROM weekly_rules
		WHERE provider_id = $1 AND weekday = $2
	`, providerID, weekday).Scan(&rule.ProviderID, &rule.Weekday, &rule.IsAvailable, &rule.StartMinute, &rule.EndMinute, &rule.SessionDurationMinutes)
	if err != nil {
		if IsNotFound(err) {
			return model.WeeklyRule{}, false, nil
		}
		return model.WeeklyRule{}, false, err
	}
	return rule, true, nil
}

func (r *Repository) ListWeeklyRules(ctx context.Context, providerID string) ([]model.WeeklyRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id::text, weekday, is_available, start_minute, end_minute, session_duration_minutes
		FROM weekly_rules
		WHERE provider_id = $1
		ORDER BY weekday ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeeklyRule
	for rows.Next() {
		var rule model.WeeklyRule
		if err := rows.Scan(&rule.ProviderID, &rule.Weekday, &rule.IsAvailable, &rule.StartMinute, &rule.EndMinute, &rule.SessionDurationMinutes); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) BlackoutDates(ctx context.Context, providerID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(blackout_date, 'YYYY-MM-DD')
		FROM blackout_dates
		WHERE provider_id = $1
		ORDER BY blackout_date ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return dates, nil
}

func (r *Repository) ListBlackoutEntries(ctx context.Context, providerID string) ([]model.BlackoutDate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id::text, to_char(blackout_date, 'YYYY-MM-DD'), COALESCE(reason, '')
		FROM blackout_dates
		WHERE provider_id = $1
		ORDER BY blackout_date ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BlackoutDate
	for rows.Next() {
		var b model.BlackoutDate
		if err := rows.Scan(&b.ProviderID, &b.Date, &b.Reason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ReplaceSchedule swaps the full rule set and blackout set in one transaction
// so a concurrent reader never observes a half-replaced schedule.
func (r *Repository) ReplaceSchedule(ctx context.Context, providerID string, rules []model.WeeklyRule, blackouts []model.BlackoutDate) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_rules WHERE provider_id = $1`, providerID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM blackout_dates WHERE provider_id = $1`, providerID); err != nil {
		return err
	}

	for _, rule := range rules {
		if _, err := tx.Exec(ctx, `
			INSERT INTO weekly_rules (provider_id, weekday, is_available, start_minute, end_minute, session_duration_minutes)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, providerID, rule.Weekday, rule.IsAvailable, rule.StartMinute, rule.EndMinute, rule.SessionDurationMinutes); err != nil {
			return err
		}
	}
	for _, b := range blackouts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO blackout_dates (provider_id, blackout_date, reason)
			VALUES ($1, $2::date, NULLIF($3, ''))
		`, providerID, b.Date, b.Reason); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(map[string]any{
		"provider_id":    providerID,
		"rule_count":     len(rules),
		"blackout_count": len(blackouts),
		"replaced_at":    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "schedule",
		AggregateID:   providerID,
		EventType:     outbox.EventScheduleReplaced,
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
