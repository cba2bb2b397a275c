package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rafaelbst/agendly/internal/booking"
	"github.com/rafaelbst/agendly/internal/model"
	"github.com/rafaelbst/agendly/internal/outbox"
)

// ErrInvalidTransition is returned when a cancel/complete targets an
// appointment that is not in the confirmed state.
var ErrInvalidTransition = errors.New("appointment is not confirmed")

// InsertAppointment writes the appointment and its confirmed event in one
// transaction. The partial unique index on (provider_id, appointment_date,
// start_time) WHERE status='confirmed' turns a concurrent double-booking into
// booking.ErrSlotTaken.
func (r *Repository) InsertAppointment(ctx context.Context, appt *model.Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments
			(id, provider_id, client_name, client_email, client_phone, appointment_date, start_time, end_time, notes, status, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6::date, $7::time, $8::time, NULLIF($9, ''), $10, $11)
	`, appt.ID, appt.ProviderID, appt.ClientName, appt.ClientEmail, appt.ClientPhone,
		appt.Date, appt.StartTime, appt.EndTime, appt.Notes, appt.Status, appt.CreatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return booking.ErrSlotTaken
		}
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"provider_id":    appt.ProviderID,
		"client_name":    appt.ClientName,
		"client_email":   appt.ClientEmail,
		"date":           appt.Date,
		"start_time":     appt.StartTime,
		"end_time":       appt.EndTime,
	})
	if err != nil {
		return err
	}
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentConfirmed,
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) ConfirmedStartTimes(ctx context.Context, providerID, date string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT to_char(start_time, 'HH24:MI')
		FROM appointments
		WHERE provider_id = $1
			AND appointment_date = $2::date
			AND status = 'confirmed'
		ORDER BY start_time ASC
	`, providerID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var starts []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		starts = append(starts, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return starts, nil
}

func (r *Repository) CountConfirmedBetween(ctx context.Context, providerID, monthStart, monthEnd string) (int, error) {
	var cnt int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE provider_id = $1
			AND status = 'confirmed'
			AND appointment_date >= $2::date
			AND appointment_date < $3::date
	`, providerID, monthStart, monthEnd).Scan(&cnt)
	return cnt, err
}

func (r *Repository) ListAppointments(ctx context.Context, providerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, provider_id::text, client_name, client_email, COALESCE(client_phone, ''),
			to_char(appointment_date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
			COALESCE(notes, ''), status, created_at
		FROM appointments
		WHERE provider_id = $1
		ORDER BY appointment_date DESC, start_time DESC
		LIMIT $2
	`, providerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(
			&a.ID,
			&a.ProviderID,
			&a.ClientName,
			&a.ClientEmail,
			&a.ClientPhone,
			&a.Date,
			&a.StartTime,
			&a.EndTime,
			&a.Notes,
			&a.Status,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

// UpdateAppointmentStatus moves a confirmed appointment to cancelled or
// completed and records the matching event. Status transitions never touch
// slot math directly; cancelling simply stops the row from counting as
// confirmed.
func (r *Repository) UpdateAppointmentStatus(ctx context.Context, providerID, appointmentID, newStatus string) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var a model.Appointment
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3
		WHERE id = $1 AND provider_id = $2 AND status = 'confirmed'
		RETURNING id::text, provider_id::text, client_name, client_email, COALESCE(client_phone, ''),
			to_char(appointment_date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
			COALESCE(notes, ''), status, created_at
	`, appointmentID, providerID, newStatus).Scan(
		&a.ID,
		&a.ProviderID,
		&a.ClientName,
		&a.ClientEmail,
		&a.ClientPhone,
		&a.Date,
		&a.StartTime,
		&a.EndTime,
		&a.Notes,
		&a.Status,
		&a.CreatedAt,
	)
	if err != nil {
		if IsNotFound(err) {
			return model.Appointment{}, ErrInvalidTransition
		}
		return model.Appointment{}, err
	}

	eventType := outbox.EventAppointmentCancelled
	if newStatus == model.StatusCompleted {
		eventType = outbox.EventAppointmentCompleted
	}
	payload, err := json.Marshal(map[string]any{
		"appointment_id": a.ID,
		"provider_id":    a.ProviderID,
		"date":           a.Date,
		"start_time":     a.StartTime,
		"status":         a.Status,
		"changed_at":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}
