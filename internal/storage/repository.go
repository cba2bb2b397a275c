package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rafaelbst/agendly/internal/outbox"
	"github.com/rafaelbst/agendly/libs/db"
)

// Repository is the single persistence layer: weekly rules, blackout dates,
// the appointment ledger, subscriptions, and provider accounts all live in one
// Postgres database, so one type owns the pool and the outbox wiring.
type Repository struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outboxRepo: outboxRepo}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
