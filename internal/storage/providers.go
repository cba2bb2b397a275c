package storage

import (
	"context"
	"errors"
	"time"
)

type Provider struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Slug         string
	CreatedAt    time.Time
}

var ErrEmailTaken = errors.New("email already registered")

func (r *Repository) CreateProvider(ctx context.Context, p Provider) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO providers (id, email, password_hash, display_name, slug)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Email, p.PasswordHash, p.DisplayName, p.Slug)
	if err != nil && IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *Repository) ProviderByEmail(ctx context.Context, email string) (Provider, bool, error) {
	var p Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, email, password_hash, display_name, slug, created_at
		FROM providers
		WHERE email = $1
	`, email).Scan(&p.ID, &p.Email, &p.PasswordHash, &p.DisplayName, &p.Slug, &p.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return Provider{}, false, nil
		}
		return Provider{}, false, err
	}
	return p, true, nil
}

// ProviderBySlug resolves the public booking link to a provider.
func (r *Repository) ProviderBySlug(ctx context.Context, slug string) (Provider, bool, error) {
	var p Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, email, password_hash, display_name, slug, created_at
		FROM providers
		WHERE slug = $1
	`, slug).Scan(&p.ID, &p.Email, &p.PasswordHash, &p.DisplayName, &p.Slug, &p.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return Provider{}, false, nil
		}
		return Provider{}, false, err
	}
	return p, true, nil
}
