package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rafaelbst/agendly/libs/auth"
	"github.com/rafaelbst/agendly/internal/storage"
)

type providerIDKey struct{}

// ProviderIDFromContext returns the authenticated provider id set by
// RequireProvider.
func ProviderIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerIDKey{}).(string); ok {
		return v
	}
	return ""
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type AuthHandler struct {
	repo      *storage.Repository
	logger    *slog.Logger
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthHandler(repo *storage.Repository, logger *slog.Logger, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthHandler{repo: repo, logger: logger, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Slug        string `json:"slug"`
}

type authResponse struct {
	Token      string `json:"token"`
	ProviderID string `json:"provider_id"`
}

// Register creates a provider account and seeds its default weekly schedule.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))

	switch {
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		http.Error(w, "valid email is required", http.StatusBadRequest)
		return
	case len(req.Password) < 8:
		http.Error(w, "password must be at least 8 characters", http.StatusBadRequest)
		return
	case req.DisplayName == "":
		http.Error(w, "display_name is required", http.StatusBadRequest)
		return
	case !slugPattern.MatchString(req.Slug):
		http.Error(w, "slug must be lowercase letters, digits and dashes", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	p := storage.Provider{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: string(hash),
		DisplayName:  req.DisplayName,
		Slug:         req.Slug,
	}
	if err := h.repo.CreateProvider(r.Context(), p); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			http.Error(w, "email or slug already registered", http.StatusConflict)
			return
		}
		h.logger.Error("provider create failed", "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	// A fresh account starts with the stock Mon-Fri schedule so the booking
	// page works before the provider customizes anything.
	if err := h.repo.EnsureWeeklyDefaults(r.Context(), p.ID); err != nil {
		h.logger.Error("default schedule seed failed", "provider_id", p.ID, "error", err)
	}

	token, err := h.issueToken(p)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logger.Info("provider registered", "provider_id", p.ID, "slug", p.Slug)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, ProviderID: p.ID})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	p, found, err := h.repo.ProviderByEmail(r.Context(), req.Email)
	if err != nil {
		h.logger.Error("provider lookup failed", "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if !found || bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.issueToken(p)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, ProviderID: p.ID})
}

func (h *AuthHandler) issueToken(p storage.Provider) (string, error) {
	now := time.Now()
	return auth.SignHS256(auth.Claims{
		Sub:   p.ID,
		Email: p.Email,
		Iat:   now.Unix(),
		Exp:   now.Add(h.tokenTTL).Unix(),
	}, h.jwtSecret)
}

// ProviderBySlug is the public lookup behind booking links.
func (h *AuthHandler) ProviderBySlug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	slug := strings.ToLower(strings.TrimSpace(r.PathValue("slug")))
	if slug == "" {
		http.Error(w, "slug is required", http.StatusBadRequest)
		return
	}

	p, found, err := h.repo.ProviderBySlug(r.Context(), slug)
	if err != nil {
		h.logger.Error("provider slug lookup failed", "slug", slug, "error", err)
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if !found {
		http.Error(w, "provider not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"provider_id":  p.ID,
		"display_name": p.DisplayName,
		"slug":         p.Slug,
	})
}

// RequireProvider verifies the bearer token and stashes the provider id in the
// request context.
func RequireProvider(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := auth.VerifyHS256(token, secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), providerIDKey{}, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
