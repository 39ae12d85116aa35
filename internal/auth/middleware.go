package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/cardbook/internal/apperror"
	"github.com/sakif/cardbook/internal/model"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserFinder is the slice of the user repository the gate needs. A token
// whose subject no longer exists is rejected.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth rejects requests without a valid access token for an
// existing user with a 401 envelope. A failed user lookup is a 500.
func RequireAuth(tokens *TokenService, users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := authenticate(r, tokens, users)
			if err != nil {
				if errors.Is(err, errLookup) {
					writeInternal(w, r, err)
					return
				}
				writeUnauthorized(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth resolves the caller when it can and otherwise lets the
// request through as a guest. A failed user lookup is still a 500.
func OptionalAuth(tokens *TokenService, users UserFinder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := authenticate(r, tokens, users)
			switch {
			case err == nil:
				r = r.WithContext(WithUserID(r.Context(), userID))
			case errors.Is(err, errLookup):
				writeInternal(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID stores the caller's id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the caller set by RequireAuth or OptionalAuth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

var (
	errNoToken = errors.New("auth: missing bearer token")
	errLookup  = errors.New("auth: user lookup failed")
)

func authenticate(r *http.Request, tokens *TokenService, users UserFinder) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errNoToken
	}

	userID, err := tokens.Validate(strings.TrimSpace(token))
	if err != nil {
		return "", err
	}
	if _, err := users.GetByID(r.Context(), userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", errLookup, err)
	}
	return userID, nil
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	message := "valid authentication required"
	if errors.Is(err, ErrTokenExpired) {
		message = "token expired, please log in again"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": message})
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "authentication failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "An internal error occurred"})
}
