package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	apperrors "posto-dashboard/internal/errors"
	"posto-dashboard/internal/observability"
	"posto-dashboard/internal/upstream"
)

// LoginPath is where unauthenticated pages are sent.
const LoginPath = "/login"

// Kind selects how a protected route reports a missing session.
type Kind int

const (
	// Page redirects to the login page.
	Page Kind = iota
	// API answers 401 with the JSON error envelope.
	API
	// Stream sends a Datastar redirect over SSE.
	Stream
)

type contextKey struct{}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// Require rejects requests without a valid session. Accepted requests carry
// the session, the upstream bearer token and the username in their context.
func (m *Manager) Require(kind Kind, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := m.Get(r)
			if err != nil {
				if !errors.Is(err, ErrNoSession) {
					m.Clear(w)
				}
				observability.FromContext(r.Context(), logger).Info("unauthenticated request",
					"path", r.URL.Path,
					"reason", err,
				)
				m.reject(w, r, kind, logger)
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, s)
			ctx = upstream.WithToken(ctx, s.Token)
			ctx = observability.WithUser(ctx, s.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *Manager) reject(w http.ResponseWriter, r *http.Request, kind Kind, logger *slog.Logger) {
	switch kind {
	case API:
		apperrors.WriteError(w, logger, apperrors.Unauthorized("Sessão expirada"), observability.GetRequestID(r.Context()))
	case Stream:
		sse := datastar.NewSSE(w, r)
		if err := sse.Redirect(LoginPath); err != nil {
			logger.Warn("send login redirect", "error", err)
		}
	default:
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
	}
}

// Expire clears the session after the backend rejected its token and
// reports it the same way Require would.
func (m *Manager) Expire(w http.ResponseWriter, r *http.Request, kind Kind, logger *slog.Logger) {
	m.Clear(w)
	m.reject(w, r, kind, logger)
}
