package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"

	"posto-dashboard/internal/chat"
	"posto-dashboard/internal/models"
	"posto-dashboard/internal/observability"
	"posto-dashboard/internal/session"
	"posto-dashboard/internal/ui/templates"
	"posto-dashboard/internal/upstream"
)

const (
	DashboardPath = "/dashboard"

	renderTimeout = 10 * time.Second
	loginTimeout  = 20 * time.Second

	msgBadCredentials = "Usuário ou senha inválidos"
	msgConnection     = "Erro ao conectar à API"
)

type PageHandlers struct {
	auth         Authenticator
	views        Views
	sessions     *session.Manager
	pollInterval time.Duration
	logger       *slog.Logger
}

func NewPageHandlers(auth Authenticator, views Views, sessions *session.Manager, pollInterval time.Duration, logger *slog.Logger) *PageHandlers {
	return &PageHandlers{
		auth:         auth,
		views:        views,
		sessions:     sessions,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	html, err := templates.HTML(ctx, c)
	if err != nil {
		observability.FromContext(r.Context(), h.logger).Error("render page", "path", r.URL.Path, "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}

func (h *PageHandlers) signedIn(r *http.Request) bool {
	_, err := h.sessions.Get(r)
	return err == nil
}

// HandleRoot sends the user to the dashboard or the login page.
func (h *PageHandlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if h.signedIn(r) {
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, session.LoginPath, http.StatusSeeOther)
}

func (h *PageHandlers) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	if h.signedIn(r) {
		http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, templates.Login(templates.LoginData{}))
}

func (h *PageHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, templates.Login(templates.LoginData{Error: msgBadCredentials}))
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	logger := observability.FromContext(r.Context(), h.logger)

	if username == "" || password == "" {
		h.render(w, r, http.StatusUnauthorized, templates.Login(templates.LoginData{Username: username, Error: msgBadCredentials}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), loginTimeout)
	defer cancel()

	token, err := h.auth.Login(ctx, username, password)
	switch {
	case errors.Is(err, upstream.ErrInvalidCredentials):
		logger.Info("login rejected", "username", username)
		h.render(w, r, http.StatusUnauthorized, templates.Login(templates.LoginData{Username: username, Error: msgBadCredentials}))
		return
	case err != nil:
		logger.Error("login failed", "username", username, "error", err)
		h.render(w, r, http.StatusBadGateway, templates.Login(templates.LoginData{Username: username, Error: msgConnection}))
		return
	}

	s := h.sessions.New(token, username)
	if err := h.sessions.Set(w, s); err != nil {
		logger.Error("store session", "error", err)
		h.render(w, r, http.StatusInternalServerError, templates.Login(templates.LoginData{Username: username, Error: msgConnection}))
		return
	}
	logger.Info("user logged in", "username", username, "expires_at", s.ExpiresAt)
	http.Redirect(w, r, DashboardPath, http.StatusSeeOther)
}

func (h *PageHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if s, err := h.sessions.Get(r); err == nil {
		observability.FromContext(r.Context(), h.logger).Info("user logged out", "username", s.Username)
	}
	h.sessions.Clear(w)
	http.Redirect(w, r, session.LoginPath, http.StatusSeeOther)
}

// HandleDashboard renders the shell for ?tab=; unknown tabs fall back to
// the fuel station view.
func (h *PageHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tab := models.View(q.Get("tab"))
	if !tab.Valid() {
		tab = models.ViewFuel
	}

	rng, err := h.views.ParseRange(q.Get("ini"), q.Get("fim"))
	if err != nil {
		rng = models.MonthToDate(h.views.Now())
	}

	s, _ := session.FromContext(r.Context())
	h.render(w, r, http.StatusOK, templates.Dashboard(templates.ShellData{
		Tab:          tab,
		Username:     s.Username,
		Range:        rng,
		PollInterval: h.pollInterval,
		Greeting:     chat.Greeting,
	}))
}
