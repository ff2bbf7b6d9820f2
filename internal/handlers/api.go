package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	apperrors "posto-dashboard/internal/errors"
	"posto-dashboard/internal/goals"
	"posto-dashboard/internal/models"
	"posto-dashboard/internal/observability"
	"posto-dashboard/internal/session"
	"posto-dashboard/internal/upstream"
)

const maxRequestBody = 64 << 10

type APIHandlers struct {
	views     Views
	goals     Goals
	assistant Assistant
	refresher Refresher
	sessions  *session.Manager
	logger    *slog.Logger
	started   time.Time
}

func NewAPIHandlers(views Views, goalSvc Goals, assistant Assistant, refresher Refresher, sessions *session.Manager, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		views:     views,
		goals:     goalSvc,
		assistant: assistant,
		refresher: refresher,
		sessions:  sessions,
		logger:    logger,
		started:   time.Now(),
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, upstream.ErrUnauthorized) {
		h.sessions.Expire(w, r, session.API, h.logger)
		return
	}
	apperrors.WriteError(w, observability.FromContext(r.Context(), h.logger), classify(err), observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) failView(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, upstream.ErrUnauthorized) {
		h.sessions.Expire(w, r, session.API, h.logger)
		return
	}
	apperrors.WriteError(w, observability.FromContext(r.Context(), h.logger), viewFailure(err), observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) dateRange(w http.ResponseWriter, r *http.Request) (models.DateRange, bool) {
	q := r.URL.Query()
	rng, err := h.views.ParseRange(q.Get("ini"), q.Get("fim"))
	if err != nil {
		h.fail(w, r, apperrors.ValidationWrap(err, msgInvalidRange))
		return models.DateRange{}, false
	}
	return rng, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apperrors.ValidationWrap(err, "Corpo da requisição inválido")
	}
	return nil
}

func (h *APIHandlers) HandleFuel(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	view, err := h.views.FuelView(r.Context(), rng)
	if err != nil {
		h.failView(w, r, err)
		return
	}
	apperrors.WriteSuccessWithHeaders(w, view, map[string]string{"Cache-Control": "no-store"})
}

func (h *APIHandlers) HandleStore(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	view, err := h.views.StoreView(r.Context(), rng)
	if err != nil {
		h.failView(w, r, err)
		return
	}
	apperrors.WriteSuccessWithHeaders(w, view, map[string]string{"Cache-Control": "no-store"})
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	rng, ok := h.dateRange(w, r)
	if !ok {
		return
	}
	view, err := h.views.Overview(r.Context(), rng)
	if err != nil {
		h.failView(w, r, err)
		return
	}
	apperrors.WriteSuccessWithHeaders(w, view, map[string]string{"Cache-Control": "no-store"})
}

type goalRequest struct {
	View     models.View `json:"view"`
	Category string      `json:"category"`
	Target   float64     `json:"target"`
}

func (h *APIHandlers) HandleListGoals(w http.ResponseWriter, r *http.Request) {
	view, ok := viewFromString(r.URL.Query().Get("view"))
	if !ok {
		h.fail(w, r, apperrors.Validation("view deve ser posto ou conveniencia"))
		return
	}
	list, err := h.goals.List(r.Context(), view)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, list)
}

func (h *APIHandlers) HandleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.goals.Save(r.Context(), goals.Goal{View: req.View, Category: req.Category, Target: req.Target})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	observability.FromContext(r.Context(), h.logger).Info("goal saved", "goal_id", g.ID, "view", g.View, "category", g.Category)
	apperrors.WriteStatus(w, http.StatusCreated, g)
}

func (h *APIHandlers) HandleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	current, err := h.goals.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req goalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.View == "" {
		req.View = current.View
	}
	g, err := h.goals.Save(r.Context(), goals.Goal{ID: id, View: req.View, Category: req.Category, Target: req.Target})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	observability.FromContext(r.Context(), h.logger).Info("goal updated", "goal_id", g.ID, "target", g.Target)
	apperrors.WriteSuccess(w, g)
}

func (h *APIHandlers) HandleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.goals.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	observability.FromContext(r.Context(), h.logger).Info("goal deleted", "goal_id", id)
	w.WriteHeader(http.StatusNoContent)
}

type monthlyTarget struct {
	Target float64 `json:"target"`
}

func (h *APIHandlers) HandleGetMonthlyTarget(w http.ResponseWriter, r *http.Request) {
	v, err := h.goals.MonthlyTarget(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, monthlyTarget{Target: v})
}

func (h *APIHandlers) HandleSetMonthlyTarget(w http.ResponseWriter, r *http.Request) {
	var req monthlyTarget
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.goals.SetMonthlyTarget(r.Context(), req.Target); err != nil {
		h.fail(w, r, err)
		return
	}
	apperrors.WriteSuccess(w, req)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *APIHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Message == "" {
		h.fail(w, r, apperrors.Validation("message é obrigatório"))
		return
	}
	apperrors.WriteSuccess(w, h.assistant.Reply(r.Context(), req.Message))
}

func (h *APIHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.refresher.Refresh(r.Context()); err != nil {
		h.fail(w, r, fmt.Errorf("refresh cache: %w", err))
		return
	}
	observability.FromContext(r.Context(), h.logger).Info("upstream cache invalidated")
	apperrors.WriteSuccess(w, map[string]string{"status": "refreshed"})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	apperrors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.views.Stats()
	stats["uptime"] = time.Since(h.started).Round(time.Second).String()
	stats["goroutines"] = runtime.NumGoroutine()

	apperrors.WriteSuccess(w, stats)
}
