package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	apperrors "posto-dashboard/internal/errors"
	"posto-dashboard/internal/chat"
	"posto-dashboard/internal/goals"
	"posto-dashboard/internal/models"
	"posto-dashboard/internal/observability"
	"posto-dashboard/internal/session"
	"posto-dashboard/internal/ui/templates"
	"posto-dashboard/internal/upstream"
)

// rangeSignals are the page signals every dashboard request carries.
type rangeSignals struct {
	Ini string `json:"ini"`
	Fim string `json:"fim"`
}

type goalSignals struct {
	rangeSignals
	View     string  `json:"metaview"`
	ID       string  `json:"metaid"`
	Category string  `json:"metacategoria"`
	Target   float64 `json:"metavalor"`
}

type monthlySignals struct {
	rangeSignals
	Target float64 `json:"mensal"`
}

type chatSignals struct {
	rangeSignals
	Message string `json:"message"`
}

type SSEHandlers struct {
	views     Views
	goals     Goals
	assistant Assistant
	sessions  *session.Manager
	logger    *slog.Logger
}

func NewSSEHandlers(views Views, goalSvc Goals, assistant Assistant, sessions *session.Manager, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		views:     views,
		goals:     goalSvc,
		assistant: assistant,
		sessions:  sessions,
		logger:    logger,
	}
}

func (h *SSEHandlers) log(r *http.Request) *slog.Logger {
	return observability.FromContext(r.Context(), h.logger)
}

// patch renders components and sends them in order. Rendering happens
// before the stream opens so a failed render can still answer 500.
func (h *SSEHandlers) patch(w http.ResponseWriter, r *http.Request, components ...templ.Component) *datastar.ServerSentEventGenerator {
	fragments := make([]string, 0, len(components))
	for _, c := range components {
		html, err := templates.HTML(r.Context(), c)
		if err != nil {
			apperrors.WriteError(w, h.log(r), apperrors.InternalWrap(err, "render error"), observability.GetRequestID(r.Context()))
			return nil
		}
		fragments = append(fragments, html)
	}

	sse := datastar.NewSSE(w, r)
	for _, html := range fragments {
		if err := sse.PatchElements(html); err != nil {
			h.log(r).Warn("patch elements", "error", err)
			return sse
		}
	}
	return sse
}

// expired reports whether err means the backend dropped the session, in
// which case the client has already been sent to the login page.
func (h *SSEHandlers) expired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, upstream.ErrUnauthorized) {
		return false
	}
	h.sessions.Expire(w, r, session.Stream, h.logger)
	return true
}

func (h *SSEHandlers) readRange(r *http.Request, s *rangeSignals) (models.DateRange, error) {
	return h.views.ParseRange(strings.TrimSpace(s.Ini), strings.TrimSpace(s.Fim))
}

// render builds the component for view over rng; failures become the
// inline error panel.
func (h *SSEHandlers) render(ctx context.Context, view models.View, rng models.DateRange) (templ.Component, error) {
	var (
		c   templ.Component
		err error
	)
	switch view {
	case models.ViewFuel:
		var v *models.FuelView
		if v, err = h.views.FuelView(ctx, rng); err == nil {
			c = templates.FuelContent(v)
		}
	case models.ViewStore:
		var v *models.StoreView
		if v, err = h.views.StoreView(ctx, rng); err == nil {
			c = templates.StoreContent(v)
		}
	default:
		var v *models.Overview
		if v, err = h.views.Overview(ctx, rng); err == nil {
			c = templates.OverviewContent(v)
		}
	}
	if err != nil {
		return templates.ViewError(viewFailure(err).Message), err
	}
	return c, nil
}

func (h *SSEHandlers) serveView(w http.ResponseWriter, r *http.Request, view models.View) {
	var signals rangeSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.patch(w, r, templates.ViewError("Parâmetros inválidos"))
		return
	}
	rng, err := h.readRange(r, &signals)
	if err != nil {
		h.patch(w, r, templates.ViewError(msgInvalidRange))
		return
	}

	c, err := h.render(r.Context(), view, rng)
	if err != nil {
		if h.expired(w, r, err) {
			return
		}
		h.log(r).Error("build view", "view", view, "range", rng.String(), "error", err)
	}

	sse := h.patch(w, r, c)
	if sse == nil || err != nil {
		return
	}
	if err := sse.MarshalAndPatchSignals(rangeSignals{Ini: rng.StartParam(), Fim: rng.EndParam()}); err != nil {
		h.log(r).Warn("patch range signals", "error", err)
	}
}

func (h *SSEHandlers) HandleFuel(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, models.ViewFuel)
}

func (h *SSEHandlers) HandleStore(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, models.ViewStore)
}

func (h *SSEHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	h.serveView(w, r, models.ViewOverview)
}

// HandleGoals opens the goal dialog of ?view=.
func (h *SSEHandlers) HandleGoals(w http.ResponseWriter, r *http.Request) {
	view, ok := viewFromString(r.URL.Query().Get("view"))
	if !ok {
		h.patch(w, r, templates.Toast("Visão sem metas"))
		return
	}
	list, err := h.goals.List(r.Context(), view)
	if err != nil {
		h.log(r).Error("list goals", "view", view, "error", err)
		h.patch(w, r, templates.GoalDialog(templates.GoalDialogData{View: view, Error: classify(err).Message}))
		return
	}
	h.patch(w, r, templates.GoalDialog(templates.GoalDialogData{View: view, Goals: list}))
}

// HandleSaveGoal creates or updates the goal in the dialog signals, then
// refreshes the dialog and the view behind it.
func (h *SSEHandlers) HandleSaveGoal(w http.ResponseWriter, r *http.Request) {
	var signals goalSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.patch(w, r, templates.Toast("Parâmetros inválidos"))
		return
	}
	view, ok := viewFromString(signals.View)
	if !ok {
		h.patch(w, r, templates.Toast("Visão sem metas"))
		return
	}

	g, err := h.goals.Save(r.Context(), goals.Goal{
		ID:       signals.ID,
		View:     view,
		Category: signals.Category,
		Target:   signals.Target,
	})
	if err != nil {
		h.log(r).Warn("save goal", "view", view, "error", err)
		h.afterGoalChange(w, r, view, &signals.rangeSignals, classify(err).Message, "")
		return
	}
	h.log(r).Info("goal saved", "goal_id", g.ID, "view", g.View, "category", g.Category, "target", g.Target)
	h.afterGoalChange(w, r, view, &signals.rangeSignals, "", "Meta salva: "+g.Category)
}

func (h *SSEHandlers) HandleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	var signals rangeSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.patch(w, r, templates.Toast("Parâmetros inválidos"))
		return
	}
	q := r.URL.Query()
	view, ok := viewFromString(q.Get("view"))
	if !ok {
		h.patch(w, r, templates.Toast("Visão sem metas"))
		return
	}

	if err := h.goals.Delete(r.Context(), q.Get("id")); err != nil {
		h.log(r).Warn("delete goal", "goal_id", q.Get("id"), "error", err)
		h.afterGoalChange(w, r, view, &signals, classify(err).Message, "")
		return
	}
	h.log(r).Info("goal deleted", "goal_id", q.Get("id"), "view", view)
	h.afterGoalChange(w, r, view, &signals, "", "Meta removida")
}

func (h *SSEHandlers) afterGoalChange(w http.ResponseWriter, r *http.Request, view models.View, signals *rangeSignals, dialogErr, toast string) {
	dialog := templates.GoalDialogData{View: view, Error: dialogErr}
	list, err := h.goals.List(r.Context(), view)
	if err != nil {
		dialog.Error = classify(err).Message
	}
	dialog.Goals = list

	components := []templ.Component{templates.GoalDialog(dialog)}
	if toast != "" {
		components = append(components, templates.Toast(toast))
	}
	if rng, err := h.readRange(r, signals); err == nil {
		content, err := h.render(r.Context(), view, rng)
		if err != nil && h.expired(w, r, err) {
			return
		}
		components = append(components, content)
	}
	h.patch(w, r, components...)
}

func (h *SSEHandlers) HandleMonthlyTarget(w http.ResponseWriter, r *http.Request) {
	var signals monthlySignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.patch(w, r, templates.Toast("Parâmetros inválidos"))
		return
	}
	if err := h.goals.SetMonthlyTarget(r.Context(), signals.Target); err != nil {
		h.log(r).Warn("set monthly target", "target", signals.Target, "error", err)
		h.patch(w, r, templates.Toast("Meta mensal inválida"))
		return
	}
	h.log(r).Info("monthly target updated", "target", signals.Target)

	components := []templ.Component{templates.Toast("Meta mensal atualizada")}
	if rng, err := h.readRange(r, &signals.rangeSignals); err == nil {
		content, err := h.render(r.Context(), models.ViewOverview, rng)
		if err != nil && h.expired(w, r, err) {
			return
		}
		components = append(components, content)
	}
	h.patch(w, r, components...)
}

// HandleChat appends the question and the assistant's reply to the chat
// log. Date filter commands move the page's date range.
func (h *SSEHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	var signals chatSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.patch(w, r, templates.Toast("Parâmetros inválidos"))
		return
	}
	message := strings.TrimSpace(signals.Message)
	if message == "" {
		return
	}

	reply := h.assistant.Reply(r.Context(), message)
	h.log(r).Info("chat reply", "tag", reply.Tag, "source", reply.Source)

	question, err := templates.HTML(r.Context(), templates.ChatMessage(templates.ChatEntry{Mine: true, Text: message, At: reply.At}))
	if err != nil {
		apperrors.WriteError(w, h.log(r), apperrors.InternalWrap(err, "render error"), observability.GetRequestID(r.Context()))
		return
	}
	answer, err := templates.HTML(r.Context(), templates.ChatMessage(templates.ChatEntry{Text: reply.Text, At: reply.At}))
	if err != nil {
		apperrors.WriteError(w, h.log(r), apperrors.InternalWrap(err, "render error"), observability.GetRequestID(r.Context()))
		return
	}

	sse := datastar.NewSSE(w, r)
	for _, html := range []string{question, answer} {
		if err := sse.PatchElements(html, datastar.WithSelectorID(templates.ChatLogID), datastar.WithModeAppend()); err != nil {
			h.log(r).Warn("patch chat", "error", err)
			return
		}
	}

	next := map[string]any{"message": ""}
	if rng, ok := h.rangeFor(reply.Tag); ok {
		next["ini"] = rng.StartParam()
		next["fim"] = rng.EndParam()
	}
	if err := sse.MarshalAndPatchSignals(next); err != nil {
		h.log(r).Warn("patch chat signals", "error", err)
		return
	}

	if reply.Toast != "" {
		toast, err := templates.HTML(r.Context(), templates.Toast(reply.Toast))
		if err == nil {
			err = sse.PatchElements(toast)
		}
		if err != nil {
			h.log(r).Warn("patch toast", "error", err)
		}
	}
}

func (h *SSEHandlers) rangeFor(tag chat.Tag) (models.DateRange, bool) {
	switch tag {
	case chat.TagFilterToday:
		return models.SingleDay(h.views.Now()), true
	case chat.TagFilterWeek:
		return models.WeekToDate(h.views.Now()), true
	default:
		return models.DateRange{}, false
	}
}
