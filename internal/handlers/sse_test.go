package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"posto-dashboard/internal/models"
	"posto-dashboard/internal/upstream"
)

// sseGet builds a Datastar GET carrying signals in the query.
func sseGet(target, signals string) *http.Request {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return httptest.NewRequest(http.MethodGet, target+sep+"datastar="+url.QueryEscape(signals), nil)
}

func ssePost(method, target, signals string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(signals))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func assertEvents(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("stream missing %q\n%s", w, body)
		}
	}
}

func TestSSE_HandleFuel(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(env.signIn(t, sseGet("/sse/posto", `{"ini":"2025-03-01","fim":"2025-03-10"}`)))

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type = %q", ct)
	}
	assertEvents(t, w.Body.String(),
		"datastar-patch-elements",
		`id="view-content"`,
		"ETANOL",
		"01/03/2025 a 10/03/2025",
		"datastar-patch-signals",
		`"ini":"2025-03-01"`,
	)
}

func TestSSE_DefaultRange(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(env.signIn(t, sseGet("/sse/overview", `{}`)))

	assertEvents(t, w.Body.String(), "01/03/2025 a 17/03/2025", "R$ 1.700,00")
}

func TestSSE_InvalidRangeShowsInlineError(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(env.signIn(t, sseGet("/sse/conveniencia", `{"ini":"2025-03-10","fim":"2025-03-01"}`)))

	assertEvents(t, w.Body.String(), msgInvalidRange)
	if env.views.calls != 0 {
		t.Error("view should not be built for an invalid range")
	}
}

func TestSSE_UpstreamFailureShowsInlineError(t *testing.T) {
	env := newTestEnv(t)
	env.views.err = &upstream.StatusError{Endpoint: "/conveniencia/dashboard/conveniencia", Status: 503}

	w := env.serve(env.signIn(t, sseGet("/sse/conveniencia", `{}`)))

	assertEvents(t, w.Body.String(), `class="alert"`, msgUpstream)
	if strings.Contains(w.Body.String(), "datastar-patch-signals") {
		t.Error("failed views should not move the range")
	}
}

func TestSSE_RedirectsWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(sseGet("/sse/posto", `{}`))

	assertEvents(t, w.Body.String(), "/login")
	if env.views.calls != 0 {
		t.Error("view should not be built without a session")
	}
}

func TestSSE_RejectedTokenRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.views.err = fmt.Errorf("fuel: %w", upstream.ErrUnauthorized)

	w := env.serve(env.signIn(t, sseGet("/sse/posto", `{}`)))

	assertEvents(t, w.Body.String(), "/login")
	if !cleared(w) {
		t.Error("session cookie should be cleared")
	}
}

func TestSSE_GoalDialog(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(env.signIn(t, sseGet("/sse/metas?view=conveniencia", `{}`)))

	assertEvents(t, w.Body.String(), `id="goal-dialog"`, "BEBIDAS", "TABACARIA")
}

func TestSSE_SaveGoal(t *testing.T) {
	env := newTestEnv(t)

	body := `{"ini":"2025-03-01","fim":"2025-03-17","metaview":"posto","metaid":"","metacategoria":"Gás Natural","metavalor":9000}`
	w := env.serve(env.signIn(t, ssePost(http.MethodPost, "/sse/metas", body)))

	assertEvents(t, w.Body.String(), `id="goal-dialog"`, "GÁS NATURAL", "Meta salva", `id="view-content"`)

	list, err := env.goals.List(context.Background(), models.ViewFuel)
	if err != nil {
		t.Fatalf("list goals: %v", err)
	}
	found := false
	for _, g := range list {
		if g.Target == 9000 {
			found = true
		}
	}
	if !found {
		t.Errorf("saved goal missing from %+v", list)
	}
}

func TestSSE_SaveGoal_Invalid(t *testing.T) {
	env := newTestEnv(t)

	body := `{"metaview":"posto","metacategoria":"ETANOL","metavalor":-5}`
	w := env.serve(env.signIn(t, ssePost(http.MethodPost, "/sse/metas", body)))

	assertEvents(t, w.Body.String(), msgGoalInvalid)
}

func TestSSE_DeleteGoal(t *testing.T) {
	env := newTestEnv(t)
	list, err := env.goals.List(context.Background(), models.ViewStore)
	if err != nil {
		t.Fatalf("list goals: %v", err)
	}
	victim := list[0]

	w := env.serve(env.signIn(t, ssePost(http.MethodDelete, "/sse/metas?view=conveniencia&id="+victim.ID, `{}`)))

	assertEvents(t, w.Body.String(), "Meta removida")
	if _, err := env.goals.Get(context.Background(), victim.ID); err == nil {
		t.Error("goal should be deleted")
	}
}

func TestSSE_MonthlyTarget(t *testing.T) {
	env := newTestEnv(t)

	w := env.serve(env.signIn(t, ssePost(http.MethodPut, "/sse/metas/mensal", `{"mensal":350000}`)))
	assertEvents(t, w.Body.String(), "Meta mensal atualizada")

	v, err := env.goals.MonthlyTarget(context.Background())
	if err != nil || v != 350000 {
		t.Errorf("monthly target = %v, %v", v, err)
	}

	w = env.serve(env.signIn(t, ssePost(http.MethodPut, "/sse/metas/mensal", `{"mensal":-1}`)))
	assertEvents(t, w.Body.String(), "Meta mensal inválida")
}

func TestSSE_Chat(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    []string
	}{
		{"today filter", "mostrar dados de HOJE", []string{"chat-log", "mode append", `"ini":"2025-03-17"`, `"fim":"2025-03-17"`, "Filtros aplicados"}},
		{"week filter", "dados da semana", []string{`"ini":"2025-03-17"`, "Visualizando dados da semana"}},
		{"generic", "bom dia", []string{"Entendi sua solicitação", `"message":""`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			body := fmt.Sprintf(`{"ini":"2025-03-01","fim":"2025-03-17","message":%q}`, tt.message)

			w := env.serve(env.signIn(t, ssePost(http.MethodPost, "/sse/chat", body)))

			assertEvents(t, w.Body.String(), append(tt.want, tt.message)...)
		})
	}
}
