package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"posto-dashboard/internal/chat"
	"posto-dashboard/internal/config"
	"posto-dashboard/internal/goals"
	"posto-dashboard/internal/models"
	"posto-dashboard/internal/session"
)

var testNow = time.Date(2025, 3, 17, 15, 0, 0, 0, time.UTC)

type fakeViews struct {
	err   error
	calls int
}

func (f *fakeViews) FuelView(_ context.Context, r models.DateRange) (*models.FuelView, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.FuelView{
		Range:       r,
		KPIs:        []models.KPI{{Key: "faturamento", Title: "Faturamento", Value: 1500, Unit: models.UnitMoney}},
		Categories:  []models.CategoryTotal{{Category: "ETANOL", Revenue: 1500, Liters: 300, Count: 6}},
		Ranking:     []models.RankingEntry{{Position: 1, Name: "Ana", Revenue: 1500, Sales: 6}},
		Performance: []models.PerformanceRow{{Category: "ETANOL", Goal: 30000, Actual: 1500, Liters: 300, Variance: -95, Shortfall: 28500}},
		Total:       models.PerformanceRow{Category: "TOTAL", Goal: 30000, Actual: 1500, Liters: 300, Variance: -95, Shortfall: 28500},
		FetchedAt:   testNow,
	}, nil
}

func (f *fakeViews) StoreView(_ context.Context, r models.DateRange) (*models.StoreView, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.StoreView{
		Range:       r,
		Sections:    []models.SectionPerformance{{Section: "BEBIDAS", Revenue: 200, Cost: 120, Margin: 40, Share: 100}},
		Performance: []models.PerformanceRow{{Category: "BEBIDAS", Goal: 15000, Actual: 200}},
		Total:       models.PerformanceRow{Category: "TOTAL", Goal: 15000, Actual: 200},
		FetchedAt:   testNow,
	}, nil
}

func (f *fakeViews) Overview(_ context.Context, r models.DateRange) (*models.Overview, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Overview{Range: r, FuelRevenue: 1500, StoreRevenue: 200, TotalRevenue: 1700, MonthlyTarget: 280000, Progress: 0.6, FetchedAt: testNow}, nil
}

func (f *fakeViews) ParseRange(ini, fim string) (models.DateRange, error) {
	return models.ParseDateRange(ini, fim, testNow)
}

func (f *fakeViews) Now() time.Time { return testNow }

func (f *fakeViews) Stats() map[string]any {
	return map[string]any{"in_flight": 0}
}

type fakeAuth struct {
	token string
	err   error
	user  string
}

func (f *fakeAuth) Login(_ context.Context, username, _ string) (string, error) {
	f.user = username
	return f.token, f.err
}

type fakeRefresher struct{ calls int }

func (f *fakeRefresher) Refresh(context.Context) error {
	f.calls++
	return nil
}

type testEnv struct {
	views    *fakeViews
	goals    *goals.Service
	sessions *session.Manager
	auth     *fakeAuth
	logger   *slog.Logger
	mux      *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := goals.OpenJSONFile(filepath.Join(t.TempDir(), "goals.json"))
	if err != nil {
		t.Fatalf("open goal store: %v", err)
	}
	sessions, err := session.NewManager(config.SessionConfig{
		Secret:     "0123456789abcdef0123",
		CookieName: "posto_session",
		DefaultTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	env := &testEnv{
		views:    &fakeViews{},
		goals:    goals.NewService(store),
		sessions: sessions,
		auth:     &fakeAuth{token: "token-1"},
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	assistant := chat.NewAssistant(nil, logger)
	api := NewAPIHandlers(env.views, env.goals, assistant, &fakeRefresher{}, sessions, logger)
	sse := NewSSEHandlers(env.views, env.goals, assistant, sessions, logger)
	pages := NewPageHandlers(env.auth, env.views, sessions, 30*time.Second, logger)
	exports := NewExportHandlers(env.views, sessions, logger)

	apiAuth := sessions.Require(session.API, logger)
	streamAuth := sessions.Require(session.Stream, logger)
	pageAuth := sessions.Require(session.Page, logger)

	m := env.mux
	m.HandleFunc("GET /", pages.HandleRoot)
	m.HandleFunc("GET /login", pages.HandleLoginPage)
	m.HandleFunc("POST /login", pages.HandleLogin)
	m.HandleFunc("POST /logout", pages.HandleLogout)
	m.Handle("GET /dashboard", pageAuth(http.HandlerFunc(pages.HandleDashboard)))
	m.HandleFunc("GET /health", api.HandleHealth)
	m.Handle("GET /admin/stats", apiAuth(http.HandlerFunc(api.HandleStats)))
	m.Handle("GET /api/posto", apiAuth(http.HandlerFunc(api.HandleFuel)))
	m.Handle("GET /api/conveniencia", apiAuth(http.HandlerFunc(api.HandleStore)))
	m.Handle("GET /api/overview", apiAuth(http.HandlerFunc(api.HandleOverview)))
	m.Handle("GET /api/metas", apiAuth(http.HandlerFunc(api.HandleListGoals)))
	m.Handle("POST /api/metas", apiAuth(http.HandlerFunc(api.HandleCreateGoal)))
	m.Handle("PUT /api/metas/{id}", apiAuth(http.HandlerFunc(api.HandleUpdateGoal)))
	m.Handle("DELETE /api/metas/{id}", apiAuth(http.HandlerFunc(api.HandleDeleteGoal)))
	m.Handle("GET /api/metas/mensal", apiAuth(http.HandlerFunc(api.HandleGetMonthlyTarget)))
	m.Handle("PUT /api/metas/mensal", apiAuth(http.HandlerFunc(api.HandleSetMonthlyTarget)))
	m.Handle("POST /api/chat", apiAuth(http.HandlerFunc(api.HandleChat)))
	m.Handle("GET /sse/posto", streamAuth(http.HandlerFunc(sse.HandleFuel)))
	m.Handle("GET /sse/conveniencia", streamAuth(http.HandlerFunc(sse.HandleStore)))
	m.Handle("GET /sse/overview", streamAuth(http.HandlerFunc(sse.HandleOverview)))
	m.Handle("GET /sse/metas", streamAuth(http.HandlerFunc(sse.HandleGoals)))
	m.Handle("POST /sse/metas", streamAuth(http.HandlerFunc(sse.HandleSaveGoal)))
	m.Handle("DELETE /sse/metas", streamAuth(http.HandlerFunc(sse.HandleDeleteGoal)))
	m.Handle("PUT /sse/metas/mensal", streamAuth(http.HandlerFunc(sse.HandleMonthlyTarget)))
	m.Handle("POST /sse/chat", streamAuth(http.HandlerFunc(sse.HandleChat)))
	m.Handle("GET /export/{view}", pageAuth(http.HandlerFunc(exports.HandleExport)))

	return env
}

// signIn attaches a valid session cookie to req.
func (e *testEnv) signIn(t *testing.T, req *http.Request) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := e.sessions.Set(rec, e.sessions.New("token-1", "ana")); err != nil {
		t.Fatalf("set session: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

// cleared reports whether the response deletes the session cookie.
func cleared(w *httptest.ResponseRecorder) bool {
	for _, c := range w.Result().Cookies() {
		if c.Name == "posto_session" && c.MaxAge < 0 {
			return true
		}
	}
	return false
}
