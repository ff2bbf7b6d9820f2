package server

import (
	"log/slog"
	"net/http"

	"posto-dashboard/internal/config"
	"posto-dashboard/internal/handlers"
	"posto-dashboard/internal/middleware"
	"posto-dashboard/internal/observability"
	"posto-dashboard/internal/session"
)

// Deps are the services the routes are served from.
type Deps struct {
	Views     handlers.Views
	Goals     handlers.Goals
	Assistant handlers.Assistant
	Auth      handlers.Authenticator
	Refresher handlers.Refresher
	Sessions  *session.Manager
	Metrics   *observability.Metrics
}

type Server struct {
	mux            *http.ServeMux
	logger         *slog.Logger
	metrics        *observability.Metrics
	sessions       *session.Manager
	apiHandlers    *handlers.APIHandlers
	sseHandlers    *handlers.SSEHandlers
	pageHandlers   *handlers.PageHandlers
	exportHandlers *handlers.ExportHandlers
}

func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		logger:         logger,
		metrics:        deps.Metrics,
		sessions:       deps.Sessions,
		apiHandlers:    handlers.NewAPIHandlers(deps.Views, deps.Goals, deps.Assistant, deps.Refresher, deps.Sessions, logger),
		sseHandlers:    handlers.NewSSEHandlers(deps.Views, deps.Goals, deps.Assistant, deps.Sessions, logger),
		pageHandlers:   handlers.NewPageHandlers(deps.Auth, deps.Views, deps.Sessions, cfg.Server.PollInterval, logger),
		exportHandlers: handlers.NewExportHandlers(deps.Views, deps.Sessions, logger),
	}
	s.setupRoutes(cfg)
	return s
}

// handle registers h under pattern, guarded by mw, and records metrics
// under the pattern.
func (s *Server) handle(pattern string, h http.HandlerFunc, mw ...middleware.Middleware) {
	chain := append([]middleware.Middleware{middleware.Metrics(s.metrics, pattern)}, mw...)
	s.mux.Handle(pattern, middleware.Chain(chain...)(h))
}

func (s *Server) setupRoutes(cfg *config.Config) {
	page := middleware.Middleware(s.sessions.Require(session.Page, s.logger))
	api := middleware.Middleware(s.sessions.Require(session.API, s.logger))
	stream := middleware.Middleware(s.sessions.Require(session.Stream, s.logger))

	// Pages
	s.handle("GET /", s.pageHandlers.HandleRoot)
	s.handle("GET /login", s.pageHandlers.HandleLoginPage)
	s.handle("POST /login", s.pageHandlers.HandleLogin, middleware.LoginLimit(cfg.Security, s.logger))
	s.handle("POST /logout", s.pageHandlers.HandleLogout)
	s.handle("GET /dashboard", s.pageHandlers.HandleDashboard, page)
	s.handle("GET /export/{view}", s.exportHandlers.HandleExport, page)

	// Operations
	s.handle("GET /health", s.apiHandlers.HandleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.handle("GET /admin/stats", s.apiHandlers.HandleStats, api)
	s.handle("POST /admin/cache/refresh", s.apiHandlers.HandleRefresh, api)

	// REST API endpoints
	s.handle("GET /api/posto", s.apiHandlers.HandleFuel, api)
	s.handle("GET /api/conveniencia", s.apiHandlers.HandleStore, api)
	s.handle("GET /api/overview", s.apiHandlers.HandleOverview, api)
	s.handle("GET /api/metas", s.apiHandlers.HandleListGoals, api)
	s.handle("POST /api/metas", s.apiHandlers.HandleCreateGoal, api)
	s.handle("PUT /api/metas/{id}", s.apiHandlers.HandleUpdateGoal, api)
	s.handle("DELETE /api/metas/{id}", s.apiHandlers.HandleDeleteGoal, api)
	s.handle("GET /api/metas/mensal", s.apiHandlers.HandleGetMonthlyTarget, api)
	s.handle("PUT /api/metas/mensal", s.apiHandlers.HandleSetMonthlyTarget, api)
	s.handle("POST /api/chat", s.apiHandlers.HandleChat, api)

	// Datastar SSE endpoints
	s.handle("GET /sse/posto", s.sseHandlers.HandleFuel, stream)
	s.handle("GET /sse/conveniencia", s.sseHandlers.HandleStore, stream)
	s.handle("GET /sse/overview", s.sseHandlers.HandleOverview, stream)
	s.handle("GET /sse/metas", s.sseHandlers.HandleGoals, stream)
	s.handle("POST /sse/metas", s.sseHandlers.HandleSaveGoal, stream)
	s.handle("DELETE /sse/metas", s.sseHandlers.HandleDeleteGoal, stream)
	s.handle("PUT /sse/metas/mensal", s.sseHandlers.HandleMonthlyTarget, stream)
	s.handle("POST /sse/chat", s.sseHandlers.HandleChat, stream)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
