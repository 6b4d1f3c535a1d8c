package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taskmesh/coordinator/internal/api/handlers"
	apiMiddleware "github.com/taskmesh/coordinator/internal/api/middleware"
	"github.com/taskmesh/coordinator/internal/api/websocket"
	"github.com/taskmesh/coordinator/internal/config"
	"github.com/taskmesh/coordinator/internal/dispatcher"
	"github.com/taskmesh/coordinator/internal/events"
	"github.com/taskmesh/coordinator/internal/history"
)

// Server is the HTTP query surface in front of a running Dispatcher: task
// submission and lookup, worker and queue introspection, a WebSocket feed
// of cluster activity, and a Prometheus scrape endpoint.
type Server struct {
	router       *chi.Mux
	dispatcher   *dispatcher.Dispatcher
	config       *config.Config
	taskHandler  *handlers.TaskHandler
	adminHandler *handlers.AdminHandler
	wsHub        *websocket.Hub
	wsHandler    *websocket.Handler
	publisher    *events.RedisPubSub
}

// NewServer creates a new HTTP server. history and publisher may be nil for
// tests that only need the in-memory dispatcher state.
func NewServer(cfg *config.Config, d *dispatcher.Dispatcher, h *history.Store, publisher *events.RedisPubSub) *Server {
	var wsHub *websocket.Hub
	var wsHandler *websocket.Handler
	if publisher != nil {
		wsHub = websocket.NewHub(publisher)
		wsHandler = websocket.NewHandler(wsHub)
	}

	s := &Server{
		router:       chi.NewRouter(),
		dispatcher:   d,
		config:       cfg,
		taskHandler:  handlers.NewTaskHandler(d, h),
		adminHandler: handlers.NewAdminHandler(d, h),
		wsHub:        wsHub,
		wsHandler:    wsHandler,
		publisher:    publisher,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apiMiddleware.RequestLogger())
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Heartbeat("/health"))
}

func (s *Server) setupRoutes() {
	authCfg := &apiMiddleware.AuthConfig{
		Enabled:   s.config.Auth.Enabled,
		JWTSecret: s.config.Auth.JWTSecret,
		APIKeys:   toAPIKeySet(s.config.Auth.APIKeys),
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Use(apiMiddleware.Auth(authCfg))
		r.Use(apiMiddleware.ClientRateLimit(1000))

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.taskHandler.Create)
			r.Get("/{taskID}", s.taskHandler.Get)
			r.Delete("/{taskID}", s.taskHandler.Cancel)
			r.Get("/", s.taskHandler.List)
		})
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Use(apiMiddleware.Auth(authCfg))

		r.Get("/health", s.adminHandler.HealthCheck)
		r.Get("/workers", s.adminHandler.ListWorkers)
		r.Get("/workers/{workerID}", s.adminHandler.GetWorker)
		r.Get("/queue", s.adminHandler.GetQueue)
	})

	if s.wsHandler != nil {
		s.router.Get("/ws", s.wsHandler.ServeWS)
	}

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler())
	}
}

func toAPIKeySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

// Start starts the WebSocket hub, if configured.
func (s *Server) Start(ctx context.Context) {
	if s.wsHub != nil {
		go s.wsHub.Run(ctx)
	}
}

// Stop stops the WebSocket hub, if configured.
func (s *Server) Stop() {
	if s.wsHub != nil {
		s.wsHub.Stop()
	}
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP implements the http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
