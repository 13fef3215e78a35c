// Package api exposes the experiment platform over HTTP: participant auth,
// the trading endpoints, researcher admin views and the live event streams.
package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"tradelab/auth"
	"tradelab/database"
	"tradelab/database/catalog"
	"tradelab/database/sessions"
	"tradelab/database/users"
	"tradelab/experiment"
	"tradelab/notifications"
	"tradelab/realtime"
	"tradelab/websocket"
)

// Server handles HTTP API requests
type Server struct {
	engine   *experiment.Engine
	users    *users.Repository
	catalog  *catalog.Repository
	sessions *sessions.Repository
	repo     *database.Repository
	auth     *auth.Manager
	broker   *realtime.Broker
	hub      *websocket.Hub
	notifier *notifications.WebhookManager
}

// NewServer creates a new API server instance
func NewServer(
	engine *experiment.Engine,
	userRepo *users.Repository,
	catalogRepo *catalog.Repository,
	sessionRepo *sessions.Repository,
	repo *database.Repository,
	authMgr *auth.Manager,
	broker *realtime.Broker,
	hub *websocket.Hub,
	notifier *notifications.WebhookManager,
) *Server {
	return &Server{
		engine:   engine,
		users:    userRepo,
		catalog:  catalogRepo,
		sessions: sessionRepo,
		repo:     repo,
		auth:     authMgr,
		broker:   broker,
		hub:      hub,
		notifier: notifier,
	}
}

// Start starts the HTTP server on the specified port
func (s *Server) Start(port string) error {
	mux := http.NewServeMux()

	// Auth
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.Handle("GET /api/auth/me", s.requireUser(s.handleMe))

	// Participant experiment routes
	mux.Handle("POST /api/experiment/start", s.requireUser(s.handleStartExperiment))
	mux.Handle("GET /api/experiment/state", s.requireUser(s.handleExperimentState))
	mux.Handle("GET /api/experiment/stock", s.requireUser(s.handleCurrentStock))
	mux.Handle("POST /api/experiment/decision", s.requireUser(s.handleDecision))
	mux.Handle("GET /api/experiment/summary/stock/{index}", s.requireUser(s.handleEpisodeSummary))
	mux.Handle("GET /api/experiment/summary/session", s.requireUser(s.handleSessionSummary))

	// Researcher admin routes
	mux.Handle("GET /api/admin/overview", s.requireAdmin(s.handleAdminOverview))
	mux.Handle("GET /api/admin/users", s.requireAdmin(s.handleListUsers))
	mux.Handle("GET /api/admin/users/{id}", s.requireAdmin(s.handleGetUser))
	mux.Handle("PUT /api/admin/users/{id}/active", s.requireAdmin(s.handleToggleUser))
	mux.Handle("DELETE /api/admin/users/{id}", s.requireAdmin(s.handleDeleteUser))
	mux.Handle("GET /api/admin/experiments", s.requireAdmin(s.handleListExperiments))
	mux.Handle("GET /api/admin/experiments/{id}", s.requireAdmin(s.handleExperimentDetail))

	// Live monitoring
	mux.Handle("GET /api/events", s.requireAdmin(s.broker.ServeHTTP)) // SSE endpoint
	mux.Handle("GET /api/ws/monitor", s.requireAdmin(s.hub.ServeHTTP))

	mux.HandleFunc("GET /health", s.handleHealth)

	// Serve Static Files (Public UI)
	fs := http.FileServer(http.Dir("./public"))
	mux.Handle("GET /", fs)

	// Add middleware
	handler := s.corsMiddleware(s.loggingMiddleware(mux))

	serverAddr := fmt.Sprintf("0.0.0.0:%s", port)
	log.Printf("🚀 API Server starting on %s", serverAddr)
	return http.ListenAndServe(serverAddr, handler)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %v", r.Method, r.URL.Path, time.Since(start))
	})
}
