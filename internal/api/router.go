package api

import (
	"net/http"

	"github.com/pmills/gamewatch/internal/auth"
	"github.com/pmills/gamewatch/internal/collector"
	"github.com/pmills/gamewatch/internal/storage"
)

// Router holds the HTTP routes and dependencies
type Router struct {
	mux          *http.ServeMux
	store        *storage.Store
	monitor      *collector.Monitor
	wsHub        *WebSocketHub
	auth         *auth.Service
	operatorHash string
}

// NewRouter creates a new HTTP router
func NewRouter(store *storage.Store, monitor *collector.Monitor, authService *auth.Service, operatorHash string) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		store:        store,
		monitor:      monitor,
		wsHub:        NewWebSocketHub(),
		auth:         authService,
		operatorHash: operatorHash,
	}

	// Read-only monitoring routes
	r.mux.HandleFunc("GET /api/games", r.handleGetGames)
	r.mux.HandleFunc("GET /api/games/{game}", r.handleGetGame)
	r.mux.HandleFunc("GET /api/games/{game}/players", r.handleGetPlayers)
	r.mux.HandleFunc("GET /api/games/{game}/playtime", r.handleGetPlaytime)
	r.mux.HandleFunc("GET /api/points/{player}", r.handleGetPoints)

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)

	// Operator control routes
	r.mux.HandleFunc("POST /api/games/{game}/rcon", r.requireAuth(r.handleRconCommand))
	r.mux.HandleFunc("POST /api/games/{game}/broadcast", r.requireAuth(r.handleBroadcast))

	// WebSocket event stream
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// StartWebSocketHub starts broadcasting monitor events to WebSocket clients
func (r *Router) StartWebSocketHub() {
	go r.wsHub.Run()

	go func() {
		for event := range r.monitor.Events() {
			r.wsHub.Broadcast(event)
		}
	}()
}
