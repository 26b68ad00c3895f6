package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleGetGames returns live status for every monitored game
func (r *Router) handleGetGames(w http.ResponseWriter, req *http.Request) {
	statuses := r.monitor.GetAllStatuses()
	writeJSON(w, http.StatusOK, statuses)
}

// handleGetGame returns live status for one game
func (r *Router) handleGetGame(w http.ResponseWriter, req *http.Request) {
	status := r.monitor.GetStatus(req.PathValue("game"))
	if status == nil {
		writeError(w, http.StatusNotFound, "unknown game")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleGetPlayers returns the online players with current session durations
func (r *Router) handleGetPlayers(w http.ResponseWriter, req *http.Request) {
	players, err := r.monitor.GetPlayers(req.PathValue("game"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"players": players,
		"total":   len(players),
	})
}

// handleGetPlaytime returns the durable playtime ledger for one game
func (r *Router) handleGetPlaytime(w http.ResponseWriter, req *http.Request) {
	entries, err := r.store.ListPlaytime(req.Context(), req.PathValue("game"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetPoints returns a player's point balance
func (r *Router) handleGetPoints(w http.ResponseWriter, req *http.Request) {
	player := req.PathValue("player")
	balance, err := r.store.GetPoints(req.Context(), player)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player":  player,
		"balance": balance,
	})
}

// handleHealth returns a simple health check
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}
