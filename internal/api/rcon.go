package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pmills/gamewatch/internal/rcon"
)

// RconRequest is the request body for RCON commands
type RconRequest struct {
	Command string `json:"command"`
}

// RconResponse is the response body for RCON commands
type RconResponse struct {
	Output string `json:"output"`
}

// BroadcastRequest is the request body for server-wide broadcasts
type BroadcastRequest struct {
	Message string `json:"message"`
}

// handleRconCommand executes a raw RCON command on a game server (auth required)
func (r *Router) handleRconCommand(w http.ResponseWriter, req *http.Request) {
	var rconReq RconRequest
	if err := json.NewDecoder(req.Body).Decode(&rconReq); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if rconReq.Command == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	output, err := r.monitor.ExecuteRcon(req.Context(), req.PathValue("game"), rconReq.Command)
	if err != nil {
		writeError(w, channelStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RconResponse{Output: output})
}

// handleBroadcast sends a message to all players on a game server (auth required)
func (r *Router) handleBroadcast(w http.ResponseWriter, req *http.Request) {
	var bcast BroadcastRequest
	if err := json.NewDecoder(req.Body).Decode(&bcast); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if bcast.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := r.monitor.Broadcast(req.Context(), req.PathValue("game"), bcast.Message); err != nil {
		writeError(w, channelStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// channelStatus maps command channel failures to 502 and everything else
// (unknown game, bad input) to 400
func channelStatus(err error) int {
	var chErr *rcon.ChannelError
	if errors.As(err, &chErr) {
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}
