package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds emitted on the monitoring event stream
const (
	EventPlayerJoin      = "player_join"
	EventPlayerLeave     = "player_leave"
	EventChat            = "chat"
	EventKill            = "kill"
	EventDeath           = "death"
	EventTame            = "tame"
	EventServerOffline   = "server_offline"
	EventServerOnline    = "server_online"
	EventServerUpdate    = "server_update"
	EventScheduledAction = "scheduled_action"
)

// Event is a single observation derived from polling or log tailing.
// ID is unique per emission so at-least-once consumers can deduplicate.
type Event struct {
	ID        string            `json:"id"`
	Game      string            `json:"game"`
	Kind      string            `json:"kind"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// NewEvent creates an event stamped with a fresh ID and the current UTC time
func NewEvent(game, kind string, fields map[string]string) Event {
	return Event{
		ID:        uuid.NewString(),
		Game:      game,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Fields:    fields,
	}
}

// PlaytimeEntry is a durable ledger record keyed by (game, player)
type PlaytimeEntry struct {
	Game         string    `json:"game"`
	Player       string    `json:"player"`
	FirstSeen    time.Time `json:"first_seen"`
	TotalSeconds int64     `json:"total_seconds"`
}

// PlayerStatus is one online player. JoinedAt is zero for players who were
// already online when monitoring started.
type PlayerStatus struct {
	Name           string    `json:"name"`
	JoinedAt       time.Time `json:"joined_at"`
	SessionSeconds int64     `json:"session_seconds"`
}

// GameStatus is the live view of one monitored server
type GameStatus struct {
	Game        string    `json:"game"`
	Online      bool      `json:"online"`
	Players     []string  `json:"players"`
	LastError   string    `json:"last_error,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}
