// Package game holds the per-game protocol and log grammar adapters.
// Each supported game differs in its player-list format, broadcast command
// and log line grammar; everything else in the monitoring core is generic.
package game

import (
	"fmt"
	"regexp"
)

// Adapter captures the per-game capability set selected at configuration time
type Adapter interface {
	// Name returns the canonical game identifier
	Name() string
	// ListPlayersCommand is the RCON command that returns the online player list
	ListPlayersCommand() string
	// ExtractPlayers parses a raw list-players response into player names
	ExtractPlayers(raw string) []string
	// BroadcastCommand formats a server-wide broadcast for this game's RCON dialect
	BroadcastCommand(message string) string
	// LogRules returns the ordered pattern list for log line classification;
	// the first matching rule wins
	LogRules() []LogRule
}

// LogRule maps a compiled pattern to an explicit event kind.
// Named capture groups become the event's fields.
type LogRule struct {
	Kind    string
	Pattern *regexp.Regexp
}

// Match tests a line against the rule and returns the captured fields
func (r LogRule) Match(line string) (map[string]string, bool) {
	m := r.Pattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	fields := make(map[string]string)
	for i, name := range r.Pattern.SubexpNames() {
		if name != "" && i < len(m) {
			fields[name] = m[i]
		}
	}
	return fields, true
}

// ForName returns the adapter for a configured game identifier
func ForName(name string) (Adapter, error) {
	switch name {
	case "minecraft", "mc":
		return Minecraft{}, nil
	case "palworld", "pal":
		return Palworld{}, nil
	case "ark":
		return Ark{}, nil
	default:
		return nil, fmt.Errorf("unsupported game: %s", name)
	}
}
