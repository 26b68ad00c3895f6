package game

import (
	"regexp"
	"strings"

	"github.com/pmills/gamewatch/internal/domain"
)

// Palworld log grammar
var (
	palChatRegex = regexp.MustCompile(`\]: (?P<username>.+?): (?P<message>.+)`)
	palJoinRegex = regexp.MustCompile(`OnPlayerJoined.+?\](?P<username>.+),`)
)

// Palworld adapts a Palworld dedicated server
type Palworld struct{}

func (Palworld) Name() string { return "palworld" }

func (Palworld) ListPlayersCommand() string { return "ShowPlayers" }

// ExtractPlayers parses the ShowPlayers response, a CSV table with a
// "Name,PlayerUID,SteamID" header row
func (Palworld) ExtractPlayers(raw string) []string {
	lines := strings.Split(raw, "\n")
	if len(lines) < 2 {
		return nil
	}
	var players []string
	for _, line := range lines[1:] {
		name := strings.TrimSpace(strings.SplitN(line, ",", 2)[0])
		if name != "" {
			players = append(players, name)
		}
	}
	return players
}

// BroadcastCommand formats a broadcast; Palworld drops everything after the
// first space, so spaces are replaced with underscores
func (Palworld) BroadcastCommand(message string) string {
	return "Broadcast " + strings.ReplaceAll(message, " ", "_")
}

func (Palworld) LogRules() []LogRule {
	return []LogRule{
		{Kind: domain.EventChat, Pattern: palChatRegex},
		{Kind: domain.EventPlayerJoin, Pattern: palJoinRegex},
	}
}
