package game

import (
	"regexp"
	"strings"

	"github.com/pmills/gamewatch/internal/domain"
)

// Minecraft log grammar (vanilla/paper server log)
var (
	mcChatRegex  = regexp.MustCompile(`\[Server thread/INFO\]: <(?P<username>\w+)> (?P<message>.+)`)
	mcJoinRegex  = regexp.MustCompile(`\[User Authenticator #\d+/INFO\]: UUID of player (?P<username>\w+) is .+`)
	mcLeaveRegex = regexp.MustCompile(`\[Server thread/INFO\]: (?P<username>\w+) left the game`)
	mcDeathRegex = regexp.MustCompile(`\[Server thread/INFO\]: (?P<message>.+ (?:was slain by|drowned|fell|burned).*)`)
)

// Minecraft adapts a vanilla Minecraft dedicated server
type Minecraft struct{}

func (Minecraft) Name() string { return "minecraft" }

func (Minecraft) ListPlayersCommand() string { return "list" }

// ExtractPlayers parses the "list" response:
// "There are 2 of a max of 20 players online: Alice, Bob"
func (Minecraft) ExtractPlayers(raw string) []string {
	idx := strings.Index(raw, ":")
	if idx == -1 {
		return nil
	}
	var players []string
	for _, name := range strings.Split(raw[idx+1:], ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			players = append(players, name)
		}
	}
	return players
}

func (Minecraft) BroadcastCommand(message string) string {
	return "say " + message
}

func (Minecraft) LogRules() []LogRule {
	return []LogRule{
		{Kind: domain.EventChat, Pattern: mcChatRegex},
		{Kind: domain.EventPlayerJoin, Pattern: mcJoinRegex},
		{Kind: domain.EventPlayerLeave, Pattern: mcLeaveRegex},
		{Kind: domain.EventDeath, Pattern: mcDeathRegex},
	}
}
