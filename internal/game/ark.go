package game

import (
	"regexp"
	"strings"

	"github.com/pmills/gamewatch/internal/domain"
)

// ARK log grammar. Player names may or may not be quoted depending on the
// server version, so each name slot takes an optional quote on either side;
// the names themselves never contain quotes.
var (
	arkChatRegex     = regexp.MustCompile(`Server: (?P<username>.+?): (?P<message>.+)`)
	arkJoinRegex     = regexp.MustCompile(`"?(?P<username>[^"]+?)"? has joined this ARK!`)
	arkLeaveRegex    = regexp.MustCompile(`"?(?P<username>[^"]+?)"? left this ARK!`)
	arkPvPKillRegex  = regexp.MustCompile(`"?(?P<username>[^"]+?)"? was killed by "?(?P<killer>[^"]+?)"?!`)
	arkPvEDeathRegex = regexp.MustCompile(`"?(?P<username>[^"]+?)"? was killed!`)
	arkTameRegex     = regexp.MustCompile(`Tribe "?(?P<tribe>[^"]+?)"?, Member "?(?P<username>[^"]+?)"? Tamed an? "?(?P<creature>[^"]+?)"? Lvl (?P<level>\d+)`)

	arkPlayerLineRegex = regexp.MustCompile(`^\d+\. (.+?), \d+$`)
)

// Ark adapts an ARK: Survival Ascended dedicated server
type Ark struct{}

func (Ark) Name() string { return "ark" }

func (Ark) ListPlayersCommand() string { return "ListPlayers" }

// ExtractPlayers parses the ListPlayers response, one "N. Name, SteamID"
// line per player, or "No Players Connected" when empty
func (Ark) ExtractPlayers(raw string) []string {
	var players []string
	for _, line := range strings.Split(raw, "\n") {
		m := arkPlayerLineRegex.FindStringSubmatch(strings.TrimSpace(line))
		if m != nil {
			players = append(players, m[1])
		}
	}
	return players
}

func (Ark) BroadcastCommand(message string) string {
	return "ServerChat " + message
}

func (Ark) LogRules() []LogRule {
	return []LogRule{
		{Kind: domain.EventChat, Pattern: arkChatRegex},
		{Kind: domain.EventPlayerJoin, Pattern: arkJoinRegex},
		{Kind: domain.EventPlayerLeave, Pattern: arkLeaveRegex},
		{Kind: domain.EventKill, Pattern: arkPvPKillRegex},
		{Kind: domain.EventDeath, Pattern: arkPvEDeathRegex},
		{Kind: domain.EventTame, Pattern: arkTameRegex},
	}
}
