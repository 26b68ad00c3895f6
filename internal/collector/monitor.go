package collector

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pmills/gamewatch/internal/config"
	"github.com/pmills/gamewatch/internal/domain"
	"github.com/pmills/gamewatch/internal/game"
	"github.com/pmills/gamewatch/internal/rcon"
	"github.com/pmills/gamewatch/internal/storage"
)

// Monitor owns the observed state of every configured game: the current
// player set, the live session clocks and the crash detector. One polling
// goroutine and one log-consuming goroutine run per game; games never
// block each other.
type Monitor struct {
	store   *storage.Store
	rewards *Rewards
	events  chan domain.Event

	mu    sync.RWMutex
	games map[string]*gameState

	done chan struct{}
	wg   sync.WaitGroup
}

// gameState is the per-game mutable state. Its lock orders liveness
// sampling with reconciliation so samples are never processed out of order.
type gameState struct {
	cfg     config.GameConfig
	adapter game.Adapter
	client  *rcon.Client
	tailer  *Tailer
	crash   *CrashDetector

	mu      sync.Mutex
	players map[string]struct{}
	joined  map[string]time.Time // live session clocks, cleared on leave
	status  domain.GameStatus
}

// NewMonitor builds per-game state from configuration. Invalid game entries
// are skipped with a warning; the remaining games are monitored normally.
func NewMonitor(cfg *config.Config, store *storage.Store) *Monitor {
	m := &Monitor{
		store:   store,
		rewards: NewRewards(cfg.Economy, store),
		events:  make(chan domain.Event, 100),
		games:   make(map[string]*gameState),
		done:    make(chan struct{}),
	}

	for _, gc := range cfg.Games {
		if err := gc.Validate(); err != nil {
			log.Printf("Warning: skipping game: %v", err)
			continue
		}
		adapter, err := game.ForName(gc.Game)
		if err != nil {
			log.Printf("Warning: skipping game %s: %v", gc.Game, err)
			continue
		}
		if _, exists := m.games[adapter.Name()]; exists {
			log.Printf("Warning: duplicate config for game %s, keeping the first", adapter.Name())
			continue
		}

		st := &gameState{
			cfg:     gc,
			adapter: adapter,
			client:  rcon.NewClient(gc.Address(), gc.RconPassword),
			crash:   NewCrashDetector(cfg.CrashDetector.Threshold),
			players: make(map[string]struct{}),
			joined:  make(map[string]time.Time),
			status:  domain.GameStatus{Game: adapter.Name()},
		}
		if gc.LogPath != "" {
			st.tailer = NewTailer(adapter.Name(), gc.LogPath, adapter, gc.TailInterval)
		}
		m.games[adapter.Name()] = st
	}

	return m
}

// Events returns the event stream for downstream consumers
func (m *Monitor) Events() <-chan domain.Event {
	return m.events
}

// Publish puts an externally produced event on the stream; the scheduler
// uses this for its scheduled_action events
func (m *Monitor) Publish(event domain.Event) {
	m.emitEvent(event)
}

// Start launches the polling and log-tailing goroutines
func (m *Monitor) Start(ctx context.Context) {
	for name, st := range m.games {
		if st.tailer != nil {
			if err := st.tailer.Start(); err != nil {
				log.Printf("Warning: game=%s log tailer disabled: %v", name, err)
				st.tailer = nil
			} else {
				m.wg.Add(1)
				go m.processLogEvents(ctx, st)
			}
		}

		m.wg.Add(1)
		go m.pollLoop(ctx, st)
	}
	log.Printf("Monitoring %d games", len(m.games))
}

// Stop stops all periodic work and releases files and connections
func (m *Monitor) Stop() {
	log.Println("Monitor: stopping...")
	close(m.done)
	for _, st := range m.games {
		if st.tailer != nil {
			st.tailer.Stop()
		}
	}
	m.wg.Wait()
	for _, st := range m.games {
		st.client.Close()
	}
	log.Println("Monitor: shutdown complete")
}

// Games returns the monitored game names, sorted
func (m *Monitor) Games() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.games))
	for name := range m.games {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStatus returns the live status for one game, or nil if unknown
func (m *Monitor) GetStatus(gameName string) *domain.GameStatus {
	st, ok := m.lookup(gameName)
	if !ok {
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	status := st.status
	status.Players = append([]string(nil), status.Players...)
	return &status
}

// GetAllStatuses returns live statuses for every game, sorted by name
func (m *Monitor) GetAllStatuses() []domain.GameStatus {
	var statuses []domain.GameStatus
	for _, name := range m.Games() {
		if status := m.GetStatus(name); status != nil {
			statuses = append(statuses, *status)
		}
	}
	return statuses
}

// GetPlayers returns the online players for a game with their current
// session durations where a join was observed
func (m *Monitor) GetPlayers(gameName string) ([]domain.PlayerStatus, error) {
	st, ok := m.lookup(gameName)
	if !ok {
		return nil, fmt.Errorf("unknown game: %s", gameName)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := time.Now().UTC()
	players := make([]domain.PlayerStatus, 0, len(st.players))
	for name := range st.players {
		p := domain.PlayerStatus{Name: name}
		if joinedAt, ok := st.joined[name]; ok {
			p.JoinedAt = joinedAt
			p.SessionSeconds = int64(now.Sub(joinedAt).Seconds())
		}
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players, nil
}

// ExecuteRcon sends a raw command to one game's server
func (m *Monitor) ExecuteRcon(ctx context.Context, gameName, command string) (string, error) {
	st, ok := m.lookup(gameName)
	if !ok {
		return "", fmt.Errorf("unknown game: %s", gameName)
	}
	return st.client.Execute(ctx, command)
}

// Broadcast sends a server-wide message formatted for the game's dialect
func (m *Monitor) Broadcast(ctx context.Context, gameName, message string) error {
	st, ok := m.lookup(gameName)
	if !ok {
		return fmt.Errorf("unknown game: %s", gameName)
	}
	_, err := st.client.Execute(ctx, st.adapter.BroadcastCommand(message))
	return err
}

func (m *Monitor) lookup(gameName string) (*gameState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.games[gameName]
	return st, ok
}

// pollLoop runs one game's reconciliation ticks
func (m *Monitor) pollLoop(ctx context.Context, st *gameState) {
	defer m.wg.Done()
	ticker := time.NewTicker(st.cfg.PollInterval)
	defer ticker.Stop()

	m.poll(ctx, st)

	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx, st)
		}
	}
}

// poll performs one reconciliation tick: list players, diff against the
// known set, update the ledger, feed the crash detector. A channel failure
// preserves the player set so a transient blip never fabricates leaves.
// The RCON call runs before the state lock is taken; status reads stay
// responsive while a slow channel waits out its deadline. Polls for one
// game never overlap (single pollLoop goroutine), so samples still reach
// the crash detector in observation order.
func (m *Monitor) poll(ctx context.Context, st *gameState) {
	raw, err := st.client.Execute(ctx, st.adapter.ListPlayersCommand())
	now := time.Now().UTC()

	st.mu.Lock()
	defer st.mu.Unlock()

	if err != nil {
		log.Printf("game=%s poll failed: %v", st.adapter.Name(), err)
		st.status.Online = false
		st.status.LastError = err.Error()
		st.status.LastUpdated = now
		m.sample(st, false, err.Error())
		m.emitStatus(st)
		return
	}

	m.reconcile(ctx, st, st.adapter.ExtractPlayers(raw), now)
	m.sample(st, true, "")
	m.emitStatus(st)
}

// reconcile diffs a freshly observed player list against the known set and
// emits join events before leave events. Caller holds st.mu.
func (m *Monitor) reconcile(ctx context.Context, st *gameState, names []string, now time.Time) {
	gameName := st.adapter.Name()

	newSet := make(map[string]struct{}, len(names))
	for _, name := range names {
		newSet[name] = struct{}{}
	}

	var joined, left []string
	for name := range newSet {
		if _, ok := st.players[name]; !ok {
			joined = append(joined, name)
		}
	}
	for name := range st.players {
		if _, ok := newSet[name]; !ok {
			left = append(left, name)
		}
	}
	sort.Strings(joined)
	sort.Strings(left)

	for _, name := range joined {
		if err := m.store.RecordFirstJoin(ctx, gameName, name, now); err != nil {
			log.Printf("game=%s error recording first join for %s: %v", gameName, name, err)
		}
		st.joined[name] = now
		m.emitEvent(domain.NewEvent(gameName, domain.EventPlayerJoin, map[string]string{
			"username": name,
		}))
	}

	for _, name := range left {
		fields := map[string]string{"username": name}
		if joinedAt, ok := st.joined[name]; ok {
			delete(st.joined, name)
			seconds := int64(now.Sub(joinedAt).Seconds())
			if err := m.store.AddPlaytime(ctx, gameName, name, seconds); err != nil {
				log.Printf("game=%s error adding playtime for %s: %v", gameName, name, err)
			}
			fields["duration_seconds"] = strconv.FormatInt(seconds, 10)
		}
		// No session clock: the join predates this process, so the
		// ledger is left untouched
		m.emitEvent(domain.NewEvent(gameName, domain.EventPlayerLeave, fields))
	}

	st.players = newSet

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	st.status.Online = true
	st.status.Players = sorted
	st.status.LastError = ""
	st.status.LastUpdated = now
}

// sample feeds one liveness observation to the game's crash detector and
// emits the resulting alert, if any. Caller holds st.mu.
func (m *Monitor) sample(st *gameState, ok bool, errMsg string) {
	gameName := st.adapter.Name()
	switch st.crash.Sample(ok) {
	case AlertOffline:
		log.Printf("game=%s server offline after %d failed checks", gameName, st.crash.Streak())
		m.emitEvent(domain.NewEvent(gameName, domain.EventServerOffline, map[string]string{
			"error": errMsg,
		}))
	case AlertRecovery:
		log.Printf("game=%s server recovered", gameName)
		m.emitEvent(domain.NewEvent(gameName, domain.EventServerOnline, nil))
	}
}

// emitStatus publishes a status snapshot for live dashboards. Caller holds st.mu.
func (m *Monitor) emitStatus(st *gameState) {
	m.emitEvent(domain.NewEvent(st.adapter.Name(), domain.EventServerUpdate, map[string]string{
		"online":       strconv.FormatBool(st.status.Online),
		"player_count": strconv.Itoa(len(st.status.Players)),
	}))
}

// processLogEvents forwards one game's log events to the shared stream and
// applies chat side effects
func (m *Monitor) processLogEvents(ctx context.Context, st *gameState) {
	defer m.wg.Done()

	gameName := st.adapter.Name()
	for {
		select {
		case <-m.done:
			return
		case <-ctx.Done():
			return
		case err := <-st.tailer.Errors:
			log.Printf("game=%s log tailer: %v", gameName, err)
		case event := <-st.tailer.Events:
			if event.Kind == domain.EventChat {
				m.rewards.HandleChat(ctx, event.Fields["username"])
			}
			m.emitEvent(event)
		}
	}
}

// emitEvent sends an event to the stream, dropping it when no consumer keeps up
func (m *Monitor) emitEvent(event domain.Event) {
	select {
	case m.events <- event:
	default:
	}
}
