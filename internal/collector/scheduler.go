package collector

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pmills/gamewatch/internal/config"
	"github.com/pmills/gamewatch/internal/domain"
)

// Dispatcher delivers broadcasts and raw commands to monitored games.
// The monitor implements it; tests substitute a recorder.
type Dispatcher interface {
	Games() []string
	Broadcast(ctx context.Context, game, message string) error
	ExecuteRcon(ctx context.Context, game, command string) (string, error)
}

// scheduledEntry pairs a configured event with its duplicate-fire guard
type scheduledEntry struct {
	cfg       config.ScheduledEvent
	lastFired string // "2006-01-02 15:04" of the minute it last fired
}

// Scheduler fires configured command sequences when the UTC clock matches
// an event's time of day. The tick interval is sub-minute, so each entry
// carries a last-fired-minute marker to fire at most once per minute.
type Scheduler struct {
	entries    []scheduledEntry
	dispatcher Dispatcher
	emit       func(domain.Event)

	done chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler creates a scheduler for the configured events
func NewScheduler(events []config.ScheduledEvent, dispatcher Dispatcher, emit func(domain.Event)) *Scheduler {
	entries := make([]scheduledEntry, len(events))
	for i, ev := range events {
		entries[i] = scheduledEntry{cfg: ev}
	}
	return &Scheduler{
		entries:    entries,
		dispatcher: dispatcher,
		emit:       emit,
		done:       make(chan struct{}),
	}
}

// Start begins the tick loop; a no-op when no events are configured
func (s *Scheduler) Start(ctx context.Context) {
	if len(s.entries) == 0 {
		return
	}
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the tick loop
func (s *Scheduler) Stop() {
	close(s.done)
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, time.Now().UTC())
		}
	}
}

// tick fires every entry whose time of day matches the current UTC minute
// and which has not already fired for this minute
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	minute := now.Format("15:04")
	marker := now.Format("2006-01-02 15:04")

	for i := range s.entries {
		entry := &s.entries[i]
		if entry.cfg.TimeUTC != minute || entry.lastFired == marker {
			continue
		}
		entry.lastFired = marker
		s.fire(ctx, entry.cfg)
	}
}

// fire runs one event's sequence: broadcast, then maintenance commands,
// then shutdown commands, each stage delivered to every game before the
// next begins. Delivery is best-effort per game.
func (s *Scheduler) fire(ctx context.Context, ev config.ScheduledEvent) {
	games := s.dispatcher.Games()
	log.Printf("Scheduled event %s firing for %d games", ev.TimeUTC, len(games))

	if ev.Message != "" {
		for _, game := range games {
			if err := s.dispatcher.Broadcast(ctx, game, ev.Message); err != nil {
				log.Printf("game=%s scheduled broadcast failed: %v", game, err)
			}
		}
	}
	for _, command := range ev.Commands {
		for _, game := range games {
			if _, err := s.dispatcher.ExecuteRcon(ctx, game, command); err != nil {
				log.Printf("game=%s scheduled command %q failed: %v", game, command, err)
			}
		}
	}
	for _, command := range ev.ShutdownCommands {
		for _, game := range games {
			if _, err := s.dispatcher.ExecuteRcon(ctx, game, command); err != nil {
				log.Printf("game=%s scheduled shutdown command %q failed: %v", game, command, err)
			}
		}
	}

	if s.emit != nil {
		s.emit(domain.NewEvent("", domain.EventScheduledAction, map[string]string{
			"time_utc": ev.TimeUTC,
			"message":  ev.Message,
		}))
	}
}
