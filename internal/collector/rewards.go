package collector

import (
	"context"
	"log"
	"sync"

	"golang.org/x/time/rate"

	"github.com/pmills/gamewatch/internal/config"
	"github.com/pmills/gamewatch/internal/storage"
)

// Rewards awards points for chat activity, at most once per player per
// cooldown interval. Award failures are logged and never retried; the
// chat event itself is unaffected.
type Rewards struct {
	cfg   config.EconomyConfig
	store *storage.Store

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRewards creates the chat reward handler; a no-op when disabled
func NewRewards(cfg config.EconomyConfig, store *storage.Store) *Rewards {
	return &Rewards{
		cfg:      cfg,
		store:    store,
		limiters: make(map[string]*rate.Limiter),
	}
}

// HandleChat awards points for one chat line if the player is off cooldown
func (r *Rewards) HandleChat(ctx context.Context, player string) {
	if !r.cfg.Enabled || r.cfg.PointsPerChat <= 0 || player == "" {
		return
	}

	if !r.limiter(player).Allow() {
		return
	}

	if err := r.store.AwardPoints(ctx, player, r.cfg.PointsPerChat); err != nil {
		log.Printf("Error awarding %d chat points to %s: %v", r.cfg.PointsPerChat, player, err)
	}
}

// limiter returns the player's limiter, creating it with a full token so
// the first message always pays out
func (r *Rewards) limiter(player string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	lim, ok := r.limiters[player]
	if !ok {
		lim = rate.NewLimiter(rate.Every(r.cfg.ChatCooldown), 1)
		r.limiters[player] = lim
	}
	return lim
}
