package collab

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ActivityTracker reports when a connection was last heard from.
type ActivityTracker interface {
	LastSeen(connectionID string) (time.Time, bool)
}

// Sweeper periodically marks participants inactive when their connection
// has gone quiet, and reaps sessions left without members.
type Sweeper struct {
	service  *Service
	activity ActivityTracker
	timeout  time.Duration
	interval time.Duration
}

// NewSweeper creates a sweeper. A participant is stale once its connection
// has been silent for longer than timeout.
func NewSweeper(service *Service, activity ActivityTracker, timeout, interval time.Duration) *Sweeper {
	return &Sweeper{
		service:  service,
		activity: activity,
		timeout:  timeout,
		interval: interval,
	}
}

// Start sweeps every interval. It blocks until the context is cancelled.
func (sw *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			inactive, reaped := sw.Sweep(now)
			if inactive > 0 || reaped > 0 {
				log.Debug().
					Int("inactive", inactive).
					Int("reaped", reaped).
					Msg("session sweep")
			}
		}
	}
}

// Sweep runs one pass and returns how many participants were marked
// inactive and how many sessions were reaped.
func (sw *Sweeper) Sweep(now time.Time) (inactive, reaped int) {
	inactive = sw.service.MarkStale(func(connectionID string) bool {
		seen, ok := sw.activity.LastSeen(connectionID)
		return !ok || now.Sub(seen) > sw.timeout
	})
	reaped = sw.service.registry.Reap()
	return inactive, reaped
}
