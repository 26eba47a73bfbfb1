package pathtrack

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// RetryTarget is the slice of Tracker the reaper drives.
type RetryTarget interface {
	RetryFailed(ctx context.Context)
	FailedCount() int
}

// Reaper periodically retries failed orphan deletions across all registered
// trackers. Sessions register their tracker on start and unregister on
// teardown.
type Reaper struct {
	log  *slog.Logger
	cron *cron.Cron

	mu       sync.Mutex
	trackers map[string]RetryTarget
}

// NewReaper schedules a retry sweep every interval (a duration string such
// as "10m").
func NewReaper(log *slog.Logger, interval string) (*Reaper, error) {
	r := &Reaper{
		log:      log.With(slog.String("service", "reaper")),
		cron:     cron.New(),
		trackers: make(map[string]RetryTarget),
	}
	if _, err := r.cron.AddFunc("@every "+interval, r.sweep); err != nil {
		return nil, fmt.Errorf("invalid reap interval %q: %w", interval, err)
	}
	return r, nil
}

func (r *Reaper) Start() { r.cron.Start() }

func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Register adds a tracker to the sweep under a session key.
func (r *Reaper) Register(key string, t RetryTarget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackers[key] = t
}

// Unregister drops a tracker, making one final sweep over its queue first.
func (r *Reaper) Unregister(key string) {
	r.mu.Lock()
	t := r.trackers[key]
	delete(r.trackers, key)
	r.mu.Unlock()

	if t != nil && t.FailedCount() > 0 {
		t.RetryFailed(context.Background())
	}
}

func (r *Reaper) sweep() {
	r.mu.Lock()
	targets := make([]RetryTarget, 0, len(r.trackers))
	for _, t := range r.trackers {
		targets = append(targets, t)
	}
	r.mu.Unlock()

	for _, t := range targets {
		if n := t.FailedCount(); n > 0 {
			r.log.Debug("retrying failed orphan deletions", slog.Int("queued", n))
			t.RetryFailed(context.Background())
		}
	}
}
