package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically evicts abandoned sessions from a Store.
type Janitor struct {
	store    *Store
	interval time.Duration
	logger   *zap.Logger
	// OnSweep, when set, receives the number of live sessions after every sweep.
	OnSweep func(live int)
}

func NewJanitor(store *Store, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{store: store, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-ctx.Done():
			return nil
		}
	}
}

func (j *Janitor) Sweep() int {
	removed := j.store.CleanExpired()
	if removed > 0 {
		j.logger.Debug("Evicted expired add sessions", zap.Int("count", removed))
	}
	if j.OnSweep != nil {
		j.OnSweep(j.store.Len())
	}
	return removed
}
