package janitor

import (
	"context"
	"time"

	"github.com/nkiryanov/gopherauth/internal/logger"
)

const defaultInterval = time.Minute

// Removes expired entries, returns how many were removed
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

type PurgerFunc func(ctx context.Context) (int64, error)

func (f PurgerFunc) Purge(ctx context.Context) (int64, error) {
	return f(ctx)
}

type Janitor struct {
	interval time.Duration
	logger   logger.Logger
	purgers  map[string]Purger
}

// Purgers are keyed by name that is used in logs only
func New(interval time.Duration, logger logger.Logger, purgers map[string]Purger) *Janitor {
	if interval <= 0 {
		interval = defaultInterval
	}

	return &Janitor{
		interval: interval,
		logger:   logger,
		purgers:  purgers,
	}
}

// Sweep periodically until ctx is done
// Returned channel is closed when janitor stopped
func (j *Janitor) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	j.logger.Debug("Starting janitor", "interval", j.interval, "purgers", len(j.purgers))

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				j.logger.Debug("Janitor stopped by context")
				return

			case <-ticker.C:
				j.Sweep(ctx)
			}
		}
	}()

	return idleStopped
}

// Run every purger once; failed purger does not stop others
func (j *Janitor) Sweep(ctx context.Context) int64 {
	var total int64

	for name, p := range j.purgers {
		if ctx.Err() != nil {
			return total
		}

		n, err := p.Purge(ctx)
		if err != nil {
			j.logger.Error("Failed to purge expired entries", "purger", name, "error", err)
			continue
		}
		if n > 0 {
			j.logger.Debug("Expired entries purged", "purger", name, "count", n)
		}
		total += n
	}

	return total
}
