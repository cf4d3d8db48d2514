package entitycache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Janitor runs SweepExpired on a fixed interval so entries that are never
// read again still leave the store.
type Janitor struct {
	cache    *EntityCache
	interval time.Duration
	logger   zerolog.Logger

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewJanitor creates a Janitor. It does nothing until Start is called.
func NewJanitor(cache *EntityCache, interval time.Duration, logger zerolog.Logger) (*Janitor, error) {
	if cache == nil {
		return nil, errors.New("janitor requires a cache")
	}
	if interval <= 0 {
		return nil, errors.New("janitor interval must be positive")
	}
	return &Janitor{
		cache:    cache,
		interval: interval,
		logger:   logger.With().Str("component", "CacheJanitor").Logger(),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start launches the sweep loop. It exits when ctx is cancelled or Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	go func() {
		defer close(j.doneChan)
		j.logger.Info().Dur("interval", j.interval).Msg("Cache janitor started.")
		for {
			select {
			case <-ctx.Done():
				j.logger.Info().Msg("Cache janitor stopping, context done.")
				return
			case <-j.stopChan:
				j.logger.Info().Msg("Cache janitor stopped.")
				return
			case <-j.cache.clock.TickAfter(j.interval):
				if removed := j.cache.SweepExpired(ctx); removed > 0 {
					j.logger.Info().Int("removed", removed).Msg("Periodic sweep removed expired entries.")
				}
			}
		}
	}()
}

// Stop signals the loop to exit. It is safe to call more than once.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChan)
	})
}

// Done returns a channel that is closed when the loop has exited.
func (j *Janitor) Done() <-chan struct{} {
	return j.doneChan
}
