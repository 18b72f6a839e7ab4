package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically evicts idle and empty rooms from a Store.
type Sweeper struct {
	store    *Store
	interval time.Duration
	log      *zerolog.Logger
}

// NewSweeper creates a sweeper that runs every interval.
func NewSweeper(store *Store, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Sweeper{store: store, interval: interval, log: logger}
}

// Run sweeps on every tick until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.log.Info().Dur("interval", sw.interval).Msg("room sweeper started")
	for {
		select {
		case <-ctx.Done():
			sw.log.Info().Msg("room sweeper stopped")
			return nil
		case <-ticker.C:
			sw.SweepOnce()
		}
	}
}

// SweepOnce runs a single sweep and returns the evicted room codes.
func (sw *Sweeper) SweepOnce() []string {
	start := time.Now()
	evicted := sw.store.Sweep(sw.store.now())
	if len(evicted) > 0 {
		sw.log.Debug().
			Int("evicted", len(evicted)).
			Int("remaining", sw.store.Len()).
			Dur("took", time.Since(start)).
			Msg("room sweep finished")
	}
	return evicted
}
