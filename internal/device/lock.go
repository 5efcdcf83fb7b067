package device

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/timeguardian/internal/clock"
	"github.com/goodtune/timeguardian/internal/storage"
	"github.com/rs/zerolog"
)

// SimulatedLock records app blocks in the store instead of enforcing them.
type SimulatedLock struct {
	blocks storage.BlockStore
	clock  clock.Clock
	logger zerolog.Logger
}

// NewSimulatedLock creates a lock controller backed by blocks.
func NewSimulatedLock(blocks storage.BlockStore, clk clock.Clock, logger zerolog.Logger) *SimulatedLock {
	return &SimulatedLock{
		blocks: blocks,
		clock:  clk,
		logger: logger.With().Str("component", "app-lock").Logger(),
	}
}

// Lock blocks app for d and returns the blocked-until time.
func (l *SimulatedLock) Lock(ctx context.Context, app string, d time.Duration) (time.Time, error) {
	until := l.clock.Now().Add(d)
	if err := l.blocks.BlockUntil(ctx, app, until); err != nil {
		return time.Time{}, fmt.Errorf("failed to block %s: %w", app, err)
	}

	l.logger.Info().
		Str("app", app).
		Dur("duration", d).
		Time("until", until).
		Msg("Blocking app")

	return until, nil
}

// IsLocked reports whether app is currently blocked.
func (l *SimulatedLock) IsLocked(ctx context.Context, app string) (bool, error) {
	until, err := l.blocks.BlockedUntil(ctx, app)
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return l.clock.Now().Before(until), nil
}

// PruneExpired removes blocks that ran out at or before at.
func (l *SimulatedLock) PruneExpired(ctx context.Context, at time.Time) (int, error) {
	n, err := l.blocks.DeleteExpired(ctx, at)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired blocks: %w", err)
	}
	if n > 0 {
		l.logger.Debug().Int("count", n).Msg("Pruned expired app blocks")
	}
	return n, nil
}
