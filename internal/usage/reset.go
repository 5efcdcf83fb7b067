package usage

import (
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/timeguardian/internal/clock"
	"github.com/rs/zerolog"
)

// ResetScheduler calls a function once per day at a fixed time of day.
type ResetScheduler struct {
	clock     clock.Clock
	resetTime time.Time // Time of day to reset (only hour and minute are used)
	onReset   func(at time.Time)
	logger    zerolog.Logger

	mu      sync.Mutex
	cancel  func()
	running bool
}

// NewResetScheduler creates a new reset scheduler
func NewResetScheduler(c clock.Clock, resetTime string, onReset func(at time.Time), logger zerolog.Logger) (*ResetScheduler, error) {
	// Parse reset time (HH:MM format)
	parsedTime, err := time.Parse("15:04", resetTime)
	if err != nil {
		return nil, fmt.Errorf("invalid reset time %q: %w", resetTime, err)
	}

	return &ResetScheduler{
		clock:     c,
		resetTime: parsedTime,
		onReset:   onReset,
		logger:    logger.With().Str("component", "reset-scheduler").Logger(),
	}, nil
}

// Start begins the reset scheduler
func (rs *ResetScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.running {
		return
	}
	rs.running = true
	rs.arm()

	rs.logger.Info().
		Str("reset_time", rs.resetTime.Format("15:04")).
		Msg("Daily usage reset scheduler started")
}

// Stop stops the reset scheduler
func (rs *ResetScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.running {
		return
	}
	rs.running = false
	if rs.cancel != nil {
		rs.cancel()
		rs.cancel = nil
	}
	rs.logger.Info().Msg("Daily usage reset scheduler stopped")
}

// arm schedules the next reset (must be called with lock held).
func (rs *ResetScheduler) arm() {
	now := rs.clock.Now()
	nextReset := rs.NextReset(now)

	rs.logger.Debug().
		Time("next_reset", nextReset).
		Dur("wait_duration", nextReset.Sub(now)).
		Msg("Scheduled next daily reset")

	rs.cancel = rs.clock.AfterFunc(nextReset.Sub(now), rs.fire)
}

func (rs *ResetScheduler) fire() {
	rs.mu.Lock()
	if !rs.running {
		rs.mu.Unlock()
		return
	}
	rs.mu.Unlock()

	rs.onReset(rs.clock.Now())

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.running {
		rs.arm()
	}
}

// NextReset returns the first reset time strictly after now.
func (rs *ResetScheduler) NextReset(now time.Time) time.Time {
	// Get today's reset time
	todayReset := time.Date(
		now.Year(), now.Month(), now.Day(),
		rs.resetTime.Hour(), rs.resetTime.Minute(), 0, 0,
		now.Location(),
	)

	// If we've already reached today's reset time, schedule for tomorrow
	if !now.Before(todayReset) {
		return todayReset.AddDate(0, 0, 1)
	}

	return todayReset
}
