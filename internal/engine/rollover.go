package engine

import (
	"context"
	"time"

	"github.com/goodtune/timeguardian/internal/metrics"
)

// Rollover closes the current day at the given time. The finished day's usage
// replaces the history for its weekday, the streak is extended when every app
// stayed within its limit and reset otherwise, usage starts again from zero and
// expired app blocks are pruned.
func (e *Engine) Rollover(ctx context.Context, at time.Time) {
	day := finishedDay(at).String()

	e.do(func() {
		finished := e.tracker.Reset()
		e.weekly[day] = finished

		underAll := true
		for _, r := range finished {
			limitMs := int64(e.settings.LimitMinutes(r.AppName)) * time.Minute.Milliseconds()
			if r.TimeInMillis > limitMs {
				underAll = false
				break
			}
		}

		if underAll {
			e.stats.Streak++
			e.stats.DaysUnderLimit++
			if e.stats.Streak > e.stats.HighestStreak {
				e.stats.HighestStreak = e.stats.Streak
			}
		} else {
			e.stats.Streak = 0
		}
		metrics.Streak.Set(float64(e.stats.Streak))

		e.logger.Info().
			Str("day", day).
			Bool("under_limit", underAll).
			Int("streak", e.stats.Streak).
			Int("highest_streak", e.stats.HighestStreak).
			Msg("Day rolled over")
	})

	if n, err := e.locks.PruneExpired(ctx, at); err != nil {
		e.logger.Error().Err(err).Msg("Failed to prune expired app blocks")
	} else if n > 0 {
		e.logger.Info().Int("count", n).Msg("Pruned expired app blocks")
	}

	metrics.DailyResetsTotal.Inc()
}

// finishedDay names the day closed by a rollover at the given time: the
// weekday covering most of the 24 hours before it. A 00:00 reset on Tuesday
// and a 23:30 reset on Monday both close Monday.
func finishedDay(at time.Time) time.Weekday {
	return at.Add(-12 * time.Hour).Weekday()
}
