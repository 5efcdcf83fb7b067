package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goodtune/timeguardian/internal/metrics"
	"github.com/goodtune/timeguardian/internal/notify"
	"github.com/goodtune/timeguardian/internal/usage"
)

// Tick advances the simulation by one period: it adds usage for every app,
// raises threshold notifications and runs the rate-limited reward evaluation.
func (e *Engine) Tick(ctx context.Context) {
	apps := e.tracker.Apps()
	increments := make(map[string]time.Duration, len(apps))
	for _, app := range apps {
		d, err := e.provider.Increment(ctx, app)
		if err != nil {
			e.logger.Warn().Err(err).Str("app", app).Msg("Failed to read usage increment")
			continue
		}
		increments[app] = d
	}

	e.do(func() {
		for _, app := range apps {
			e.tracker.Add(app, increments[app])
		}
		e.checkThresholds(ctx)
		e.evaluateRewards(ctx)
	})

	metrics.TicksTotal.Inc()
}

// checkThresholds notifies about apps at or near their limit and charges the
// exceed penalty (must be called with lock held). Bands are recomputed on every
// call, so an app that stays over its limit is reported and charged each time.
// With notifications disabled only the usage gauges are updated.
func (e *Engine) checkThresholds(ctx context.Context) {
	for _, r := range e.tracker.Records() {
		app := r.AppName
		limitMs := int64(e.settings.LimitMinutes(app)) * time.Minute.Milliseconds()
		percent := usage.PercentUsed(r.TimeInMillis, limitMs)
		metrics.UsagePercent.WithLabelValues(app).Set(percent)

		if !e.settings.NotificationsEnabled {
			continue
		}

		switch usage.Classify(r.TimeInMillis, limitMs) {
		case usage.Approaching:
			e.emit(e.newNotification(
				fmt.Sprintf("Almost at %s Limit", app),
				fmt.Sprintf("You've used %d%% of your daily limit.", int(math.Round(percent))),
				notify.SeverityNormal,
			))

		case usage.Exceeded:
			e.emit(e.newNotification(
				fmt.Sprintf("%s Limit Exceeded!", app),
				fmt.Sprintf("Consider taking a break from %s.", app),
				notify.SeverityDestructive,
			).WithAction("Lock Now", e.lockAction(app)))
			e.debit(ctx, e.policy.PenaltyOnExceed, "exceeded")

			e.logger.Debug().
				Str("app", app).
				Float64("percent_used", percent).
				Int64("coins", e.stats.Coins).
				Msg("App over daily limit")
		}
	}
}

func (e *Engine) lockAction(app string) func() {
	return func() {
		if err := e.LockApp(context.Background(), app); err != nil && !errors.Is(err, ErrPermissionRequired) {
			e.logger.Error().Err(err).Str("app", app).Msg("Lock action failed")
		}
	}
}

// EvaluateRewards awards coins for apps at or under their limit and deducts
// the penalty for apps over it. It does nothing until the cooldown has elapsed
// since the previous evaluation. It returns the net change and whether the
// evaluation ran.
func (e *Engine) EvaluateRewards(ctx context.Context) (delta int64, ran bool) {
	e.do(func() {
		delta, ran = e.evaluateRewards(ctx)
	})
	return delta, ran
}

// evaluateRewards must be called with lock held.
func (e *Engine) evaluateRewards(ctx context.Context) (int64, bool) {
	now := e.clock.Now()
	if now.Sub(e.lastRewardEval) < e.policy.Cooldown {
		metrics.RewardEvaluationsTotal.WithLabelValues("cooldown").Inc()
		return 0, false
	}
	e.lastRewardEval = now

	bucketMs := int64(e.policy.BucketMinutes) * time.Minute.Milliseconds()
	var delta int64
	for _, r := range e.tracker.Records() {
		limitMs := int64(e.settings.LimitMinutes(r.AppName)) * time.Minute.Milliseconds()
		if r.TimeInMillis <= limitMs {
			delta += (limitMs - r.TimeInMillis) / bucketMs * e.policy.BonusPerBucket
		} else {
			delta -= e.policy.PenaltyOnExceed
		}
	}

	switch {
	case delta > 0:
		e.credit(ctx, delta, "usage")
		e.emit(e.newNotification(
			"Points Earned!",
			fmt.Sprintf("+%d points for responsible usage.", delta),
			notify.SeverityNormal,
		))
		metrics.RewardEvaluationsTotal.WithLabelValues("earned").Inc()
	case delta < 0:
		e.debit(ctx, -delta, "usage")
		e.emit(e.newNotification(
			"Points Deducted",
			fmt.Sprintf("%d points for exceeding limits.", delta),
			notify.SeverityDestructive,
		))
		metrics.RewardEvaluationsTotal.WithLabelValues("deducted").Inc()
	default:
		metrics.RewardEvaluationsTotal.WithLabelValues("unchanged").Inc()
	}

	e.logger.Debug().
		Int64("delta", delta).
		Int64("coins", e.stats.Coins).
		Msg("Rewards evaluated")

	return delta, true
}
