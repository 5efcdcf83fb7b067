package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/timeguardian/internal/device"
	"github.com/goodtune/timeguardian/internal/metrics"
	"github.com/goodtune/timeguardian/internal/mockdata"
	"github.com/goodtune/timeguardian/internal/notify"
	"github.com/goodtune/timeguardian/internal/storage"
)

// Scroll estimate constants.
const (
	ScrollsPerMinute = 70
	MetersPerScroll  = 2
)

// UpdateDailyLimit replaces the daily limit for app. Callers are expected to
// pass a positive number of minutes.
func (e *Engine) UpdateDailyLimit(ctx context.Context, app string, minutes int) {
	e.do(func() {
		e.settings.DailyLimits[app] = minutes
		e.emit(e.newNotification(
			"Limit Updated",
			fmt.Sprintf("New daily limit for %s: %d minutes", app, minutes),
			notify.SeverityNormal,
		))
	})

	e.logger.Info().Str("app", app).Int("minutes", minutes).Msg("Daily limit updated")
}

// SetNotificationsEnabled toggles the limit alerts.
func (e *Engine) SetNotificationsEnabled(ctx context.Context, enabled bool) {
	e.do(func() {
		was := e.settings.NotificationsEnabled
		e.settings.NotificationsEnabled = enabled
		if enabled && !was {
			e.emit(e.newNotification(
				"Notifications Enabled",
				"You'll receive alerts when you approach app usage limits.",
				notify.SeverityNormal,
			))
		}
	})

	e.logger.Info().Bool("enabled", enabled).Msg("Notification setting changed")
}

// PurchaseReward unlocks a reward if the balance covers its cost.
func (e *Engine) PurchaseReward(ctx context.Context, id string) error {
	var err error
	e.do(func() {
		idx := -1
		for i := range e.rewards {
			if e.rewards[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			err = ErrRewardNotFound
			return
		}

		reward := &e.rewards[idx]
		if reward.Unlocked {
			err = ErrRewardUnlocked
			return
		}
		if e.stats.Coins < reward.PointCost {
			e.emit(e.newNotification(
				"Not Enough Points",
				fmt.Sprintf("You need %d more points to unlock this reward.", reward.PointCost-e.stats.Coins),
				notify.SeverityDestructive,
			))
			err = ErrInsufficientCoins
			return
		}

		e.debit(ctx, reward.PointCost, "purchase")
		reward.Unlocked = true
		e.stats.Rewards = append(e.stats.Rewards, reward.ID)
		metrics.RewardsPurchased.WithLabelValues(reward.ID).Inc()

		e.emit(e.newNotification(
			"Reward Unlocked!",
			fmt.Sprintf("You've unlocked: %s", reward.Name),
			notify.SeveritySuccess,
		))
		e.logger.Info().Str("reward", reward.ID).Int64("coins", e.stats.Coins).Msg("Reward purchased")
	})
	return err
}

// LockApp blocks app for the policy's lock duration and credits the lock
// reward. Without device-admin permission it only raises a notification
// offering to request the permission. Apps that are not tracked are rejected
// with ErrUnknownApp.
func (e *Engine) LockApp(ctx context.Context, app string) error {
	if _, ok := e.tracker.Get(app); !ok {
		return fmt.Errorf("cannot lock %q: %w", app, ErrUnknownApp)
	}

	if !e.perms.Has(storage.PermissionDeviceAdmin) {
		e.do(func() {
			e.emit(e.newNotification(
				"Permission Required",
				"Device admin permission is required to block apps.",
				notify.SeverityDestructive,
			).WithAction("Grant Permission", func() {
				e.RequestDeviceAdminPermission(context.Background())
			}))
		})
		metrics.AppLocksTotal.WithLabelValues(app, "permission_required").Inc()
		return ErrPermissionRequired
	}

	var err error
	e.do(func() {
		var until time.Time
		until, err = e.locks.Lock(ctx, app, e.policy.LockDuration)
		if err != nil {
			return
		}

		e.credit(ctx, e.policy.LockReward, "lock")
		e.emit(e.newNotification(
			"App Locked",
			fmt.Sprintf("%s is blocked until %s.", app, until.Format("15:04")),
			notify.SeveritySuccess,
		))
		e.emit(e.newNotification(
			"Coins Earned",
			fmt.Sprintf("+%d FocusCoins for locking %s.", e.policy.LockReward, app),
			notify.SeveritySuccess,
		))
	})

	if err != nil {
		metrics.AppLocksTotal.WithLabelValues(app, "error").Inc()
		e.logger.Error().Err(err).Str("app", app).Msg("Failed to lock app")
		return fmt.Errorf("failed to lock %s: %w", app, err)
	}

	metrics.AppLocksTotal.WithLabelValues(app, "locked").Inc()
	e.logger.Info().Str("app", app).Dur("duration", e.policy.LockDuration).Msg("App locked")
	return nil
}

// IsAppLocked reports whether app is currently blocked. Lookup failures read as unlocked.
func (e *Engine) IsAppLocked(ctx context.Context, app string) bool {
	locked, err := e.locks.IsLocked(ctx, app)
	if err != nil {
		e.logger.Error().Err(err).Str("app", app).Msg("Failed to check app block")
		return false
	}
	return locked
}

// TakeBreak credits the break reward for stepping away from app. Apps that
// are not tracked are rejected with ErrUnknownApp.
func (e *Engine) TakeBreak(ctx context.Context, app string) error {
	if _, ok := e.tracker.Get(app); !ok {
		return fmt.Errorf("cannot take a break from %q: %w", app, ErrUnknownApp)
	}

	e.do(func() {
		e.credit(ctx, e.policy.BreakReward, "break")
		e.emit(e.newNotification(
			"Break Taken",
			fmt.Sprintf("+%d FocusCoins for stepping away from %s.", e.policy.BreakReward, app),
			notify.SeveritySuccess,
		))
	})

	e.logger.Info().Str("app", app).Msg("Break taken")
	return nil
}

// Nudge returns a random time-check message for app.
func (e *Engine) Nudge(app string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return mockdata.Nudge(e.rng, app)
}

// RequestUsageStatsPermission starts the usage-stats consent flow.
func (e *Engine) RequestUsageStatsPermission(ctx context.Context) *device.PendingGrant {
	return e.perms.Request(ctx, storage.PermissionUsageStats)
}

// RequestDeviceAdminPermission starts the device-admin consent flow.
func (e *Engine) RequestDeviceAdminPermission(ctx context.Context) *device.PendingGrant {
	return e.perms.Request(ctx, storage.PermissionDeviceAdmin)
}

// HasUsageStatsPermission reports whether usage-stats access was granted.
func (e *Engine) HasUsageStatsPermission() bool {
	return e.perms.Has(storage.PermissionUsageStats)
}

// HasDeviceAdminPermission reports whether device-admin access was granted.
func (e *Engine) HasDeviceAdminPermission() bool {
	return e.perms.Has(storage.PermissionDeviceAdmin)
}

// Permissions returns both permission flags.
func (e *Engine) Permissions() storage.PermissionsStatus {
	return e.perms.Status()
}

// CalculateScrollDistance estimates how far the user has scrolled in app today.
// Unknown apps count as unused.
func (e *Engine) CalculateScrollDistance(app string) mockdata.ScrollMetrics {
	r, _ := e.tracker.Get(app)
	return ScrollDistance(r.Minutes())
}

// ScrollDistance converts minutes of use into a scroll estimate.
func ScrollDistance(minutes int64) mockdata.ScrollMetrics {
	scrolls := minutes * ScrollsPerMinute
	meters := scrolls * MetersPerScroll

	distance := fmt.Sprintf("%d m", meters)
	if meters >= 1000 {
		distance = fmt.Sprintf("%.1f km", float64(meters)/1000)
	}
	return mockdata.ScrollMetrics{Count: scrolls, Distance: distance}
}

// CompleteOnboarding records that onboarding finished.
func (e *Engine) CompleteOnboarding(ctx context.Context) error {
	if err := e.store.Onboarding().MarkCompleted(ctx); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist onboarding flag")
		return fmt.Errorf("failed to complete onboarding: %w", err)
	}
	return nil
}

// OnboardingCompleted reports whether onboarding finished. Read failures count as not completed.
func (e *Engine) OnboardingCompleted(ctx context.Context) bool {
	done, err := e.store.Onboarding().Completed(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to read onboarding flag")
		return false
	}
	return done
}
