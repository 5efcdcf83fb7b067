package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/goodtune/timeguardian/internal/clock"
	"github.com/goodtune/timeguardian/internal/device"
	"github.com/goodtune/timeguardian/internal/metrics"
	"github.com/goodtune/timeguardian/internal/mockdata"
	"github.com/goodtune/timeguardian/internal/notify"
	"github.com/goodtune/timeguardian/internal/storage"
	"github.com/goodtune/timeguardian/internal/storage/memory"
	"github.com/goodtune/timeguardian/internal/usage"
	"github.com/rs/zerolog"
)

var (
	ErrRewardNotFound     = errors.New("reward not found")
	ErrRewardUnlocked     = errors.New("reward already unlocked")
	ErrInsufficientCoins  = errors.New("insufficient coins")
	ErrPermissionRequired = errors.New("device admin permission required")
	ErrUnknownApp         = errors.New("unknown app")
)

// UsageProvider reports how much an app has been used since the last tick.
type UsageProvider interface {
	Increment(ctx context.Context, app string) (time.Duration, error)
}

// AppLockController blocks apps for a period of time.
type AppLockController interface {
	Lock(ctx context.Context, app string, d time.Duration) (time.Time, error)
	IsLocked(ctx context.Context, app string) (bool, error)
	PruneExpired(ctx context.Context, at time.Time) (int, error)
}

// PermissionManager gates OS capabilities behind a consent flow.
type PermissionManager interface {
	Status() storage.PermissionsStatus
	Has(p storage.Permission) bool
	Request(ctx context.Context, p storage.Permission) *device.PendingGrant
}

// Deps are the collaborators of an Engine. Nil fields get simulated defaults.
type Deps struct {
	Clock       clock.Clock
	Store       storage.Store
	Usage       UsageProvider
	Locks       AppLockController
	Permissions PermissionManager
	Sink        notify.Sink
}

// State is a point-in-time copy of everything the engine owns.
type State struct {
	Time                 time.Time                 `json:"time"`
	Today                []usage.AppUsage          `json:"today"`
	Weekly               mockdata.WeeklyUsage      `json:"weekly"`
	Settings             mockdata.UserSettings     `json:"settings"`
	Stats                mockdata.UserStats        `json:"stats"`
	Rewards              []mockdata.RewardItem     `json:"rewards"`
	Permissions          storage.PermissionsStatus `json:"permissions"`
	LastRewardEvaluation time.Time                 `json:"lastRewardEvaluation"`
}

// Engine owns the simulated usage, settings, coin balance and reward catalog.
// Every operation runs under a single mutex. Notifications raised during an
// operation are delivered after the mutex is released, so action callbacks
// may call back into the engine.
type Engine struct {
	policy   Policy
	clock    clock.Clock
	store    storage.Store
	provider UsageProvider
	locks    AppLockController
	perms    PermissionManager
	sink     notify.Sink
	tracker  *usage.Tracker
	reset    *usage.ResetScheduler
	logger   zerolog.Logger

	mu             sync.Mutex
	rng            *rand.Rand
	weekly         mockdata.WeeklyUsage
	settings       mockdata.UserSettings
	stats          mockdata.UserStats
	rewards        []mockdata.RewardItem
	lastRewardEval time.Time
	outbox         []notify.Notification

	runMu    sync.Mutex
	running  bool
	stopTick func()
	cancel   context.CancelFunc
}

// New creates an engine, loading persisted state and generating today's and
// the weekly synthetic usage. Unreadable persisted state falls back to defaults.
func New(ctx context.Context, cfg Config, deps Deps, logger zerolog.Logger) (*Engine, error) {
	if cfg.Policy.TickPeriod <= 0 {
		return nil, fmt.Errorf("tick period must be positive, got %s", cfg.Policy.TickPeriod)
	}
	if cfg.Policy.BucketMinutes <= 0 {
		return nil, fmt.Errorf("bucket minutes must be positive, got %d", cfg.Policy.BucketMinutes)
	}
	if len(cfg.Apps) == 0 {
		cfg.Apps = mockdata.DefaultApps()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		policy: cfg.Policy,
		clock:  deps.Clock,
		store:  deps.Store,
		sink:   deps.Sink,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger.With().Str("component", "engine").Logger(),
	}
	if e.clock == nil {
		e.clock = clock.RealClock{}
	}
	if e.store == nil {
		e.store = memory.New()
	}
	if e.sink == nil {
		e.sink = notify.Discard
	}

	e.provider = deps.Usage
	if e.provider == nil {
		e.provider = device.NewSimulatedUsage(e.rng.Int63(), cfg.Policy.MaxIncrement)
	}
	e.locks = deps.Locks
	if e.locks == nil {
		e.locks = device.NewSimulatedLock(e.store.Blocks(), e.clock, logger)
	}
	e.perms = deps.Permissions
	if e.perms == nil {
		e.perms = device.NewPermissionManager(ctx, e.store.Permissions(), notify.SinkFunc(e.deliver), e.clock, logger)
	}

	today := cfg.InitialUsage
	if today == nil {
		today = mockdata.GenerateUsage(e.rng, cfg.Apps)
	}
	e.tracker = usage.NewTracker(today, logger)
	e.weekly = mockdata.GenerateWeekly(e.rng, cfg.Apps)
	e.settings = mockdata.DefaultSettings(cfg.Apps)
	e.settings.NotificationsEnabled = cfg.NotificationsEnabled
	e.rewards = mockdata.DefaultRewards()
	e.stats = mockdata.UserStats{Coins: e.loadBalance(ctx), Rewards: []string{}}
	e.lastRewardEval = e.clock.Now()
	metrics.CoinBalance.Set(float64(e.stats.Coins))

	if cfg.DailyResetTime != "" {
		rs, err := usage.NewResetScheduler(e.clock, cfg.DailyResetTime, func(at time.Time) {
			e.Rollover(context.Background(), at)
		}, logger)
		if err != nil {
			return nil, err
		}
		e.reset = rs
	}

	e.logger.Info().
		Int("apps", len(cfg.Apps)).
		Int64("coins", e.stats.Coins).
		Dur("tick_period", e.policy.TickPeriod).
		Msg("Engine initialized")

	return e, nil
}

func (e *Engine) loadBalance(ctx context.Context) int64 {
	balance, err := e.store.Wallet().GetBalance(ctx)
	switch {
	case err == nil:
		if balance < 0 {
			return 0
		}
		return balance
	case storage.IsNotFound(err):
	default:
		e.logger.Error().Err(err).Msg("Failed to read coin balance, using starting balance")
	}
	return e.policy.StartingBalance
}

// Start runs the recurring tick and the daily rollover until Stop or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.stopTick = e.clock.Every(e.policy.TickPeriod, func() {
		if ctx.Err() != nil {
			return
		}
		e.Tick(ctx)
	})
	if e.reset != nil {
		e.reset.Start()
	}
	e.running = true

	e.logger.Info().Dur("tick_period", e.policy.TickPeriod).Msg("Engine started")
}

// Stop cancels the recurring tick. It is safe to call more than once.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if !e.running {
		return
	}
	e.stopTick()
	e.cancel()
	if e.reset != nil {
		e.reset.Stop()
	}
	e.running = false

	e.logger.Info().Msg("Engine stopped")
}

// Policy returns the active policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Snapshot returns a deep copy of the engine state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	weekly := make(mockdata.WeeklyUsage, len(e.weekly))
	for day, records := range e.weekly {
		weekly[day] = append([]mockdata.UsageRecord(nil), records...)
	}

	limits := make(map[string]int, len(e.settings.DailyLimits))
	for app, limit := range e.settings.DailyLimits {
		limits[app] = limit
	}

	stats := e.stats
	stats.Rewards = append([]string{}, e.stats.Rewards...)

	return State{
		Time:                 e.clock.Now(),
		Today:                e.todayLocked(),
		Weekly:               weekly,
		Settings:             mockdata.UserSettings{DailyLimits: limits, NotificationsEnabled: e.settings.NotificationsEnabled},
		Stats:                stats,
		Rewards:              append([]mockdata.RewardItem(nil), e.rewards...),
		Permissions:          e.perms.Status(),
		LastRewardEvaluation: e.lastRewardEval,
	}
}

// Today returns today's records annotated with limits and bands.
func (e *Engine) Today() []usage.AppUsage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.todayLocked()
}

func (e *Engine) todayLocked() []usage.AppUsage {
	records := e.tracker.Records()
	out := make([]usage.AppUsage, len(records))
	for i, r := range records {
		out[i] = usage.Annotate(r, e.settings.LimitMinutes(r.AppName))
	}
	return out
}

// Weekly returns a copy of the weekly history.
func (e *Engine) Weekly() mockdata.WeeklyUsage {
	return e.Snapshot().Weekly
}

// Rewards returns a copy of the reward catalog.
func (e *Engine) Rewards() []mockdata.RewardItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]mockdata.RewardItem(nil), e.rewards...)
}

// Balance returns the current coin balance.
func (e *Engine) Balance() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.Coins
}

// do runs fn under the engine mutex and delivers the notifications it raised
// once the mutex is released.
func (e *Engine) do(fn func()) {
	e.mu.Lock()
	fn()
	pending := e.outbox
	e.outbox = nil
	e.mu.Unlock()

	for _, n := range pending {
		e.deliver(n)
	}
}

// emit queues a notification (must be called with lock held).
func (e *Engine) emit(n notify.Notification) {
	e.outbox = append(e.outbox, n)
}

func (e *Engine) newNotification(title, description string, severity notify.Severity) notify.Notification {
	return notify.New(title, description, severity, e.clock.Now())
}

func (e *Engine) deliver(n notify.Notification) {
	metrics.NotificationsTotal.WithLabelValues(string(n.Severity)).Inc()
	e.sink.Notify(n)
}

// setBalance clamps, stores and persists the balance (must be called with lock held).
// Persistence failures are logged and the in-memory balance is kept.
func (e *Engine) setBalance(ctx context.Context, balance int64) {
	if balance < 0 {
		balance = 0
	}
	e.stats.Coins = balance
	metrics.CoinBalance.Set(float64(balance))

	if err := e.store.Wallet().SetBalance(ctx, balance); err != nil {
		e.logger.Error().Err(err).Int64("coins", balance).Msg("Failed to persist coin balance")
	}
}

// credit adds amount to the balance (must be called with lock held).
func (e *Engine) credit(ctx context.Context, amount int64, reason string) {
	if amount <= 0 {
		return
	}
	metrics.CoinsAwarded.WithLabelValues(reason).Add(float64(amount))
	e.setBalance(ctx, e.stats.Coins+amount)
}

// debit subtracts amount from the balance, clamping at zero (must be called with lock held).
func (e *Engine) debit(ctx context.Context, amount int64, reason string) {
	if amount <= 0 {
		return
	}
	taken := amount
	if taken > e.stats.Coins {
		taken = e.stats.Coins
	}
	metrics.CoinsDeducted.WithLabelValues(reason).Add(float64(taken))
	e.setBalance(ctx, e.stats.Coins-amount)
}
