package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goodtune/timeguardian/internal/clock"
	"github.com/goodtune/timeguardian/internal/config"
	"github.com/goodtune/timeguardian/internal/device"
	"github.com/goodtune/timeguardian/internal/mockdata"
	"github.com/goodtune/timeguardian/internal/notify"
	"github.com/goodtune/timeguardian/internal/storage"
	"github.com/goodtune/timeguardian/internal/storage/memory"
	"github.com/goodtune/timeguardian/internal/usage"
	"github.com/rs/zerolog"
)

type harness struct {
	e     *Engine
	clock *clock.ManualClock
	store *memory.Store
	rec   *notify.Recorder
}

type option func(*Config, *Deps)

func withUsage(u UsageProvider) option {
	return func(_ *Config, d *Deps) { d.Usage = u }
}

func withResetTime(hhmm string) option {
	return func(c *Config, _ *Deps) { c.DailyResetTime = hhmm }
}

func withSink(s notify.Sink) option {
	return func(_ *Config, d *Deps) { d.Sink = s }
}

// records builds today's usage for the default apps; missing apps get zero minutes.
func records(minutes map[string]int64) []mockdata.UsageRecord {
	out := mockdata.EmptyUsage(mockdata.DefaultApps())
	for i := range out {
		out[i].TimeInMillis = minutes[out[i].AppName] * 60000
	}
	return out
}

func newHarnessWithStore(t *testing.T, store *memory.Store, minutes map[string]int64, opts ...option) *harness {
	t.Helper()

	c := clock.FixedClock()
	rec := &notify.Recorder{}

	cfg := DefaultConfig()
	cfg.Seed = 1
	cfg.DailyResetTime = ""
	cfg.InitialUsage = records(minutes)
	deps := Deps{Clock: c, Store: store, Usage: device.FixedUsage(0), Sink: rec}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	e, err := New(context.Background(), cfg, deps, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(e.Stop)

	return &harness{e: e, clock: c, store: store, rec: rec}
}

func newHarness(t *testing.T, minutes map[string]int64, opts ...option) *harness {
	return newHarnessWithStore(t, memory.New(), minutes, opts...)
}

func seededStore(t *testing.T, coins int64, grants ...storage.Permission) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.Wallet().SetBalance(ctx, coins); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	for _, p := range grants {
		if err := store.Permissions().Grant(ctx, p); err != nil {
			t.Fatalf("seed grant: %v", err)
		}
	}
	return store
}

func (h *harness) usageMs(t *testing.T, app string) int64 {
	t.Helper()
	r, ok := h.e.tracker.Get(app)
	if !ok {
		t.Fatalf("unknown app %s", app)
	}
	return r.TimeInMillis
}

func TestNew_Defaults(t *testing.T) {
	h := newHarness(t, nil)

	s := h.e.Snapshot()
	if s.Stats.Coins != 0 {
		t.Errorf("starting coins = %d, want 0", s.Stats.Coins)
	}
	if len(s.Today) != 3 {
		t.Fatalf("expected 3 apps today, got %d", len(s.Today))
	}
	if len(s.Weekly) != 7 {
		t.Errorf("expected 7 weekly entries, got %d", len(s.Weekly))
	}
	if s.Settings.DailyLimits["TikTok"] != 30 || !s.Settings.NotificationsEnabled {
		t.Errorf("unexpected settings %+v", s.Settings)
	}
	if s.Permissions.UsageStats || s.Permissions.DeviceAdmin {
		t.Errorf("permissions granted by default: %+v", s.Permissions)
	}
	if len(s.Rewards) != 4 {
		t.Errorf("expected 4 rewards, got %d", len(s.Rewards))
	}
	if !s.LastRewardEvaluation.Equal(h.clock.Now()) {
		t.Errorf("cooldown not armed at construction: %v", s.LastRewardEvaluation)
	}
}

func TestNew_GeneratedUsageInRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 99
	e, err := New(context.Background(), cfg, Deps{Clock: clock.FixedClock()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, r := range e.tracker.Records() {
		if r.Minutes() < mockdata.MinInitialMinutes || r.Minutes() >= mockdata.MaxInitialMinutes {
			t.Errorf("%s: initial usage %d minutes out of range", r.AppName, r.Minutes())
		}
	}
}

func TestNew_InvalidPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.TickPeriod = 0
	if _, err := New(context.Background(), cfg, Deps{}, zerolog.Nop()); err == nil {
		t.Error("expected error for zero tick period")
	}

	cfg = DefaultConfig()
	cfg.Policy.BucketMinutes = 0
	if _, err := New(context.Background(), cfg, Deps{}, zerolog.Nop()); err == nil {
		t.Error("expected error for zero bucket")
	}

	cfg = DefaultConfig()
	cfg.DailyResetTime = "noon"
	if _, err := New(context.Background(), cfg, Deps{Clock: clock.FixedClock()}, zerolog.Nop()); err == nil {
		t.Error("expected error for invalid reset time")
	}
}

func TestNew_StorageFallbacks(t *testing.T) {
	t.Run("corrupt balance", func(t *testing.T) {
		store := memory.New()
		store.SetRaw(storage.KeyBalance, "not-a-number")
		h := newHarnessWithStore(t, store, nil)
		if h.e.Balance() != 0 {
			t.Errorf("balance = %d, want 0", h.e.Balance())
		}
	})

	t.Run("starting balance when absent", func(t *testing.T) {
		h := newHarness(t, nil, func(c *Config, _ *Deps) { c.Policy.StartingBalance = 40 })
		if h.e.Balance() != 40 {
			t.Errorf("balance = %d, want 40", h.e.Balance())
		}
	})

	t.Run("store unavailable", func(t *testing.T) {
		store := memory.New()
		store.SetError(errors.New("storage unavailable"))
		h := newHarnessWithStore(t, store, nil)

		if h.e.Balance() != 0 || h.e.HasDeviceAdminPermission() {
			t.Fatalf("expected defaults, got coins=%d admin=%v", h.e.Balance(), h.e.HasDeviceAdminPermission())
		}

		h.e.TakeBreak(context.Background(), "TikTok")
		if h.e.Balance() != DefaultBreakReward {
			t.Errorf("balance = %d, want %d despite failed persistence", h.e.Balance(), DefaultBreakReward)
		}
		if h.e.OnboardingCompleted(context.Background()) {
			t.Error("onboarding should read as not completed")
		}
	})
}

func TestEvaluateRewards_Arithmetic(t *testing.T) {
	tests := []struct {
		name      string
		minutes   map[string]int64
		start     int64
		wantDelta int64
		wantCoins int64
		wantTitle string
	}{
		{
			name:      "mixed",
			minutes:   map[string]int64{"Instagram": 0, "Facebook": 10, "TikTok": 31},
			wantDelta: 20 + 10 - 5,
			wantCoins: 25,
			wantTitle: "Points Earned!",
		},
		{
			name:      "partial buckets round down",
			minutes:   map[string]int64{"Instagram": 1, "Facebook": 16, "TikTok": 1},
			wantDelta: 10 + 0 + 0,
			wantCoins: 10,
			wantTitle: "Points Earned!",
		},
		{
			name:      "at limit counts as under",
			minutes:   map[string]int64{"Instagram": 60, "Facebook": 45, "TikTok": 30},
			wantDelta: 0,
			wantCoins: 0,
		},
		{
			name:      "all over clamps at zero",
			minutes:   map[string]int64{"Instagram": 61, "Facebook": 46, "TikTok": 31},
			start:     3,
			wantDelta: -15,
			wantCoins: 0,
			wantTitle: "Points Deducted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarnessWithStore(t, seededStore(t, tt.start), tt.minutes)
			h.clock.Advance(DefaultCooldown)

			delta, ran := h.e.EvaluateRewards(context.Background())
			if !ran {
				t.Fatal("evaluation did not run after cooldown")
			}
			if delta != tt.wantDelta {
				t.Errorf("delta = %d, want %d", delta, tt.wantDelta)
			}
			if h.e.Balance() != tt.wantCoins {
				t.Errorf("coins = %d, want %d", h.e.Balance(), tt.wantCoins)
			}

			if tt.wantTitle == "" {
				if h.rec.Len() != 0 {
					t.Errorf("expected no notification, got %v", h.rec.Titles())
				}
				return
			}
			if titles := h.rec.Titles(); len(titles) != 1 || titles[0] != tt.wantTitle {
				t.Errorf("notifications = %v, want [%s]", titles, tt.wantTitle)
			}
		})
	}
}

func TestEvaluateRewards_SummaryText(t *testing.T) {
	h := newHarness(t, map[string]int64{"Instagram": 0, "Facebook": 10, "TikTok": 31})
	h.clock.Advance(DefaultCooldown)
	h.e.EvaluateRewards(context.Background())

	n, _ := h.rec.Last()
	if n.Description != "+25 points for responsible usage." {
		t.Errorf("description = %q", n.Description)
	}

	raw, _ := h.store.Raw(storage.KeyBalance)
	if raw != "25" {
		t.Errorf("persisted balance = %q, want 25", raw)
	}
}

func TestEvaluateRewards_Cooldown(t *testing.T) {
	h := newHarness(t, map[string]int64{"Instagram": 0})
	ctx := context.Background()

	if _, ran := h.e.EvaluateRewards(ctx); ran {
		t.Fatal("evaluation ran before the cooldown elapsed")
	}

	h.clock.Advance(DefaultCooldown - time.Second)
	if _, ran := h.e.EvaluateRewards(ctx); ran {
		t.Fatal("evaluation ran one second early")
	}

	h.clock.Advance(time.Second)
	if _, ran := h.e.EvaluateRewards(ctx); !ran {
		t.Fatal("evaluation did not run once the cooldown elapsed")
	}
	coins := h.e.Balance()

	if _, ran := h.e.EvaluateRewards(ctx); ran {
		t.Fatal("second evaluation within cooldown ran")
	}
	if h.e.Balance() != coins {
		t.Errorf("balance changed by skipped evaluation: %d -> %d", coins, h.e.Balance())
	}
}

func TestTick_ThresholdNotifications(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 100), map[string]int64{"Instagram": 54, "Facebook": 0, "TikTok": 30})

	h.e.Tick(context.Background())

	all := h.rec.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 notifications, got %v", h.rec.Titles())
	}

	approaching := all[0]
	if approaching.Title != "Almost at Instagram Limit" || approaching.Description != "You've used 90% of your daily limit." {
		t.Errorf("unexpected approaching notification %+v", approaching)
	}
	if approaching.Severity != notify.SeverityNormal || approaching.Action != nil {
		t.Errorf("approaching notification should be plain: %+v", approaching)
	}

	exceeded := all[1]
	if exceeded.Title != "TikTok Limit Exceeded!" || exceeded.Description != "Consider taking a break from TikTok." {
		t.Errorf("unexpected exceeded notification %+v", exceeded)
	}
	if exceeded.Severity != notify.SeverityDestructive {
		t.Errorf("exceeded severity = %s", exceeded.Severity)
	}
	if exceeded.Action == nil || exceeded.Action.Label != "Lock Now" {
		t.Fatalf("exceeded notification has no lock action: %+v", exceeded.Action)
	}

	if h.e.Balance() != 95 {
		t.Errorf("coins = %d, want 95 after penalty", h.e.Balance())
	}
}

func TestTick_RepeatsWhileInBand(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 100), map[string]int64{"TikTok": 45})

	for i := 0; i < 3; i++ {
		h.e.Tick(context.Background())
	}

	count := 0
	for _, title := range h.rec.Titles() {
		if title == "TikTok Limit Exceeded!" {
			count++
		}
	}
	if count != 3 {
		t.Errorf("exceeded notifications = %d, want 3", count)
	}
	if h.e.Balance() != 85 {
		t.Errorf("coins = %d, want 85", h.e.Balance())
	}
}

func TestTick_NotificationsDisabled(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 20), map[string]int64{"Instagram": 55, "TikTok": 40})
	ctx := context.Background()

	h.e.SetNotificationsEnabled(ctx, false)
	h.e.Tick(ctx)

	if h.rec.Len() != 0 {
		t.Errorf("expected no alerts while disabled, got %v", h.rec.Titles())
	}
	if h.e.Balance() != 20 {
		t.Errorf("coins = %d, want 20: no exceed penalty while alerts are off", h.e.Balance())
	}

	h.e.SetNotificationsEnabled(ctx, true)
	if n, _ := h.rec.Last(); n.Title != "Notifications Enabled" {
		t.Errorf("expected enable confirmation, got %q", n.Title)
	}
	h.e.SetNotificationsEnabled(ctx, true)
	if h.rec.Len() != 1 {
		t.Errorf("re-enabling emitted again: %v", h.rec.Titles())
	}
}

func TestTick_BalanceNeverNegative(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 12),
		map[string]int64{"Instagram": 200, "Facebook": 200, "TikTok": 200},
		withUsage(device.FixedUsage(3*time.Minute)))

	h.e.Start(context.Background())
	for i := 0; i < 30; i++ {
		h.clock.Advance(time.Minute)

		if h.e.Balance() < 0 {
			t.Fatalf("tick %d: balance %d below zero", i, h.e.Balance())
		}
		raw, _ := h.store.Raw(storage.KeyBalance)
		if raw == "" || raw[0] == '-' {
			t.Fatalf("tick %d: persisted balance %q", i, raw)
		}
	}
	if h.e.Balance() != 0 {
		t.Errorf("balance = %d, want 0", h.e.Balance())
	}
}

func TestTick_UsageIsMonotonic(t *testing.T) {
	h := newHarness(t, nil, withUsage(device.NewSimulatedUsage(5, DefaultMaxIncrement)))
	h.e.Start(context.Background())

	prev := map[string]int64{}
	for i := 0; i < 50; i++ {
		h.clock.Advance(time.Minute)
		for _, r := range h.e.tracker.Records() {
			if r.TimeInMillis < prev[r.AppName] {
				t.Fatalf("%s usage decreased: %d -> %d", r.AppName, prev[r.AppName], r.TimeInMillis)
			}
			if r.TimeInMillis-prev[r.AppName] > DefaultMaxIncrement.Milliseconds() {
				t.Fatalf("%s grew by more than the max increment", r.AppName)
			}
			prev[r.AppName] = r.TimeInMillis
		}
	}
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, nil, withUsage(device.FixedUsage(time.Minute)))
	ctx := context.Background()

	h.e.Start(ctx)
	h.e.Start(ctx)
	h.clock.Advance(3 * time.Minute)

	if got := h.usageMs(t, "Instagram"); got != 3*60000 {
		t.Fatalf("usage after 3 ticks = %d, want 180000", got)
	}

	h.e.Stop()
	h.e.Stop()
	h.clock.Advance(10 * time.Minute)

	if got := h.usageMs(t, "Instagram"); got != 3*60000 {
		t.Errorf("ticks continued after Stop: %d", got)
	}
	if h.clock.Pending() != 0 {
		t.Errorf("timers left after Stop: %d", h.clock.Pending())
	}
}

func TestStart_CancelledContextStopsTicks(t *testing.T) {
	h := newHarness(t, nil, withUsage(device.FixedUsage(time.Minute)))
	ctx, cancel := context.WithCancel(context.Background())

	h.e.Start(ctx)
	h.clock.Advance(time.Minute)
	cancel()
	h.clock.Advance(5 * time.Minute)

	if got := h.usageMs(t, "TikTok"); got != 60000 {
		t.Errorf("usage = %d, want 60000", got)
	}
}

func TestUpdateDailyLimit(t *testing.T) {
	h := newHarness(t, map[string]int64{"TikTok": 40})
	ctx := context.Background()

	h.e.UpdateDailyLimit(ctx, "TikTok", 90)

	n, _ := h.rec.Last()
	if n.Title != "Limit Updated" || n.Description != "New daily limit for TikTok: 90 minutes" {
		t.Errorf("unexpected notification %+v", n)
	}
	if got := h.e.Snapshot().Settings.DailyLimits["TikTok"]; got != 90 {
		t.Errorf("limit = %d, want 90", got)
	}

	h.rec.Reset()
	h.e.Tick(ctx)
	if h.rec.Len() != 0 {
		t.Errorf("raised limit should silence alerts, got %v", h.rec.Titles())
	}
}

func TestPurchaseReward(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 120), nil)
	ctx := context.Background()

	if err := h.e.PurchaseReward(ctx, "dark-theme"); err != nil {
		t.Fatalf("PurchaseReward() error = %v", err)
	}
	if h.e.Balance() != 20 {
		t.Errorf("coins = %d, want 20", h.e.Balance())
	}
	n, _ := h.rec.Last()
	if n.Title != "Reward Unlocked!" || n.Description != "You've unlocked: Dark Mode Theme" || n.Severity != notify.SeveritySuccess {
		t.Errorf("unexpected notification %+v", n)
	}

	s := h.e.Snapshot()
	if len(s.Stats.Rewards) != 1 || s.Stats.Rewards[0] != "dark-theme" {
		t.Errorf("unlocked list = %v", s.Stats.Rewards)
	}
	if !s.Rewards[0].Unlocked {
		t.Error("catalog entry not marked unlocked")
	}
}

func TestPurchaseReward_Idempotent(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 500), nil)
	ctx := context.Background()

	_ = h.e.PurchaseReward(ctx, "custom-colors")
	before := h.e.Snapshot()
	notifications := h.rec.Len()

	if err := h.e.PurchaseReward(ctx, "custom-colors"); !errors.Is(err, ErrRewardUnlocked) {
		t.Fatalf("second purchase error = %v, want ErrRewardUnlocked", err)
	}

	after := h.e.Snapshot()
	if after.Stats.Coins != before.Stats.Coins {
		t.Errorf("coins changed: %d -> %d", before.Stats.Coins, after.Stats.Coins)
	}
	if len(after.Stats.Rewards) != 1 {
		t.Errorf("unlocked list changed: %v", after.Stats.Rewards)
	}
	if h.rec.Len() != notifications {
		t.Errorf("second purchase notified: %v", h.rec.Titles())
	}
}

func TestPurchaseReward_InsufficientCoins(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 20), nil)

	err := h.e.PurchaseReward(context.Background(), "advanced-stats")
	if !errors.Is(err, ErrInsufficientCoins) {
		t.Fatalf("error = %v, want ErrInsufficientCoins", err)
	}

	n, _ := h.rec.Last()
	if n.Title != "Not Enough Points" || n.Description != "You need 280 more points to unlock this reward." {
		t.Errorf("unexpected notification %+v", n)
	}
	if n.Severity != notify.SeverityDestructive {
		t.Errorf("severity = %s", n.Severity)
	}

	s := h.e.Snapshot()
	if s.Stats.Coins != 20 || len(s.Stats.Rewards) != 0 || s.Rewards[3].Unlocked {
		t.Errorf("state changed: %+v", s.Stats)
	}
}

func TestPurchaseReward_UnknownID(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 1000), nil)

	if err := h.e.PurchaseReward(context.Background(), "gold-star"); !errors.Is(err, ErrRewardNotFound) {
		t.Fatalf("error = %v, want ErrRewardNotFound", err)
	}
	if h.rec.Len() != 0 || h.e.Balance() != 1000 {
		t.Errorf("unknown reward changed state: coins=%d notifications=%v", h.e.Balance(), h.rec.Titles())
	}
}

func TestLockApp_WithoutPermission(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 30), nil)
	ctx := context.Background()

	err := h.e.LockApp(ctx, "Instagram")
	if !errors.Is(err, ErrPermissionRequired) {
		t.Fatalf("error = %v, want ErrPermissionRequired", err)
	}

	if h.rec.Len() != 1 {
		t.Fatalf("expected exactly one notification, got %v", h.rec.Titles())
	}
	n, _ := h.rec.Last()
	if n.Title != "Permission Required" || n.Severity != notify.SeverityDestructive {
		t.Errorf("unexpected notification %+v", n)
	}
	if n.Action == nil || n.Action.Label != "Grant Permission" {
		t.Errorf("missing retry action: %+v", n.Action)
	}

	if h.e.Balance() != 30 {
		t.Errorf("coins = %d, want 30", h.e.Balance())
	}
	if blocks, _ := h.store.Blocks().List(ctx); len(blocks) != 0 {
		t.Errorf("block state changed: %v", blocks)
	}
	if h.e.IsAppLocked(ctx, "Instagram") {
		t.Error("app reported locked")
	}
}

func TestLockApp_WithPermission(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 10, storage.PermissionDeviceAdmin), nil)
	ctx := context.Background()

	if err := h.e.LockApp(ctx, "Instagram"); err != nil {
		t.Fatalf("LockApp() error = %v", err)
	}

	if h.e.Balance() != 60 {
		t.Errorf("coins = %d, want 60", h.e.Balance())
	}
	titles := h.rec.Titles()
	if len(titles) != 2 || titles[0] != "App Locked" || titles[1] != "Coins Earned" {
		t.Errorf("notifications = %v", titles)
	}

	until, err := h.store.Blocks().BlockedUntil(ctx, "Instagram")
	if err != nil {
		t.Fatalf("BlockedUntil() error = %v", err)
	}
	if !until.Equal(h.clock.Now().Add(time.Hour)) {
		t.Errorf("blocked until %v, want now+1h", until)
	}
	if !h.e.IsAppLocked(ctx, "Instagram") {
		t.Error("expected Instagram locked")
	}

	h.clock.Advance(time.Hour)
	if h.e.IsAppLocked(ctx, "Instagram") {
		t.Error("block should expire after the lock duration")
	}
}

func TestLockApp_UnknownApp(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 10, storage.PermissionDeviceAdmin), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := h.e.LockApp(ctx, "NotAnApp"); !errors.Is(err, ErrUnknownApp) {
			t.Fatalf("lock %d: error = %v, want ErrUnknownApp", i, err)
		}
	}

	if h.e.Balance() != 10 {
		t.Errorf("coins = %d, want 10", h.e.Balance())
	}
	if h.rec.Len() != 0 {
		t.Errorf("notifications = %v, want none", h.rec.Titles())
	}
	blocks, err := h.store.Blocks().List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("blocks = %v, want none", blocks)
	}
}

func TestLockApp_StoreFailure(t *testing.T) {
	store := seededStore(t, 10, storage.PermissionDeviceAdmin)
	h := newHarnessWithStore(t, store, nil)
	store.SetError(errors.New("disk full"))

	if err := h.e.LockApp(context.Background(), "TikTok"); err == nil {
		t.Fatal("expected error")
	}
	if h.e.Balance() != 10 {
		t.Errorf("coins = %d, want 10: no reward without a lock", h.e.Balance())
	}
	if h.rec.Len() != 0 {
		t.Errorf("unexpected notifications %v", h.rec.Titles())
	}
}

func TestPermissionGrantTransition(t *testing.T) {
	store := memory.New()
	h := newHarnessWithStore(t, store, nil)
	ctx := context.Background()

	g := h.e.RequestDeviceAdminPermission(ctx)
	if h.e.HasDeviceAdminPermission() || g.Resolved() {
		t.Fatal("permission granted before the action was triggered")
	}

	prompt, _ := h.rec.Last()
	if prompt.Title != "Device Admin Permission Required" || prompt.Action == nil {
		t.Fatalf("unexpected prompt %+v", prompt)
	}
	prompt.Action.Callback()

	if !g.Resolved() {
		t.Error("grant not resolved")
	}
	for i := 0; i < 3; i++ {
		if !h.e.HasDeviceAdminPermission() {
			t.Fatalf("call %d: permission reverted", i)
		}
	}
	if h.e.HasUsageStatsPermission() {
		t.Error("usage stats granted as a side effect")
	}

	reloaded := newHarnessWithStore(t, store, nil)
	if !reloaded.e.HasDeviceAdminPermission() {
		t.Error("grant did not survive a restart")
	}
}

func TestRequestUsageStatsPermission(t *testing.T) {
	h := newHarness(t, nil)

	g := h.e.RequestUsageStatsPermission(context.Background())
	prompt, _ := h.rec.Last()
	if prompt.Title != "Usage Stats Permission Required" {
		t.Fatalf("unexpected prompt %q", prompt.Title)
	}
	prompt.Action.Callback()

	if !g.Resolved() || !h.e.HasUsageStatsPermission() || !h.e.Permissions().UsageStats {
		t.Error("usage stats permission not granted")
	}
}

func TestLockNowAction_FullFlow(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 100), map[string]int64{"TikTok": 45})
	ctx := context.Background()

	h.e.Tick(ctx)
	exceeded, ok := h.rec.Find("TikTok Limit Exceeded!")
	if !ok {
		t.Fatal("no exceeded notification")
	}

	// Lock Now without permission asks for it.
	exceeded.Action.Callback()
	required, _ := h.rec.Last()
	if required.Title != "Permission Required" {
		t.Fatalf("expected permission required, got %q", required.Title)
	}

	// Grant Permission opens the device admin prompt.
	required.Action.Callback()
	prompt, _ := h.rec.Last()
	if prompt.Title != "Device Admin Permission Required" {
		t.Fatalf("expected device admin prompt, got %q", prompt.Title)
	}
	prompt.Action.Callback()

	// Lock Now succeeds once granted.
	coins := h.e.Balance()
	exceeded.Action.Callback()
	if !h.e.IsAppLocked(ctx, "TikTok") {
		t.Error("TikTok not locked")
	}
	if h.e.Balance() != coins+DefaultLockReward {
		t.Errorf("coins = %d, want %d", h.e.Balance(), coins+DefaultLockReward)
	}
}

func TestActionCallbackCanReenterEngine(t *testing.T) {
	rec := &notify.Recorder{}
	var h *harness
	autoLock := notify.SinkFunc(func(n notify.Notification) {
		if n.Action != nil && n.Action.Label == "Lock Now" {
			n.Action.Callback()
		}
	})

	h = newHarnessWithStore(t, seededStore(t, 0, storage.PermissionDeviceAdmin),
		map[string]int64{"Facebook": 50},
		withSink(notify.Multi{rec, autoLock}))

	done := make(chan struct{})
	go func() {
		h.e.Tick(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tick deadlocked while running an action callback")
	}

	if !h.e.IsAppLocked(context.Background(), "Facebook") {
		t.Error("Facebook not locked by the action")
	}
	if _, ok := rec.Find("App Locked"); !ok {
		t.Errorf("lock confirmation missing: %v", rec.Titles())
	}
}

func TestTakeBreak(t *testing.T) {
	h := newHarness(t, nil)

	if err := h.e.TakeBreak(context.Background(), "NotAnApp"); !errors.Is(err, ErrUnknownApp) {
		t.Fatalf("untracked app error = %v, want ErrUnknownApp", err)
	}
	if h.e.Balance() != 0 || h.rec.Len() != 0 {
		t.Fatalf("untracked app credited: coins=%d notifications=%v", h.e.Balance(), h.rec.Titles())
	}

	if err := h.e.TakeBreak(context.Background(), "Instagram"); err != nil {
		t.Fatalf("TakeBreak() error = %v", err)
	}

	if h.e.Balance() != 15 {
		t.Errorf("coins = %d, want 15", h.e.Balance())
	}
	n, _ := h.rec.Last()
	if n.Title != "Break Taken" || n.Severity != notify.SeveritySuccess {
		t.Errorf("unexpected notification %+v", n)
	}
}

func TestNudge(t *testing.T) {
	h := newHarness(t, nil)

	msg := h.e.Nudge("TikTok")
	for _, m := range mockdata.NudgeMessages("TikTok") {
		if m == msg {
			return
		}
	}
	t.Errorf("unexpected nudge %q", msg)
}

func TestScrollDistance(t *testing.T) {
	tests := []struct {
		minutes   int64
		wantCount int64
		want      string
	}{
		{0, 0, "0 m"},
		{1, 70, "140 m"},
		{7, 490, "980 m"},
		{8, 560, "1.1 km"},
		{60, 4200, "8.4 km"},
	}

	for _, tt := range tests {
		got := ScrollDistance(tt.minutes)
		if got.Count != tt.wantCount || got.Distance != tt.want {
			t.Errorf("ScrollDistance(%d) = %+v, want {%d %s}", tt.minutes, got, tt.wantCount, tt.want)
		}
	}
}

func TestCalculateScrollDistance(t *testing.T) {
	h := newHarness(t, map[string]int64{"Instagram": 8})

	if got := h.e.CalculateScrollDistance("Instagram"); got.Distance != "1.1 km" || got.Count != 560 {
		t.Errorf("Instagram = %+v", got)
	}
	if got := h.e.CalculateScrollDistance("Snapchat"); got.Distance != "0 m" || got.Count != 0 {
		t.Errorf("unknown app = %+v", got)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	h := newHarnessWithStore(t, seededStore(t, 200), nil)
	_ = h.e.PurchaseReward(context.Background(), "dark-theme")

	s := h.e.Snapshot()
	s.Settings.DailyLimits["Instagram"] = 1
	s.Weekly["Monday"][0].TimeInMillis = -1
	s.Stats.Rewards[0] = "tampered"
	s.Rewards[1].Unlocked = true
	s.Today[0].TimeInMillis = -1

	fresh := h.e.Snapshot()
	if fresh.Settings.DailyLimits["Instagram"] != 60 {
		t.Error("settings shared with snapshot")
	}
	if fresh.Weekly["Monday"][0].TimeInMillis < 0 {
		t.Error("weekly history shared with snapshot")
	}
	if fresh.Stats.Rewards[0] != "dark-theme" {
		t.Error("unlocked list shared with snapshot")
	}
	if fresh.Rewards[1].Unlocked {
		t.Error("catalog shared with snapshot")
	}
	if fresh.Today[0].TimeInMillis < 0 {
		t.Error("today's usage shared with snapshot")
	}
}

func TestToday_Bands(t *testing.T) {
	h := newHarness(t, map[string]int64{"Instagram": 10, "Facebook": 41, "TikTok": 30})

	want := map[string]usage.Band{
		"Instagram": usage.UnderLimit,
		"Facebook":  usage.Approaching,
		"TikTok":    usage.Exceeded,
	}
	for _, a := range h.e.Today() {
		if a.Band != want[a.AppName] {
			t.Errorf("%s band = %s, want %s", a.AppName, a.Band, want[a.AppName])
		}
	}
}

func TestRollover_Streaks(t *testing.T) {
	store := memory.New()
	h := newHarnessWithStore(t, store, map[string]int64{"Instagram": 10, "Facebook": 10, "TikTok": 10})
	ctx := context.Background()

	// The fixed clock starts on Monday 2024-01-15.
	tuesday := time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	_ = store.Blocks().BlockUntil(ctx, "Instagram", tuesday.Add(-time.Hour))
	_ = store.Blocks().BlockUntil(ctx, "TikTok", tuesday.Add(time.Hour))

	h.e.Rollover(ctx, tuesday)

	s := h.e.Snapshot()
	if s.Stats.Streak != 1 || s.Stats.DaysUnderLimit != 1 || s.Stats.HighestStreak != 1 {
		t.Errorf("stats after good day = %+v", s.Stats)
	}
	monday := s.Weekly["Monday"]
	if len(monday) != 3 || monday[0].TimeInMillis != 10*60000 {
		t.Errorf("Monday history = %+v", monday)
	}
	for _, a := range s.Today {
		if a.TimeInMillis != 0 {
			t.Errorf("%s not reset: %d", a.AppName, a.TimeInMillis)
		}
	}
	blocks, _ := store.Blocks().List(ctx)
	if _, ok := blocks["Instagram"]; ok || len(blocks) != 1 {
		t.Errorf("expired blocks not pruned: %v", blocks)
	}

	h.e.tracker.Add("Instagram", 5*time.Minute)
	h.e.Rollover(ctx, tuesday.AddDate(0, 0, 1))
	if s := h.e.Snapshot(); s.Stats.Streak != 2 || s.Stats.HighestStreak != 2 {
		t.Errorf("stats after second good day = %+v", s.Stats)
	}

	h.e.tracker.Add("TikTok", 31*time.Minute)
	h.e.Rollover(ctx, tuesday.AddDate(0, 0, 2))
	s = h.e.Snapshot()
	if s.Stats.Streak != 0 || s.Stats.HighestStreak != 2 || s.Stats.DaysUnderLimit != 2 {
		t.Errorf("stats after bad day = %+v", s.Stats)
	}
	if s.Weekly["Wednesday"][2].TimeInMillis != 31*60000 {
		t.Errorf("Wednesday history = %+v", s.Weekly["Wednesday"])
	}
}

func TestRollover_Scheduled(t *testing.T) {
	h := newHarness(t, map[string]int64{"Instagram": 5}, withResetTime("00:00"))

	h.e.Start(context.Background())
	h.clock.Advance(14 * time.Hour) // 10:30 Monday -> 00:30 Tuesday

	s := h.e.Snapshot()
	if s.Stats.Streak != 1 {
		t.Errorf("streak = %d, want 1", s.Stats.Streak)
	}
	if s.Weekly["Monday"][0].TimeInMillis != 5*60000 {
		t.Errorf("Monday history = %+v", s.Weekly["Monday"])
	}
}

func TestRollover_NonMidnightReset(t *testing.T) {
	h := newHarness(t, map[string]int64{"Instagram": 5}, withResetTime("23:30"))
	sunday := h.e.Snapshot().Weekly["Sunday"][0].TimeInMillis

	h.e.Start(context.Background())
	h.clock.Advance(13 * time.Hour) // 10:30 Monday -> 23:30 Monday

	s := h.e.Snapshot()
	if got := s.Weekly["Monday"][0].TimeInMillis; got != 5*60000 {
		t.Errorf("Monday Instagram = %dms, want %d", got, 5*60000)
	}
	if got := s.Weekly["Sunday"][0].TimeInMillis; got != sunday {
		t.Errorf("Sunday Instagram = %dms, want untouched %d", got, sunday)
	}
}

func TestFinishedDay(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want time.Weekday
	}{
		{"midnight", time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), time.Monday},
		{"just after midnight", time.Date(2024, 1, 16, 0, 30, 0, 0, time.UTC), time.Monday},
		{"early morning", time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC), time.Monday},
		{"late evening", time.Date(2024, 1, 15, 23, 30, 0, 0, time.UTC), time.Monday},
		{"evening", time.Date(2024, 1, 15, 20, 0, 0, 0, time.UTC), time.Monday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := finishedDay(tt.at); got != tt.want {
				t.Errorf("finishedDay(%s) = %s, want %s", tt.at.Format(time.RFC3339), got, tt.want)
			}
		})
	}
}

func TestOnboarding(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if h.e.OnboardingCompleted(ctx) {
		t.Fatal("onboarding completed on a fresh store")
	}
	if err := h.e.CompleteOnboarding(ctx); err != nil {
		t.Fatalf("CompleteOnboarding() error = %v", err)
	}
	if !h.e.OnboardingCompleted(ctx) {
		t.Error("onboarding flag not set")
	}
	if raw, _ := h.store.Raw(storage.KeyOnboarding); raw != "true" {
		t.Errorf("raw flag = %q", raw)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{
		Engine: config.EngineConfig{
			TickPeriod:      "30s",
			MaxIncrement:    "bogus",
			RewardCooldown:  "10m",
			BucketMinutes:   15,
			BonusPerBucket:  5,
			PenaltyOnExceed: 2,
			LockDuration:    "2h",
			LockReward:      20,
			BreakReward:     7,
			StartingBalance: 50,
			DailyResetTime:  "03:00",
			Seed:            9,
		},
		Apps:          []config.AppConfig{{Name: "YouTube", Color: "#FF0000", Icon: "youtube", LimitMinutes: 90}},
		Notifications: config.NotificationConfig{Enabled: false},
	}

	got := FromConfig(cfg)

	if got.Policy.TickPeriod != 30*time.Second || got.Policy.Cooldown != 10*time.Minute || got.Policy.LockDuration != 2*time.Hour {
		t.Errorf("durations = %+v", got.Policy)
	}
	if got.Policy.MaxIncrement != DefaultMaxIncrement {
		t.Errorf("invalid duration should fall back, got %v", got.Policy.MaxIncrement)
	}
	if got.Policy.BucketMinutes != 15 || got.Policy.StartingBalance != 50 {
		t.Errorf("policy = %+v", got.Policy)
	}
	if len(got.Apps) != 1 || got.Apps[0].LimitMinutes != 90 {
		t.Errorf("apps = %+v", got.Apps)
	}
	if got.NotificationsEnabled || got.DailyResetTime != "03:00" || got.Seed != 9 {
		t.Errorf("config = %+v", got)
	}
}
