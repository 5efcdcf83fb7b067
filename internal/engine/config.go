package engine

import (
	"time"

	"github.com/goodtune/timeguardian/internal/config"
	"github.com/goodtune/timeguardian/internal/mockdata"
)

// Policy defaults.
const (
	DefaultTickPeriod      = time.Minute
	DefaultMaxIncrement    = 10 * time.Minute
	DefaultCooldown        = 5 * time.Minute
	DefaultBucketMinutes   = 30
	DefaultBonusPerBucket  = 10
	DefaultPenaltyOnExceed = 5
	DefaultLockDuration    = time.Hour
	DefaultLockReward      = 50
	DefaultBreakReward     = 15
)

// Policy holds every tunable constant of the usage and reward rules.
type Policy struct {
	TickPeriod      time.Duration
	MaxIncrement    time.Duration
	Cooldown        time.Duration // minimum interval between reward evaluations
	BucketMinutes   int           // minutes under the limit per bonus bucket
	BonusPerBucket  int64
	PenaltyOnExceed int64
	LockDuration    time.Duration
	LockReward      int64
	BreakReward     int64
	StartingBalance int64
}

// DefaultPolicy returns the stock policy.
func DefaultPolicy() Policy {
	return Policy{
		TickPeriod:      DefaultTickPeriod,
		MaxIncrement:    DefaultMaxIncrement,
		Cooldown:        DefaultCooldown,
		BucketMinutes:   DefaultBucketMinutes,
		BonusPerBucket:  DefaultBonusPerBucket,
		PenaltyOnExceed: DefaultPenaltyOnExceed,
		LockDuration:    DefaultLockDuration,
		LockReward:      DefaultLockReward,
		BreakReward:     DefaultBreakReward,
	}
}

// Config configures an Engine.
type Config struct {
	Policy               Policy
	Apps                 []mockdata.App
	NotificationsEnabled bool

	// DailyResetTime is the HH:MM rollover time. Empty disables rollover.
	DailyResetTime string

	// Seed drives the synthetic data. Zero picks a random seed.
	Seed int64

	// InitialUsage replaces the generated usage for today when set.
	InitialUsage []mockdata.UsageRecord
}

// DefaultConfig returns the stock configuration with the default apps.
func DefaultConfig() Config {
	return Config{
		Policy:               DefaultPolicy(),
		Apps:                 mockdata.DefaultApps(),
		NotificationsEnabled: true,
		DailyResetTime:       "00:00",
	}
}

// FromConfig builds the engine configuration from the application configuration.
func FromConfig(cfg *config.Config) Config {
	e := cfg.Engine

	apps := make([]mockdata.App, len(cfg.Apps))
	for i, a := range cfg.Apps {
		apps[i] = mockdata.App{Name: a.Name, Color: a.Color, Icon: a.Icon, LimitMinutes: a.LimitMinutes}
	}

	return Config{
		Policy: Policy{
			TickPeriod:      config.ParseDuration(e.TickPeriod, DefaultTickPeriod),
			MaxIncrement:    config.ParseDuration(e.MaxIncrement, DefaultMaxIncrement),
			Cooldown:        config.ParseDuration(e.RewardCooldown, DefaultCooldown),
			BucketMinutes:   e.BucketMinutes,
			BonusPerBucket:  e.BonusPerBucket,
			PenaltyOnExceed: e.PenaltyOnExceed,
			LockDuration:    config.ParseDuration(e.LockDuration, DefaultLockDuration),
			LockReward:      e.LockReward,
			BreakReward:     e.BreakReward,
			StartingBalance: e.StartingBalance,
		},
		Apps:                 apps,
		NotificationsEnabled: cfg.Notifications.Enabled,
		DailyResetTime:       e.DailyResetTime,
		Seed:                 e.Seed,
	}
}
