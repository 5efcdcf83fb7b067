package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store represents the root storage interface.
// It is a passive mirror of the engine state that must survive restarts:
// the coin balance, permission flags, app blocks and the onboarding flag.
type Store interface {
	Close() error
	Wallet() WalletStore
	Permissions() PermissionStore
	Blocks() BlockStore
	Onboarding() OnboardingStore
}

// WalletStore persists the FocusCoins balance.
type WalletStore interface {
	GetBalance(ctx context.Context) (int64, error)
	SetBalance(ctx context.Context, balance int64) error
}

// PermissionStore persists simulated OS permission grants.
// Grants are monotone: a granted permission is never revoked.
type PermissionStore interface {
	Get(ctx context.Context) (*PermissionsStatus, error)
	Grant(ctx context.Context, permission Permission) error
}

// BlockStore persists blocked-until timestamps keyed by app name.
type BlockStore interface {
	// BlockUntil records that app is blocked until the given time. An existing
	// later block is kept.
	BlockUntil(ctx context.Context, app string, until time.Time) error
	BlockedUntil(ctx context.Context, app string) (time.Time, error)
	List(ctx context.Context) (map[string]time.Time, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// OnboardingStore persists the one-shot onboarding-completed flag.
type OnboardingStore interface {
	Completed(ctx context.Context) (bool, error)
	MarkCompleted(ctx context.Context) error
}
