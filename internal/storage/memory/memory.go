package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/goodtune/timeguardian/internal/storage"
)

// Store is an in-memory implementation of storage.Store. It keeps flat
// string values under the same keys as the persistent backends, which makes
// it behave like browser local storage for a single process.
// This implementation is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
	err    error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

// SetError makes every subsequent operation fail with err; nil restores normal behavior.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Raw returns the stored string for key.
func (s *Store) Raw(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// SetRaw stores value under key, bypassing encoding. Useful for seeding corrupt data in tests.
func (s *Store) SetRaw(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Wallet returns the wallet store.
func (s *Store) Wallet() storage.WalletStore { return walletStore{s} }

// Permissions returns the permission store.
func (s *Store) Permissions() storage.PermissionStore { return permissionStore{s} }

// Blocks returns the block store.
func (s *Store) Blocks() storage.BlockStore { return blockStore{s} }

// Onboarding returns the onboarding store.
func (s *Store) Onboarding() storage.OnboardingStore { return onboardingStore{s} }

func (s *Store) get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.values[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return v, nil
}

// update runs fn with the current value (empty and false when absent) under
// the write lock and stores whatever it returns.
func (s *Store) update(ctx context.Context, key string, fn func(current string, ok bool) (string, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	current, ok := s.values[key]
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	s.values[key] = next
	return nil
}

type walletStore struct{ s *Store }

func (w walletStore) GetBalance(ctx context.Context) (int64, error) {
	raw, err := w.s.get(ctx, storage.KeyBalance)
	if err != nil {
		return 0, err
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse balance: %w", err)
	}
	return balance, nil
}

func (w walletStore) SetBalance(ctx context.Context, balance int64) error {
	return w.s.update(ctx, storage.KeyBalance, func(string, bool) (string, error) {
		return strconv.FormatInt(balance, 10), nil
	})
}

type permissionStore struct{ s *Store }

func (p permissionStore) Get(ctx context.Context) (*storage.PermissionsStatus, error) {
	raw, err := p.s.get(ctx, storage.KeyPermissions)
	if err != nil {
		return nil, err
	}
	var status storage.PermissionsStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("failed to parse permissions: %w", err)
	}
	return &status, nil
}

func (p permissionStore) Grant(ctx context.Context, permission storage.Permission) error {
	return p.s.update(ctx, storage.KeyPermissions, func(current string, ok bool) (string, error) {
		var status storage.PermissionsStatus
		if ok {
			// A corrupt record is treated as "never granted".
			_ = json.Unmarshal([]byte(current), &status)
		}
		data, err := json.Marshal(status.With(permission))
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
}

type blockStore struct{ s *Store }

func (b blockStore) load(ctx context.Context) (storage.BlockedApps, error) {
	raw, err := b.s.get(ctx, storage.KeyBlockedApps)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.BlockedApps{}, nil
	}
	if err != nil {
		return nil, err
	}
	blocked := storage.BlockedApps{}
	if err := json.Unmarshal([]byte(raw), &blocked); err != nil {
		return nil, fmt.Errorf("failed to parse blocked apps: %w", err)
	}
	return blocked, nil
}

func (b blockStore) modify(ctx context.Context, fn func(storage.BlockedApps)) error {
	return b.s.update(ctx, storage.KeyBlockedApps, func(current string, ok bool) (string, error) {
		blocked := storage.BlockedApps{}
		if ok {
			_ = json.Unmarshal([]byte(current), &blocked)
		}
		fn(blocked)
		data, err := json.Marshal(blocked)
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
}

func (b blockStore) BlockUntil(ctx context.Context, app string, until time.Time) error {
	return b.modify(ctx, func(blocked storage.BlockedApps) {
		if until.UnixMilli() > blocked[app] {
			blocked[app] = until.UnixMilli()
		}
	})
}

func (b blockStore) BlockedUntil(ctx context.Context, app string) (time.Time, error) {
	blocked, err := b.load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	ms, ok := blocked[app]
	if !ok {
		return time.Time{}, storage.ErrNotFound
	}
	return time.UnixMilli(ms), nil
}

func (b blockStore) List(ctx context.Context) (map[string]time.Time, error) {
	blocked, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	return blocked.ToTimes(), nil
}

func (b blockStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	deleted := 0
	err := b.modify(ctx, func(blocked storage.BlockedApps) {
		for app, ms := range blocked {
			if ms <= now.UnixMilli() {
				delete(blocked, app)
				deleted++
			}
		}
	})
	return deleted, err
}

type onboardingStore struct{ s *Store }

func (o onboardingStore) Completed(ctx context.Context) (bool, error) {
	raw, err := o.s.get(ctx, storage.KeyOnboarding)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return raw == "true", nil
}

func (o onboardingStore) MarkCompleted(ctx context.Context) error {
	return o.s.update(ctx, storage.KeyOnboarding, func(string, bool) (string, error) {
		return "true", nil
	})
}
