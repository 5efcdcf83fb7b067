package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goodtune/timeguardian/internal/storage"
	"github.com/redis/go-redis/v9"
)

type walletStore struct {
	client *redis.Client
}

// GetBalance returns the persisted coin balance
func (s *walletStore) GetBalance(ctx context.Context) (int64, error) {
	balance, err := s.client.Get(ctx, key(storage.KeyBalance)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// SetBalance stores the coin balance
func (s *walletStore) SetBalance(ctx context.Context, balance int64) error {
	return s.client.Set(ctx, key(storage.KeyBalance), balance, 0).Err()
}

type permissionStore struct {
	client *redis.Client
}

// Get returns the permission record
func (s *permissionStore) Get(ctx context.Context) (*storage.PermissionsStatus, error) {
	data, err := s.client.HGetAll(ctx, key(storage.KeyPermissions)).Result()
	if err != nil {
		return nil, err
	}
	return parsePermissions(data)
}

// Grant sets a permission flag; the flag is never cleared
func (s *permissionStore) Grant(ctx context.Context, permission storage.Permission) error {
	field, err := permissionField(permission)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, key(storage.KeyPermissions), field, "true").Err()
}

type blockStore struct {
	client *redis.Client
}

// BlockUntil atomically records a block, keeping a later existing one
func (s *blockStore) BlockUntil(ctx context.Context, app string, until time.Time) error {
	script := redis.NewScript(blockUntilScript)
	return script.Run(ctx, s.client, []string{key(storage.KeyBlockedApps)}, app, until.UnixMilli()).Err()
}

// BlockedUntil returns when the block on app ends
func (s *blockStore) BlockedUntil(ctx context.Context, app string) (time.Time, error) {
	raw, err := s.client.HGet(ctx, key(storage.KeyBlockedApps), app).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, storage.ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse blocked-until for %s: %w", app, err)
	}
	return time.UnixMilli(ms), nil
}

// List returns every recorded block
func (s *blockStore) List(ctx context.Context) (map[string]time.Time, error) {
	data, err := s.client.HGetAll(ctx, key(storage.KeyBlockedApps)).Result()
	if err != nil {
		return nil, err
	}
	return parseBlocks(data), nil
}

// DeleteExpired removes blocks that ended at or before now
func (s *blockStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	script := redis.NewScript(deleteExpiredBlocksScript)
	deleted, err := script.Run(ctx, s.client, []string{key(storage.KeyBlockedApps)}, now.UnixMilli()).Int()
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

type onboardingStore struct {
	client *redis.Client
}

// Completed reports whether onboarding has been finished
func (s *onboardingStore) Completed(ctx context.Context) (bool, error) {
	raw, err := s.client.Get(ctx, key(storage.KeyOnboarding)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return raw == "true", nil
}

// MarkCompleted sets the onboarding flag
func (s *onboardingStore) MarkCompleted(ctx context.Context) error {
	return s.client.Set(ctx, key(storage.KeyOnboarding), "true", 0).Err()
}
