package bolt

import (
	"context"
	"errors"
	"time"

	"github.com/goodtune/timeguardian/internal/storage"
	"go.etcd.io/bbolt"
)

type blockStore struct {
	db *bbolt.DB
}

func (s *blockStore) load(ctx context.Context) (storage.BlockedApps, error) {
	blocked, err := getValue[storage.BlockedApps](ctx, s.db, storage.KeyBlockedApps)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.BlockedApps{}, nil
	}
	if err != nil {
		return nil, err
	}
	if *blocked == nil {
		return storage.BlockedApps{}, nil
	}
	return *blocked, nil
}

func (s *blockStore) modify(ctx context.Context, fn func(storage.BlockedApps)) error {
	return updateValue(ctx, s.db, storage.KeyBlockedApps, func(blocked *storage.BlockedApps) error {
		if *blocked == nil {
			*blocked = storage.BlockedApps{}
		}
		fn(*blocked)
		return nil
	})
}

func (s *blockStore) BlockUntil(ctx context.Context, app string, until time.Time) error {
	return s.modify(ctx, func(blocked storage.BlockedApps) {
		if until.UnixMilli() > blocked[app] {
			blocked[app] = until.UnixMilli()
		}
	})
}

func (s *blockStore) BlockedUntil(ctx context.Context, app string) (time.Time, error) {
	blocked, err := s.load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	ms, ok := blocked[app]
	if !ok {
		return time.Time{}, storage.ErrNotFound
	}
	return time.UnixMilli(ms), nil
}

func (s *blockStore) List(ctx context.Context) (map[string]time.Time, error) {
	blocked, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return blocked.ToTimes(), nil
}

func (s *blockStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	deleted := 0
	err := s.modify(ctx, func(blocked storage.BlockedApps) {
		for app, ms := range blocked {
			if ms <= now.UnixMilli() {
				delete(blocked, app)
				deleted++
			}
		}
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
