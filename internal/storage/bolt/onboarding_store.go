package bolt

import (
	"context"
	"errors"

	"github.com/goodtune/timeguardian/internal/storage"
	"go.etcd.io/bbolt"
)

type onboardingStore struct {
	db *bbolt.DB
}

func (s *onboardingStore) Completed(ctx context.Context) (bool, error) {
	raw, err := getRaw(ctx, s.db, storage.KeyOnboarding)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return string(raw) == "true", nil
}

func (s *onboardingStore) MarkCompleted(ctx context.Context) error {
	return putRaw(ctx, s.db, storage.KeyOnboarding, []byte("true"))
}
