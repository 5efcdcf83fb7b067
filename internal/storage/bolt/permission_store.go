package bolt

import (
	"context"

	"github.com/goodtune/timeguardian/internal/storage"
	"go.etcd.io/bbolt"
)

type permissionStore struct {
	db *bbolt.DB
}

func (s *permissionStore) Get(ctx context.Context) (*storage.PermissionsStatus, error) {
	return getValue[storage.PermissionsStatus](ctx, s.db, storage.KeyPermissions)
}

func (s *permissionStore) Grant(ctx context.Context, permission storage.Permission) error {
	return updateValue(ctx, s.db, storage.KeyPermissions, func(status *storage.PermissionsStatus) error {
		*status = status.With(permission)
		return nil
	})
}
