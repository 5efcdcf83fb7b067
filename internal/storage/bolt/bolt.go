package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goodtune/timeguardian/internal/storage"
	"go.etcd.io/bbolt"
)

// All values live in a single bucket so the file mirrors the flat key-value
// layout of browser local storage.
const bucketLocal = "local_storage"

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// ensureDir creates the parent directory of the database file.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketLocal)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketLocal, err)
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Wallet returns the wallet store.
func (s *Store) Wallet() storage.WalletStore { return &walletStore{db: s.db} }

// Permissions returns the permission store.
func (s *Store) Permissions() storage.PermissionStore { return &permissionStore{db: s.db} }

// Blocks returns the block store.
func (s *Store) Blocks() storage.BlockStore { return &blockStore{db: s.db} }

// Onboarding returns the onboarding store.
func (s *Store) Onboarding() storage.OnboardingStore { return &onboardingStore{db: s.db} }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

func getRaw(ctx context.Context, db *bbolt.DB, key string) ([]byte, error) {
	var out []byte
	err := db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketLocal))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(key))
		if value == nil {
			return storage.ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		out = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func getValue[T any](ctx context.Context, db *bbolt.DB, key string) (*T, error) {
	data, err := getRaw(ctx, db, key)
	if err != nil {
		return nil, err
	}
	var result T
	if err := unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func putRaw(ctx context.Context, db *bbolt.DB, key string, value []byte) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketLocal))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucketLocal)
		}
		return b.Put([]byte(key), value)
	})
}

// updateValue decodes the value under key (zero T when absent or corrupt),
// lets fn modify it and writes it back in one transaction.
func updateValue[T any](ctx context.Context, db *bbolt.DB, key string, fn func(*T) error) error {
	return db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketLocal))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucketLocal)
		}
		var value T
		if existing := b.Get([]byte(key)); existing != nil {
			_ = unmarshal(existing, &value)
		}
		if err := fn(&value); err != nil {
			return err
		}
		data, err := marshal(value)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}
