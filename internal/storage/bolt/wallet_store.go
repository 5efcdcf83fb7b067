package bolt

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goodtune/timeguardian/internal/storage"
	"go.etcd.io/bbolt"
)

type walletStore struct {
	db *bbolt.DB
}

func (s *walletStore) GetBalance(ctx context.Context) (int64, error) {
	raw, err := getRaw(ctx, s.db, storage.KeyBalance)
	if err != nil {
		return 0, err
	}
	balance, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance: %w", err)
	}
	return balance, nil
}

func (s *walletStore) SetBalance(ctx context.Context, balance int64) error {
	return putRaw(ctx, s.db, storage.KeyBalance, []byte(strconv.FormatInt(balance, 10)))
}
