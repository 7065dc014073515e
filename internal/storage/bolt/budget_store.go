package bolt

import (
	"context"

	"github.com/goodtune/onlinelimiter/internal/storage"
	"go.etcd.io/bbolt"
)

type budgetStore struct {
	db *bbolt.DB
}

func (s *budgetStore) Get(ctx context.Context) (*storage.BudgetSlot, error) {
	return getBucketValue[storage.BudgetSlot](ctx, s.db, bucketBudget, budgetKey)
}

func (s *budgetStore) Put(ctx context.Context, slot storage.BudgetSlot) error {
	return putBucketValue(ctx, s.db, bucketBudget, budgetKey, slot)
}
