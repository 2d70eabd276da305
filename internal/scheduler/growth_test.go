package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mertakgul/payflow/internal/cache"
	"github.com/mertakgul/payflow/internal/models"
	"github.com/mertakgul/payflow/internal/money"
	repo "github.com/mertakgul/payflow/internal/repository"
	"github.com/mertakgul/payflow/internal/services"
	"github.com/mertakgul/payflow/internal/worker"
)

type memStore struct {
	mu      sync.Mutex
	rows    map[int64]*models.Account
	scanErr error

	// conflictFor makes every fenced write on the given user fail, as if a
	// transfer kept winning the race
	conflictFor int64
}

func newMemStore(accounts ...models.Account) *memStore {
	m := &memStore{rows: map[int64]*models.Account{}}
	for _, a := range accounts {
		a := a
		m.rows[a.UserID] = &a
	}
	return m
}

func (m *memStore) Get(_ context.Context, userID int64) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) CompareAndSwap(_ context.Context, userID, expectedVersion int64, newBalance money.Cents) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if userID == m.conflictFor {
		return 0, repo.ErrVersionConflict
	}
	a, ok := m.rows[userID]
	if !ok || a.Version != expectedVersion {
		return 0, repo.ErrVersionConflict
	}
	a.Balance = newBalance
	a.Version++
	a.UpdatedAt = time.Now()
	return a.Version, nil
}

func (m *memStore) TransferCommit(_ context.Context, debit, credit repo.AccountWrite) error {
	panic("not used by the growth job")
}

func (m *memStore) ScanAll(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	out := make([]models.Account, 0, len(m.rows))
	for _, a := range m.rows {
		out = append(out, *a)
	}
	return out, nil
}

func (m *memStore) balance(userID int64) money.Cents {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[userID].Balance
}

func newGrowth(t *testing.T, store *memStore) *Growth {
	t.Helper()
	wp := worker.NewPool(3)
	t.Cleanup(wp.Stop)
	svc := services.NewAccountService(store, nil, nil, cache.NewAccounts(nil, 0), nil)
	return NewGrowth(svc, wp, time.Minute)
}

func acct(userID int64, balance, initial money.Cents) models.Account {
	return models.Account{UserID: userID, Balance: balance, InitialBalance: initial, Version: 1}
}

func TestRunCycleAppliesIncrease(t *testing.T) {
	store := newMemStore(
		acct(1, 10000, 10000), // plain 10% step
		acct(2, 20000, 10000), // clamped at the 207.00 ceiling
		acct(3, 20700, 10000), // already at ceiling, untouched
	)
	g := newGrowth(t, store)

	g.RunCycle(context.Background())

	assert.Equal(t, money.Cents(11000), store.balance(1))
	assert.Equal(t, money.Cents(20700), store.balance(2))
	assert.Equal(t, money.Cents(20700), store.balance(3))
}

func TestRunCycleRepeatedConvergesToCeiling(t *testing.T) {
	store := newMemStore(acct(1, 10000, 10000))
	g := newGrowth(t, store)

	for i := 0; i < 20; i++ {
		g.RunCycle(context.Background())
	}
	assert.Equal(t, money.GrowthCeiling(10000), store.balance(1))
}

func TestRunCycleConflictSkipsRecordOnly(t *testing.T) {
	store := newMemStore(
		acct(1, 10000, 10000),
		acct(2, 10000, 10000),
		acct(3, 10000, 10000),
	)
	store.conflictFor = 2
	g := newGrowth(t, store)

	g.RunCycle(context.Background())

	// the conflicted record is left for the next cycle; the rest proceed
	assert.Equal(t, money.Cents(11000), store.balance(1))
	assert.Equal(t, money.Cents(10000), store.balance(2))
	assert.Equal(t, money.Cents(11000), store.balance(3))
}

func TestRunCycleScanFailure(t *testing.T) {
	store := newMemStore(acct(1, 10000, 10000))
	store.scanErr = context.DeadlineExceeded
	g := newGrowth(t, store)

	// must not panic and must not mutate anything
	g.RunCycle(context.Background())
	require.Equal(t, money.Cents(10000), store.balance(1))
}
