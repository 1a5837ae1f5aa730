package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/store"
	"tally/internal/store/memory"
)

type fakeChangePublisher struct {
	users []string
	err   error
}

func (f *fakeChangePublisher) PublishLedgerChanged(_ context.Context, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.users = append(f.users, userID)
	return nil
}

func TestTransactionService_Add(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	changes := &fakeChangePublisher{}
	svc := NewTransactionService(mem, changes)

	id, err := svc.Add(ctx, expenseTx("user-1", "2024-01-15", "Food", 50))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"user-1"}, changes.users)

	txs, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, id, txs[0].ID)
	assert.NotZero(t, txs[0].CreatedAt, "created-at is filled in on save")
}

func TestTransactionService_AddInvalid(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	changes := &fakeChangePublisher{}
	svc := NewTransactionService(mem, changes)

	tx := expenseTx("user-1", "2024-01-15", "Food", 50)
	tx.Description = ""

	_, err := svc.Add(ctx, tx)
	assert.ErrorIs(t, err, core.ErrEmptyDescription)
	assert.Empty(t, changes.users, "no event for a rejected transaction")
}

func TestTransactionService_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	changes := &fakeChangePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(mem, changes)

	id, err := svc.Add(ctx, expenseTx("user-1", "2024-01-15", "Food", 50))
	require.NoError(t, err, "a lost event must not fail the save")
	assert.NotEmpty(t, id)

	txs, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestTransactionService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc := NewTransactionService(mem, nil)

	id, err := svc.Add(ctx, expenseTx("user-1", "2024-01-15", "Food", 50))
	require.NoError(t, err)

	updated := expenseTx("user-1", "2024-01-16", "Transportation", 75)
	updated.ID = id
	require.NoError(t, svc.Update(ctx, updated))

	txs, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "Transportation", txs[0].Category)

	require.NoError(t, svc.Delete(ctx, "user-1", id))

	txs, err = svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, txs)

	missing := expenseTx("user-1", "2024-01-16", "Transportation", 75)
	missing.ID = "no-such-id"
	assert.ErrorIs(t, svc.Update(ctx, missing), store.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "user-1", "no-such-id"), store.ErrNotFound)
}

func TestTransactionService_Get(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc := NewTransactionService(mem, nil)

	id, err := svc.Add(ctx, expenseTx("user-1", "2024-01-15", "Food", 50))
	require.NoError(t, err)

	tx, err := svc.Get(ctx, "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, id, tx.ID)
	assert.Equal(t, "2024-01-15", tx.Date)

	_, err = svc.Get(ctx, "user-1", "no-such-id")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Another user cannot read the transaction.
	_, err = svc.Get(ctx, "user-2", id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactionService_Summary(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	svc := NewTransactionService(mem, nil)

	seed := []core.Transaction{
		expenseTx("user-1", "2024-01-05", "Food", 300),
		expenseTx("user-1", "2024-01-20", "Food", 200),
		expenseTx("user-1", "2024-01-25", "Transportation", 100),
		incomeTx("user-1", "2024-01-01", "Salary", 2000),
		expenseTx("user-1", "2024-02-01", "Food", 999), // outside the month
		expenseTx("user-2", "2024-01-10", "Food", 999), // other user
	}
	for _, tx := range seed {
		_, err := svc.Add(ctx, tx)
		require.NoError(t, err)
	}

	summary, err := svc.Summary(ctx, "user-1", 2024, 1)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Transactions)
	assert.True(t, summary.Expenses.Equal(decimal.NewFromInt(600)), "expenses = %s", summary.Expenses)
	assert.True(t, summary.Income.Equal(decimal.NewFromInt(2000)), "income = %s", summary.Income)
	assert.True(t, summary.NetSavings.Equal(decimal.NewFromInt(1400)), "net savings = %s", summary.NetSavings)

	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, "Food", summary.ByCategory[0].Category)
	assert.True(t, summary.ByCategory[0].Total.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "Transportation", summary.ByCategory[1].Category)
}
