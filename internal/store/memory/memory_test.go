package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/achievement"
	"tally/internal/core"
	"tally/internal/store"
)

func sampleTx(userID string) core.Transaction {
	return core.Transaction{
		Amount:      decimal.NewFromInt(10),
		Description: "coffee",
		Category:    "Food",
		Date:        "2024-01-01",
		IsExpense:   true,
		UserID:      userID,
	}
}

func TestStore_LedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Append(ctx, sampleTx("alice"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	txs, err := s.ListAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, id, txs[0].ID)

	updated := txs[0]
	updated.Description = "espresso"
	require.NoError(t, s.Update(ctx, updated))

	txs, err = s.ListAll(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "espresso", txs[0].Description)

	require.NoError(t, s.Delete(ctx, "alice", id))
	txs, err = s.ListAll(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestStore_LedgerErrors(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Append(ctx, core.Transaction{UserID: "alice"})
	assert.Error(t, err, "invalid transaction must be rejected")

	missing := sampleTx("alice")
	missing.ID = "mem:999"
	assert.ErrorIs(t, s.Update(ctx, missing), store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "alice", "mem:999"), store.ErrNotFound)
}

func TestStore_ListUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Append(ctx, sampleTx("bob"))
	require.NoError(t, err)
	_, err = s.Append(ctx, sampleTx("alice"))
	require.NoError(t, err)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func TestStore_InitializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	defs := achievement.Catalog()

	require.NoError(t, s.Initialize(ctx, "alice", defs))

	// Earn one record, then initialize again: the earned flag must survive.
	require.NoError(t, s.UpdateState(ctx, "alice", achievement.State{
		Name:       achievement.FirstTransaction,
		Earned:     true,
		DateEarned: "2024-01-01",
	}))
	require.NoError(t, s.Initialize(ctx, "alice", defs))

	states, err := s.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, states, len(defs))

	var earned int
	for _, st := range states {
		if st.Earned {
			earned++
			assert.Equal(t, achievement.FirstTransaction, st.Name)
		}
	}
	assert.Equal(t, 1, earned)
}

func TestStore_Budget(t *testing.T) {
	ctx := context.Background()
	s := New()

	b, err := s.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, b, "no budget saved yet")

	budget := core.Budget{Min: decimal.NewFromInt(100), Max: decimal.NewFromInt(500)}
	require.NoError(t, s.Save(ctx, "alice", budget))

	assert.Error(t, s.Save(ctx, "alice", core.Budget{
		Min: decimal.NewFromInt(500),
		Max: decimal.NewFromInt(100),
	}), "inverted budget must be rejected")

	b, err = s.Get(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.True(t, b.Min.Equal(budget.Min))
	assert.True(t, b.Max.Equal(budget.Max))
}
