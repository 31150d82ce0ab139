//go:build integration

package settings

import (
	"context"
	"testing"
	"time"

	"github.com/loticredit/loticredit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_RoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := context.Background()

	_, err := store.GetConsumer(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.PutConsumer(ctx, &ConsumerSettings{ConsumerID: "alice", Email: "a@example.com", UpdatedAt: now}))
	require.NoError(t, store.PutConsumer(ctx, &ConsumerSettings{ConsumerID: "alice", Email: "alice@example.com", UpdatedAt: now}))

	cs, err := store.GetConsumer(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", cs.Email)

	require.NoError(t, store.PutLender(ctx, &LenderSettings{LenderID: "acme", MinCreditScore: 700, MaxDebtToIncome: 35, AutoApprove: true, UpdatedAt: now}))
	ls, err := store.GetLender(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 700, ls.MinCreditScore)
	assert.Equal(t, 35.0, ls.MaxDebtToIncome)
	assert.True(t, ls.AutoApprove)
}
