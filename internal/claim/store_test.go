package claim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insurego/claims-gateway/internal/policy"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	p := policy.Policy{PolicyNumber: "POL-1", Provider: "MediCare Plus"}
	require.NoError(t, store.Put(ctx, "D-1", "POL-1", p))

	got, err := store.Get(ctx, "D-1", "POL-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "MediCare Plus", got.Provider)
}

func TestMemoryStoreScopedPerUser(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "D-1", "POL-1", policy.Policy{PolicyNumber: "POL-1"}))

	got, err := store.Get(ctx, "D-2", "POL-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	require.NoError(t, store.Put(ctx, "D-1", "POL-1", policy.Policy{PolicyNumber: "POL-1"}))

	store.now = func() time.Time { return base.Add(29 * time.Minute) }
	got, err := store.Get(ctx, "D-1", "POL-1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	store.now = func() time.Time { return base.Add(31 * time.Minute) }
	got, err = store.Get(ctx, "D-1", "POL-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
