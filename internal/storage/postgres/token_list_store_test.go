package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage"
)

func TestTokenListStore_ReadBeforeWrite(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenListStore(pool)

	_, err := store.Read(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenListStore_WriteReadRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenListStore(pool)
	ctx := context.Background()

	list := []domain.ReferenceToken{
		{
			Name:   "Tether",
			Symbol: "USDT",
			Type:   "stablecoin",
			Deployments: map[string]string{
				"1": "0xdAC17F958D2ee523a2206206994597C13D831ec7",
			},
		},
		{Name: "Wrapped Ether", Symbol: "WETH", Type: "wrapped"},
	}
	require.NoError(t, store.Write(ctx, list))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, list, got)
}

func TestTokenListStore_WriteReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenListStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, []domain.ReferenceToken{{Name: "A", Symbol: "A"}}))
	require.NoError(t, store.Write(ctx, []domain.ReferenceToken{{Name: "B", Symbol: "B"}}))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].Name)
}
