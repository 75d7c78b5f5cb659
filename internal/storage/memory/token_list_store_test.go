package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage"
)

func TestTokenListStore_ReadBeforeWrite(t *testing.T) {
	s := NewTokenListStore()

	_, err := s.Read(context.Background())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenListStore_WriteAndRead(t *testing.T) {
	s := NewTokenListStore()
	ctx := context.Background()

	list := []domain.ReferenceToken{
		{Name: "Tether", Symbol: "USDT", Type: "stablecoin"},
		{Name: "Wrapped Ether", Symbol: "WETH", Type: "wrapped"},
	}
	require.NoError(t, s.Write(ctx, list))

	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, list, got)

	// Mutating the returned slice must not affect the snapshot.
	got[0].Symbol = "XXXX"
	again, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "USDT", again[0].Symbol)
}

func TestTokenListStore_WriteReplaces(t *testing.T) {
	s := NewTokenListStore()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, []domain.ReferenceToken{{Name: "A", Symbol: "A"}}))
	require.NoError(t, s.Write(ctx, []domain.ReferenceToken{{Name: "B", Symbol: "B"}}))

	got, err := s.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].Name)
}

func TestTokenListStore_EmptySnapshotIsValid(t *testing.T) {
	s := NewTokenListStore()
	ctx := context.Background()

	require.ErrorIs(t, s.Write(ctx, nil), storage.ErrInvalidInput)

	require.NoError(t, s.Write(ctx, []domain.ReferenceToken{}))
	got, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
