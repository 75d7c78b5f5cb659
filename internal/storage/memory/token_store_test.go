package memory

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage"
)

func testToken(addr string, block uint64) *domain.TokenContract {
	return &domain.TokenContract{
		ChainID:     1,
		Address:     common.HexToAddress(addr),
		Deployer:    common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd"),
		Standard:    domain.StandardERC20,
		BlockNumber: block,
		Timestamp:   1704067200,
	}
}

func TestTokenStore_InsertAndGet(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	tok := testToken("0xaa", 100)
	require.NoError(t, s.Insert(ctx, tok))

	got, err := s.GetByAddress(ctx, 1, tok.Address)
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	// Stored copy must not alias the caller's struct.
	tok.BlockNumber = 999
	got2, err := s.GetByAddress(ctx, 1, tok.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got2.BlockNumber)
}

func TestTokenStore_DuplicateKey(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testToken("0xaa", 100)))
	err := s.Insert(ctx, testToken("0xaa", 200))
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTokenStore_SameAddressDifferentChain(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	a := testToken("0xaa", 100)
	b := testToken("0xaa", 100)
	b.ChainID = 137

	require.NoError(t, s.Insert(ctx, a))
	require.NoError(t, s.Insert(ctx, b))
}

func TestTokenStore_GetAllOrdered(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testToken("0xcc", 300)))
	require.NoError(t, s.Insert(ctx, testToken("0xaa", 100)))
	require.NoError(t, s.Insert(ctx, testToken("0xbb", 200)))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(100), all[0].BlockNumber)
	assert.Equal(t, uint64(200), all[1].BlockNumber)
	assert.Equal(t, uint64(300), all[2].BlockNumber)
}

func TestTokenStore_Delete(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	tok := testToken("0xaa", 100)
	require.NoError(t, s.Insert(ctx, tok))
	require.NoError(t, s.Delete(ctx, 1, tok.Address))

	_, err := s.GetByAddress(ctx, 1, tok.Address)
	require.ErrorIs(t, err, storage.ErrNotFound)

	err = s.Delete(ctx, 1, tok.Address)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_InvalidInput(t *testing.T) {
	s := NewTokenStore()
	ctx := context.Background()

	require.ErrorIs(t, s.Insert(ctx, nil), storage.ErrInvalidInput)
	require.ErrorIs(t, s.Insert(ctx, &domain.TokenContract{}), storage.ErrInvalidInput)
}
