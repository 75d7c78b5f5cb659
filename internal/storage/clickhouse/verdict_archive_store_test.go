package clickhouse

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-spam-detector/internal/domain"
)

func TestVerdictArchiveStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewVerdictArchiveStore(conn)
	ctx := context.Background()

	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	records := []*domain.VerdictRecord{
		{
			ChainID:     1,
			Address:     addr,
			Standard:    domain.StandardERC20,
			IsSpam:      true,
			IsFinalized: true,
			DetectedBy:  []string{"impersonation"},
			BlockNumber: 18000000,
			Timestamp:   300,
			CreatedAt:   300,
		},
		{
			ChainID:     1,
			Address:     addr,
			Standard:    domain.StandardERC20,
			IsSpam:      false,
			DetectedBy:  []string{},
			BlockNumber: 18000000,
			Timestamp:   100,
			CreatedAt:   100,
		},
	}

	require.NoError(t, store.InsertBulk(ctx, records))

	got, err := store.GetByAddress(ctx, 1, addr)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(100), got[0].Timestamp)
	assert.False(t, got[0].IsSpam)
	assert.Empty(t, got[0].DetectedBy)

	assert.Equal(t, int64(300), got[1].Timestamp)
	assert.True(t, got[1].IsSpam)
	assert.True(t, got[1].IsFinalized)
	assert.Equal(t, []string{"impersonation"}, got[1].DetectedBy)
}

func TestVerdictArchiveStore_EmptyBatchNoop(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewVerdictArchiveStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, nil))

	got, err := store.GetByAddress(ctx, 1, common.HexToAddress("0xaa"))
	require.NoError(t, err)
	assert.Empty(t, got)
}
