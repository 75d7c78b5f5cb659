package modules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/provider/stub"
)

func TestAirdrop_MassDistributionDetected(t *testing.T) {
	var events []domain.TxEvent
	for i := 0; i < 60; i++ {
		events = append(events, transfer(testDeployer, addrN(i), 1000))
	}

	params := newScanParams(stub.New(), nil, 0, 100)
	params.Events = events

	m := NewAirdrop(AirdropConfig{})
	require.NoError(t, m.Scan(context.Background(), params))

	res, ok := params.Context.Get("airdrop")
	require.True(t, ok)
	assert.True(t, res.Detected)
	assert.Equal(t, testDeployer.Hex(), res.Metadata["sender"])
	assert.Equal(t, 60, res.Metadata["recipients"])
}

func TestAirdrop_OrganicTradingNotDetected(t *testing.T) {
	// Many senders, each with a handful of counterparties.
	var events []domain.TxEvent
	for i := 0; i < 60; i++ {
		events = append(events, transfer(addrN(i), addrN(i+1), int64(100+i)))
	}

	params := newScanParams(stub.New(), nil, 0, 100)
	params.Events = events

	m := NewAirdrop(AirdropConfig{})
	require.NoError(t, m.Scan(context.Background(), params))

	assert.False(t, params.Context.Detected("airdrop"))
}

func TestAirdrop_VariedAmountsNotDetected(t *testing.T) {
	// One sender, many recipients, but every transfer a different amount.
	var events []domain.TxEvent
	for i := 0; i < 60; i++ {
		events = append(events, transfer(testDeployer, addrN(i), int64(1000+i)))
	}

	params := newScanParams(stub.New(), nil, 0, 100)
	params.Events = events

	m := NewAirdrop(AirdropConfig{})
	require.NoError(t, m.Scan(context.Background(), params))

	assert.False(t, params.Context.Detected("airdrop"))
}

func TestAirdrop_BelowRecipientThreshold(t *testing.T) {
	var events []domain.TxEvent
	for i := 0; i < 10; i++ {
		events = append(events, transfer(testDeployer, addrN(i), 1000))
	}

	params := newScanParams(stub.New(), nil, 0, 100)
	params.Events = events

	m := NewAirdrop(AirdropConfig{MinRecipients: 20})
	require.NoError(t, m.Scan(context.Background(), params))

	assert.False(t, params.Context.Detected("airdrop"))
}

func TestAirdrop_SimplifyMetadata(t *testing.T) {
	m := NewAirdrop(AirdropConfig{})
	simplified := m.SimplifyMetadata(map[string]any{
		"sender":     testDeployer.Hex(),
		"recipients": 60,
		"transfers":  60,
	})
	assert.Equal(t, map[string]any{
		"sender":     testDeployer.Hex(),
		"recipients": 60,
	}, simplified)
}
