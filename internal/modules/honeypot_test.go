package modules

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-spam-detector/internal/identify"
	"token-spam-detector/internal/provider/stub"
)

func encodeUintRet(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

// setSupply stubs totalSupply() and the deployer's balanceOf().
func setSupply(p *stub.Provider, total, deployerBalance int64) {
	p.SetCall(testTokenAddr, identify.SelTotalSupply, encodeUintRet(total))
	balanceInput := append(append([]byte{}, identify.SelBalanceOf...), common.LeftPadBytes(testDeployer.Bytes(), 32)...)
	p.SetCallExact(testTokenAddr, balanceInput, encodeUintRet(deployerBalance))
}

func TestHoneypot_ConcentratedSupplyDetected(t *testing.T) {
	p := stub.New()
	setSupply(p, 1_000_000, 960_000)

	params := newScanParams(p, nil, 0, DefaultHoneypotMinAge+1)
	m := NewHoneypot(HoneypotConfig{})
	require.NoError(t, m.Scan(context.Background(), params))

	res, ok := params.Context.Get("honeypot")
	require.True(t, ok)
	assert.True(t, res.Detected)
	assert.Equal(t, testDeployer.Hex(), res.Metadata["deployer"])
	assert.Equal(t, int64(96), res.Metadata["share_pct"])
}

func TestHoneypot_DistributedSupplyNotDetected(t *testing.T) {
	p := stub.New()
	setSupply(p, 1_000_000, 500_000)

	params := newScanParams(p, nil, 0, DefaultHoneypotMinAge+1)
	m := NewHoneypot(HoneypotConfig{})
	require.NoError(t, m.Scan(context.Background(), params))

	assert.False(t, params.Context.Detected("honeypot"))
}

func TestHoneypot_YoungTokenNotJudged(t *testing.T) {
	p := stub.New()
	setSupply(p, 1_000_000, 1_000_000)

	params := newScanParams(p, nil, 0, 60)
	m := NewHoneypot(HoneypotConfig{})
	require.NoError(t, m.Scan(context.Background(), params))

	assert.False(t, params.Context.Detected("honeypot"))

	// The provider must not even be consulted for a token below age.
	assert.Zero(t, p.CallCount)
}

func TestHoneypot_ZeroSupplyNotDetected(t *testing.T) {
	p := stub.New()
	setSupply(p, 0, 0)

	params := newScanParams(p, nil, 0, DefaultHoneypotMinAge+1)
	m := NewHoneypot(HoneypotConfig{})
	require.NoError(t, m.Scan(context.Background(), params))

	assert.False(t, params.Context.Detected("honeypot"))
}

func TestHoneypot_CustomThreshold(t *testing.T) {
	p := stub.New()
	setSupply(p, 1_000_000, 800_000)

	params := newScanParams(p, nil, 0, DefaultHoneypotMinAge+1)
	m := NewHoneypot(HoneypotConfig{ConcentrationPct: 75})
	require.NoError(t, m.Scan(context.Background(), params))

	assert.True(t, params.Context.Detected("honeypot"))
}
