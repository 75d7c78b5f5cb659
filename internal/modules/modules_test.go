package modules

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/analysis"
	"token-spam-detector/internal/cache"
	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/provider"
	"token-spam-detector/internal/storage/memory"
)

var (
	testTokenAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testDeployer  = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

// newScanParams assembles ScanParams for a token deployed at deployedAt,
// evaluated at tick time now.
func newScanParams(dp provider.DataProvider, events []domain.TxEvent, deployedAt, now int64) *analysis.ScanParams {
	return &analysis.ScanParams{
		Token: domain.TokenContract{
			ChainID:     1,
			Address:     testTokenAddr,
			Deployer:    testDeployer,
			Standard:    domain.StandardERC20,
			BlockNumber: 100,
			Timestamp:   deployedAt,
		},
		BlockNumber: 200,
		Timestamp:   now,
		Provider:    dp,
		Memo:        cache.NewMemoizer().Scope(testTokenAddr.Hex()),
		Verdicts:    memory.NewVerdictStore(),
		Context:     analysis.NewContext(),
	}
}

// transfer builds a transfer event for the test token.
func transfer(from, to common.Address, value int64) domain.TxEvent {
	return domain.TxEvent{
		Type:     domain.EventTransfer,
		Contract: testTokenAddr,
		From:     from,
		To:       to,
		Value:    big.NewInt(value),
	}
}

// addrN derives a distinct address from n.
func addrN(n int) common.Address {
	return common.BigToAddress(big.NewInt(int64(n + 0x5000)))
}

func zeroAddr() common.Address {
	return common.Address{}
}

func commonHexAddr(hex string) common.Address {
	return common.HexToAddress(hex)
}

func newMemoScope(name string) *cache.Scope {
	return cache.NewMemoizer().Scope(name)
}

// encodeStringRet builds standard ABI return data for a single string value.
func encodeStringRet(t *testing.T, s string) []byte {
	t.Helper()
	out := make([]byte, 64+((len(s)+31)/32)*32)
	out[31] = 0x20
	big.NewInt(int64(len(s))).FillBytes(out[32:64])
	copy(out[64:], s)
	return out
}
