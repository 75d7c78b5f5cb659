package provider

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthProvider implements DataProvider over a go-ethereum RPC client.
type EthProvider struct {
	client *ethclient.Client
}

// Dial connects to an Ethereum RPC endpoint and verifies the connection.
func Dial(ctx context.Context, endpoint string) (*EthProvider, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if _, err := client.ChainID(dialCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("verify %s: %w", endpoint, err)
	}

	return &EthProvider{client: client}, nil
}

// NewEthProvider wraps an existing client.
func NewEthProvider(client *ethclient.Client) *EthProvider {
	return &EthProvider{client: client}
}

// Close closes the underlying client.
func (p *EthProvider) Close() {
	p.client.Close()
}

// GetCode returns the deployed bytecode at address at the latest block.
func (p *EthProvider) GetCode(ctx context.Context, address common.Address) ([]byte, error) {
	code, err := p.client.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("get code %s: %w", address.Hex(), err)
	}
	return code, nil
}

// Call executes a read-only contract call with raw calldata.
func (p *EthProvider) Call(ctx context.Context, to common.Address, input []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: input}
	out, err := p.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// GetBalance returns the native balance of address at the latest block.
func (p *EthProvider) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	balance, err := p.client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("get balance %s: %w", address.Hex(), err)
	}
	return balance, nil
}

// GetTransactionCount returns the nonce of address at the latest block.
func (p *EthProvider) GetTransactionCount(ctx context.Context, address common.Address) (uint64, error) {
	nonce, err := p.client.NonceAt(ctx, address, nil)
	if err != nil {
		return 0, fmt.Errorf("get nonce %s: %w", address.Hex(), err)
	}
	return nonce, nil
}

// LookupName reverse-resolves a display name. Plain RPC endpoints have no
// reverse registrar access here, so no record is reported.
func (p *EthProvider) LookupName(_ context.Context, _ common.Address) (string, error) {
	return "", nil
}

// Compile-time interface check.
var _ DataProvider = (*EthProvider)(nil)
