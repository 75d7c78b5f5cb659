// Package stub provides a DataProvider for testing.
package stub

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/provider"
)

// ErrNoContract is returned for calls against addresses without stub state.
var ErrNoContract = errors.New("stub: no contract at address")

// Provider implements provider.DataProvider from in-memory fixtures. Call
// results are keyed by target address and the hex of the 4-byte selector.
type Provider struct {
	mu sync.Mutex

	Code      map[common.Address][]byte
	Calls     map[common.Address]map[string][]byte // selector hex -> return data
	Balances  map[common.Address]*big.Int
	Nonces    map[common.Address]uint64
	Names     map[common.Address]string
	Err       error // when set, every operation fails with this error
	CallCount int
}

// New creates an empty stub provider.
func New() *Provider {
	return &Provider{
		Code:     make(map[common.Address][]byte),
		Calls:    make(map[common.Address]map[string][]byte),
		Balances: make(map[common.Address]*big.Int),
		Nonces:   make(map[common.Address]uint64),
		Names:    make(map[common.Address]string),
	}
}

// SetCall registers return data for a selector on a contract.
func (p *Provider) SetCall(addr common.Address, selector []byte, ret []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Calls[addr] == nil {
		p.Calls[addr] = make(map[string][]byte)
	}
	p.Calls[addr][hex.EncodeToString(selector[:4])] = ret
}

// SetCallExact registers return data for full calldata, taking precedence
// over the selector-level fixture. Used for argument-sensitive probes like
// supportsInterface.
func (p *Provider) SetCallExact(addr common.Address, input []byte, ret []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Calls[addr] == nil {
		p.Calls[addr] = make(map[string][]byte)
	}
	p.Calls[addr][hex.EncodeToString(input)] = ret
}

// GetCode returns the registered bytecode.
func (p *Provider) GetCode(_ context.Context, address common.Address) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Code[address], nil
}

// Call dispatches on the 4-byte selector of input.
func (p *Provider) Call(_ context.Context, to common.Address, input []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCount++
	if p.Err != nil {
		return nil, p.Err
	}
	if len(input) < 4 {
		return nil, errors.New("stub: short calldata")
	}
	rets, ok := p.Calls[to]
	if !ok {
		return nil, ErrNoContract
	}
	if ret, ok := rets[hex.EncodeToString(input)]; ok {
		return ret, nil
	}
	ret, ok := rets[hex.EncodeToString(input[:4])]
	if !ok {
		return nil, errors.New("stub: execution reverted")
	}
	return ret, nil
}

// GetBalance returns the registered balance or zero.
func (p *Provider) GetBalance(_ context.Context, address common.Address) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	if b, ok := p.Balances[address]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// GetTransactionCount returns the registered nonce or zero.
func (p *Provider) GetTransactionCount(_ context.Context, address common.Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return 0, p.Err
	}
	return p.Nonces[address], nil
}

// LookupName returns the registered name or "".
func (p *Provider) LookupName(_ context.Context, address common.Address) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	return p.Names[address], nil
}

// Compile-time interface check.
var _ provider.DataProvider = (*Provider)(nil)
