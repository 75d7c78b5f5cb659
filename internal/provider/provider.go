// Package provider defines the read-only chain access capability consumed by
// the analysis engine, a live go-ethereum implementation, and a rotating pool
// that spreads calls over several RPC endpoints.
package provider

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// Provider errors.
var (
	// ErrPoolExhausted is returned once every provider in a rotating pool has
	// been excluded after repeated failures.
	ErrPoolExhausted = errors.New("provider: pool exhausted")

	// ErrNotSupported is returned for capabilities an endpoint cannot serve.
	ErrNotSupported = errors.New("provider: not supported")
)

// executionErrorMarkers are EVM-level failure messages as reported by common
// node implementations. Any of them means the endpoint answered and the
// contract itself failed.
var executionErrorMarkers = []string{
	"execution reverted",
	"invalid opcode",
	"out of gas",
	"stack underflow",
	"stack limit reached",
}

// IsExecutionError reports whether err is a deterministic contract-execution
// failure rather than a transport or endpoint fault. Reverts are a property
// of the called contract, not of the provider that relayed the call: probing
// a pre-ERC165 token with supportsInterface reverts on every healthy node.
func IsExecutionError(err error) bool {
	if err == nil {
		return false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}

	msg := err.Error()
	for _, marker := range executionErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// DataProvider is read-only chain access. Implementations are expected to be
// safe for concurrent use; batching and retries live behind this boundary.
type DataProvider interface {
	// GetCode returns the deployed bytecode at address.
	GetCode(ctx context.Context, address common.Address) ([]byte, error)

	// Call executes a read-only contract call with raw calldata.
	Call(ctx context.Context, to common.Address, input []byte) ([]byte, error)

	// GetBalance returns the native balance of address.
	GetBalance(ctx context.Context, address common.Address) (*big.Int, error)

	// GetTransactionCount returns the nonce of address.
	GetTransactionCount(ctx context.Context, address common.Address) (uint64, error)

	// LookupName reverse-resolves a display name for address. Returns "" when
	// no record exists.
	LookupName(ctx context.Context, address common.Address) (string, error)
}
