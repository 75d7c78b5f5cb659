// Package erc20 issues read-only metadata and balance calls against token
// contracts, tolerating the pre-standard bytes32 name/symbol variants still
// deployed on mainnet.
package erc20

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/identify"
	"token-spam-detector/internal/provider"
)

// ErrMalformedReturn is returned when call output decodes as neither the
// standard nor the legacy encoding.
var ErrMalformedReturn = errors.New("erc20: malformed return data")

var (
	stringArgs  = abi.Arguments{{Type: mustType("string")}}
	uint256Args = abi.Arguments{{Type: mustType("uint256")}}
)

func mustType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(fmt.Sprintf("erc20: bad abi type %q: %v", t, err))
	}
	return ty
}

// Name returns the token's name.
func Name(ctx context.Context, dp provider.DataProvider, token common.Address) (string, error) {
	out, err := dp.Call(ctx, token, identify.SelName)
	if err != nil {
		return "", fmt.Errorf("call name: %w", err)
	}
	return decodeString(out)
}

// Symbol returns the token's symbol.
func Symbol(ctx context.Context, dp provider.DataProvider, token common.Address) (string, error) {
	out, err := dp.Call(ctx, token, identify.SelSymbol)
	if err != nil {
		return "", fmt.Errorf("call symbol: %w", err)
	}
	return decodeString(out)
}

// TotalSupply returns the token's total supply.
func TotalSupply(ctx context.Context, dp provider.DataProvider, token common.Address) (*big.Int, error) {
	out, err := dp.Call(ctx, token, identify.SelTotalSupply)
	if err != nil {
		return nil, fmt.Errorf("call totalSupply: %w", err)
	}
	return decodeUint256(out)
}

// BalanceOf returns holder's token balance.
func BalanceOf(ctx context.Context, dp provider.DataProvider, token, holder common.Address) (*big.Int, error) {
	input := append(append([]byte{}, identify.SelBalanceOf...), common.LeftPadBytes(holder.Bytes(), 32)...)
	out, err := dp.Call(ctx, token, input)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	return decodeUint256(out)
}

func decodeString(out []byte) (string, error) {
	if len(out) == 0 {
		return "", ErrMalformedReturn
	}

	if vals, err := stringArgs.Unpack(out); err == nil && len(vals) == 1 {
		if s, ok := vals[0].(string); ok {
			return s, nil
		}
	}

	// Legacy tokens return a fixed bytes32
	if len(out) == 32 {
		return string(bytes.TrimRight(out, "\x00")), nil
	}

	return "", ErrMalformedReturn
}

func decodeUint256(out []byte) (*big.Int, error) {
	vals, err := uint256Args.Unpack(out)
	if err != nil || len(vals) != 1 {
		return nil, ErrMalformedReturn
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, ErrMalformedReturn
	}
	return v, nil
}
