// Package identify determines the token standard of a contract via ERC-165
// probing, bytecode signature scanning, and an ERC-20 duck-typing fallback.
package identify

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/provider"
)

// ErrUnknownStandard is returned when a contract matches no supported token
// standard. Admission boundaries treat this as "do not watch".
var ErrUnknownStandard = errors.New("identify: unknown token standard")

// ERC-165 interface IDs, probed in priority order: 165 support is decisive
// when present.
var (
	interfaceIDERC1155 = [4]byte{0xd9, 0xb6, 0x7a, 0x26}
	interfaceIDERC721  = [4]byte{0x80, 0xac, 0x58, 0xcd}
	interfaceIDERC20   = [4]byte{0x36, 0x37, 0x2b, 0x07}
)

var selSupportsInterface = selector("supportsInterface(bytes4)")

// selector returns the 4-byte function selector for a signature.
func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

// selectorHex returns the selector as lower-case hex, for bytecode scanning.
func selectorHex(sig string) string {
	return hex.EncodeToString(selector(sig))
}

// topicHex returns the 32-byte event topic as lower-case hex.
func topicHex(sig string) string {
	return hex.EncodeToString(crypto.Keccak256([]byte(sig)))
}

// Selectors needed by the duck-typing fallback and by modules issuing direct
// token calls.
var (
	SelName        = selector("name()")
	SelSymbol      = selector("symbol()")
	SelTotalSupply = selector("totalSupply()")
	SelBalanceOf   = selector("balanceOf(address)")
	SelAllowance   = selector("allowance(address,address)")
	SelTransfer    = selector("transfer(address,uint256)")
)

// standardSignature describes the hex fragments a standard's minimal
// interface leaves in deployed bytecode, checked by pure substring matching.
type standardSignature struct {
	standard     domain.TokenStandard
	selectors    []string
	topics       []string
	nameOrSymbol bool // require symbol() OR name() to be present
}

var bytecodeSignatures = []standardSignature{
	{
		standard: domain.StandardERC20,
		selectors: []string{
			selectorHex("totalSupply()"),
			selectorHex("balanceOf(address)"),
			selectorHex("transfer(address,uint256)"),
			selectorHex("transferFrom(address,address,uint256)"),
			selectorHex("approve(address,uint256)"),
			selectorHex("allowance(address,address)"),
		},
		topics: []string{
			topicHex("Transfer(address,address,uint256)"),
			topicHex("Approval(address,address,uint256)"),
		},
		nameOrSymbol: true,
	},
	{
		standard: domain.StandardERC721,
		// safeTransferFrom is overloaded and excluded from the substring probe.
		selectors: []string{
			selectorHex("balanceOf(address)"),
			selectorHex("ownerOf(uint256)"),
			selectorHex("transferFrom(address,address,uint256)"),
			selectorHex("approve(address,uint256)"),
			selectorHex("setApprovalForAll(address,bool)"),
			selectorHex("getApproved(uint256)"),
			selectorHex("isApprovedForAll(address,address)"),
		},
		topics: []string{
			topicHex("Transfer(address,address,uint256)"),
			topicHex("Approval(address,address,uint256)"),
			topicHex("ApprovalForAll(address,address,bool)"),
		},
		nameOrSymbol: true,
	},
	{
		standard: domain.StandardERC1155,
		// balanceOf(address,uint256) is unreliably present in 1155 bytecode
		// and deliberately excluded.
		selectors: []string{
			selectorHex("safeTransferFrom(address,address,uint256,uint256,bytes)"),
			selectorHex("safeBatchTransferFrom(address,address,uint256[],uint256[],bytes)"),
			selectorHex("balanceOfBatch(address[],uint256[])"),
			selectorHex("setApprovalForAll(address,bool)"),
			selectorHex("isApprovedForAll(address,address)"),
		},
		topics: []string{
			topicHex("TransferSingle(address,address,address,uint256,uint256)"),
			topicHex("TransferBatch(address,address,address,uint256[],uint256[])"),
			topicHex("ApprovalForAll(address,address,bool)"),
		},
	},
}

var nameSymbolSelectors = []string{
	selectorHex("symbol()"),
	selectorHex("name()"),
}

// Identify determines the token standard of the contract at address. Steps
// short-circuit in order: ERC-165 probe, bytecode signature scan, ERC-20
// duck typing. Returns ErrUnknownStandard for contracts that are not a
// recognized token.
func Identify(ctx context.Context, address common.Address, dp provider.DataProvider) (domain.TokenStandard, error) {
	if std, ok := probeERC165(ctx, address, dp); ok {
		return std, nil
	}

	code, err := dp.GetCode(ctx, address)
	if err == nil && len(code) > 0 {
		if std, ok := scanBytecode(code); ok {
			return std, nil
		}
		if incompatible(code) {
			// Required selectors present but no symbol()/name(): not a token.
			return "", fmt.Errorf("%w: %s has no name or symbol", ErrUnknownStandard, address.Hex())
		}
	}

	if duckTypeERC20(ctx, address, dp) {
		return domain.StandardERC20, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownStandard, address.Hex())
}

// probeERC165 asks the contract itself, trying 1155, 721 then 20. Any
// provider error falls through to the bytecode scan.
func probeERC165(ctx context.Context, address common.Address, dp provider.DataProvider) (domain.TokenStandard, bool) {
	probes := []struct {
		id  [4]byte
		std domain.TokenStandard
	}{
		{interfaceIDERC1155, domain.StandardERC1155},
		{interfaceIDERC721, domain.StandardERC721},
		{interfaceIDERC20, domain.StandardERC20},
	}

	for _, probe := range probes {
		input := make([]byte, 0, 36)
		input = append(input, selSupportsInterface...)
		input = append(input, common.RightPadBytes(probe.id[:], 32)...)

		out, err := dp.Call(ctx, address, input)
		if err != nil {
			return "", false
		}
		if decodeBool(out) {
			return probe.std, true
		}
	}
	return "", false
}

// scanBytecode checks for all required selector and topic fragments of each
// standard, most specific first.
func scanBytecode(code []byte) (domain.TokenStandard, bool) {
	hexCode := hex.EncodeToString(code)

	// 1155 and 721 are checked before 20 since a 721 contract also carries
	// several 20-looking selectors.
	order := []domain.TokenStandard{domain.StandardERC1155, domain.StandardERC721, domain.StandardERC20}
	for _, std := range order {
		sig := signatureFor(std)
		if !containsAll(hexCode, sig.selectors) || !containsAll(hexCode, sig.topics) {
			continue
		}
		if sig.nameOrSymbol && !containsAny(hexCode, nameSymbolSelectors) {
			continue
		}
		return std, true
	}
	return "", false
}

// incompatible reports whether the bytecode carries a full required selector
// set but fails the symbol/name gate, meaning "not a token" rather than
// "unknown".
func incompatible(code []byte) bool {
	hexCode := hex.EncodeToString(code)
	for _, sig := range bytecodeSignatures {
		if !sig.nameOrSymbol {
			continue
		}
		if containsAll(hexCode, sig.selectors) && containsAll(hexCode, sig.topics) &&
			!containsAny(hexCode, nameSymbolSelectors) {
			return true
		}
	}
	return false
}

// duckTypeERC20 attempts live ERC-20 calls with synthetic non-zero addresses.
// All of balanceOf, totalSupply and allowance must answer, plus at least one
// of symbol/name. Any failure means not identified.
func duckTypeERC20(ctx context.Context, address common.Address, dp provider.DataProvider) bool {
	synthetic := common.HexToAddress("0x0000000000000000000000000000000000000001")
	synthetic2 := common.HexToAddress("0x0000000000000000000000000000000000000002")

	balanceInput := append(append([]byte{}, SelBalanceOf...), common.LeftPadBytes(synthetic.Bytes(), 32)...)
	allowanceInput := append(append([]byte{}, SelAllowance...),
		append(common.LeftPadBytes(synthetic.Bytes(), 32), common.LeftPadBytes(synthetic2.Bytes(), 32)...)...)

	for _, input := range [][]byte{balanceInput, SelTotalSupply, allowanceInput} {
		if _, err := dp.Call(ctx, address, input); err != nil {
			return false
		}
	}

	for _, sel := range [][]byte{SelSymbol, SelName} {
		if out, err := dp.Call(ctx, address, sel); err == nil && len(out) > 0 {
			return true
		}
	}
	return false
}

func signatureFor(std domain.TokenStandard) standardSignature {
	for _, sig := range bytecodeSignatures {
		if sig.standard == std {
			return sig
		}
	}
	return standardSignature{}
}

func containsAll(haystack string, fragments []string) bool {
	for _, f := range fragments {
		if !strings.Contains(haystack, f) {
			return false
		}
	}
	return true
}

func containsAny(haystack string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(haystack, f) {
			return true
		}
	}
	return false
}

// decodeBool reads a 32-byte ABI-encoded bool return value.
func decodeBool(out []byte) bool {
	if len(out) < 32 {
		return false
	}
	for _, b := range out[:31] {
		if b != 0 {
			return false
		}
	}
	return out[31] == 1
}
