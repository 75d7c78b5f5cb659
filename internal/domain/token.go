package domain

import "github.com/ethereum/go-ethereum/common"

// TokenStandard represents a recognized token interface standard.
type TokenStandard string

const (
	StandardERC20   TokenStandard = "ERC-20"
	StandardERC721  TokenStandard = "ERC-721"
	StandardERC1155 TokenStandard = "ERC-1155"
)

// String returns the string representation of TokenStandard.
func (s TokenStandard) String() string {
	return string(s)
}

// IsValid checks if the standard is a valid value.
func (s TokenStandard) IsValid() bool {
	return s == StandardERC20 || s == StandardERC721 || s == StandardERC1155
}

// TokenContract identifies a watched token contract.
// Immutable once created; created on watch-list admission.
type TokenContract struct {
	ChainID     uint64         // EVM chain identifier
	Address     common.Address // contract address
	Deployer    common.Address // contract creator
	Standard    TokenStandard
	BlockNumber uint64 // deployment block
	Timestamp   int64  // deployment block timestamp (unix seconds)
}
