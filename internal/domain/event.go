package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventType represents the kind of a decoded transaction event.
type EventType string

const (
	EventTransfer EventType = "TRANSFER"
	EventApproval EventType = "APPROVAL"
)

// TxEvent is an already-decoded transaction event concerning a token contract.
// Decoding from raw chain data happens upstream; the engine only accumulates
// these per watched token.
type TxEvent struct {
	Type        EventType
	Contract    common.Address // emitting token contract
	From        common.Address
	To          common.Address
	Value       *big.Int // amount for ERC-20, quantity for ERC-1155, nil for approvals without value
	TokenID     *big.Int // non-nil for ERC-721/ERC-1155
	TxHash      common.Hash
	BlockNumber uint64
	Timestamp   int64 // block timestamp (unix seconds)
}
