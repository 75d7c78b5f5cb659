package domain

import "github.com/ethereum/go-ethereum/common"

// VerdictRecord is the interpreted per-token analysis outcome released by the
// detector. Corresponds to token_verdicts storage.
type VerdictRecord struct {
	ChainID     uint64
	Address     common.Address
	Standard    TokenStandard
	IsSpam      bool
	IsFinalized bool
	DetectedBy  []string // keys of modules that fired
	BlockNumber uint64   // tick block
	Timestamp   int64    // tick timestamp (unix seconds)
	CreatedAt   int64    // record creation timestamp (unix seconds)
}
