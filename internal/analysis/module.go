package analysis

import (
	"context"

	"token-spam-detector/internal/cache"
	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/provider"
	"token-spam-detector/internal/storage"
)

// ScanParams is the read-only view a module receives per invocation.
type ScanParams struct {
	// Token is the contract under evaluation.
	Token domain.TokenContract

	// BlockNumber and Timestamp are the tick's position on chain.
	BlockNumber uint64
	Timestamp   int64

	// Provider gives read-only chain access.
	Provider provider.DataProvider

	// Memo is the token's memoization scope. It is reused across ticks so
	// slow-changing facts (name, symbol) are not re-fetched every tick.
	Memo *cache.Scope

	// Verdicts gives access to durable auxiliary state.
	Verdicts storage.VerdictStore

	// Context is the shared per-tick analysis context. A module writes its
	// own entry and reads only entries of modules it depends on.
	Context *Context

	// Events is the accumulated event history for the token, in arrival order.
	Events []domain.TxEvent
}

// Module is the unit of detection logic. Implementations must be safe for
// concurrent scans of different tokens.
type Module interface {
	// Key uniquely identifies the module in contexts and verdicts.
	Key() string

	// DependsOn lists keys of modules whose results this module reads. The
	// registry orders execution so dependencies run first.
	DependsOn() []string

	// Scan evaluates one token for one tick, writing a ModuleResult under
	// Key into params.Context. A returned error is isolated by the caller
	// and recorded as an absence of detection.
	Scan(ctx context.Context, params *ScanParams) error

	// SimplifyMetadata reduces a result's metadata to the summary attached
	// to emitted findings.
	SimplifyMetadata(metadata map[string]any) map[string]any
}
