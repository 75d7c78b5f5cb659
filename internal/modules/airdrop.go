// Package modules holds the detection modules the tick pipeline runs against
// each watched token.
package modules

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/analysis"
	"token-spam-detector/internal/domain"
)

// Default airdrop thresholds.
const (
	DefaultMinRecipients = 50
	DefaultMaxValueKinds = 3
)

// AirdropConfig tunes the airdrop module.
type AirdropConfig struct {
	// MinRecipients is the number of distinct receivers a single sender must
	// reach before the distribution counts as an airdrop.
	MinRecipients int

	// MaxValueKinds bounds how many distinct transfer amounts the
	// distribution may use. Genuine airdrops send identical or near-identical
	// amounts; organic trading does not.
	MaxValueKinds int
}

// Airdrop flags tokens whose transfer history shows one sender mass
// distributing to many recipients in uniform amounts.
type Airdrop struct {
	cfg AirdropConfig
}

// NewAirdrop creates the airdrop module. Zero config fields fall back to
// defaults.
func NewAirdrop(cfg AirdropConfig) *Airdrop {
	if cfg.MinRecipients <= 0 {
		cfg.MinRecipients = DefaultMinRecipients
	}
	if cfg.MaxValueKinds <= 0 {
		cfg.MaxValueKinds = DefaultMaxValueKinds
	}
	return &Airdrop{cfg: cfg}
}

var _ analysis.Module = (*Airdrop)(nil)

func (m *Airdrop) Key() string         { return "airdrop" }
func (m *Airdrop) DependsOn() []string { return nil }

func (m *Airdrop) Scan(_ context.Context, params *analysis.ScanParams) error {
	type senderStats struct {
		recipients map[common.Address]struct{}
		values     map[string]struct{}
		transfers  int
	}
	bySender := make(map[common.Address]*senderStats)

	for _, ev := range params.Events {
		if ev.Type != domain.EventTransfer || ev.Value == nil {
			continue
		}
		st := bySender[ev.From]
		if st == nil {
			st = &senderStats{
				recipients: make(map[common.Address]struct{}),
				values:     make(map[string]struct{}),
			}
			bySender[ev.From] = st
		}
		st.recipients[ev.To] = struct{}{}
		st.values[ev.Value.String()] = struct{}{}
		st.transfers++
	}

	for sender, st := range bySender {
		if len(st.recipients) >= m.cfg.MinRecipients && len(st.values) <= m.cfg.MaxValueKinds {
			params.Context.Put(m.Key(), analysis.ModuleResult{
				Detected: true,
				Metadata: map[string]any{
					"sender":     sender.Hex(),
					"recipients": len(st.recipients),
					"transfers":  st.transfers,
				},
			})
			return nil
		}
	}

	params.Context.Put(m.Key(), analysis.ModuleResult{Detected: false})
	return nil
}

func (m *Airdrop) SimplifyMetadata(metadata map[string]any) map[string]any {
	return map[string]any{
		"sender":     metadata["sender"],
		"recipients": metadata["recipients"],
	}
}
