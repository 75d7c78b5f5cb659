package modules

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/analysis"
	"token-spam-detector/internal/domain"
)

// Default low-activity thresholds.
const (
	DefaultMinTokenAge         = 3600 // seconds
	DefaultMinOrganicTransfers = 5
)

// LowActivityConfig tunes the low-activity module.
type LowActivityConfig struct {
	// MinTokenAge is the minimum age in seconds before the module judges a
	// token. Younger tokens have not had time to develop organic activity.
	MinTokenAge int64

	// MinOrganicTransfers is the number of transfers not attributable to the
	// airdrop sender below which the token counts as dormant.
	MinOrganicTransfers int
}

// LowActivity flags airdropped tokens that show no organic transfer activity
// afterwards. It reads the airdrop module's result and only fires when that
// module fired first.
type LowActivity struct {
	cfg LowActivityConfig
}

// NewLowActivity creates the low-activity module. Zero config fields fall
// back to defaults.
func NewLowActivity(cfg LowActivityConfig) *LowActivity {
	if cfg.MinTokenAge <= 0 {
		cfg.MinTokenAge = DefaultMinTokenAge
	}
	if cfg.MinOrganicTransfers <= 0 {
		cfg.MinOrganicTransfers = DefaultMinOrganicTransfers
	}
	return &LowActivity{cfg: cfg}
}

var _ analysis.Module = (*LowActivity)(nil)

func (m *LowActivity) Key() string         { return "low-activity" }
func (m *LowActivity) DependsOn() []string { return []string{"airdrop"} }

func (m *LowActivity) Scan(_ context.Context, params *analysis.ScanParams) error {
	airdrop, ok := params.Context.Get("airdrop")
	if !ok || !airdrop.Detected {
		params.Context.Put(m.Key(), analysis.ModuleResult{Detected: false})
		return nil
	}

	age := params.Timestamp - params.Token.Timestamp
	if age < m.cfg.MinTokenAge {
		params.Context.Put(m.Key(), analysis.ModuleResult{Detected: false})
		return nil
	}

	var airdropSender common.Address
	if hex, ok := airdrop.Metadata["sender"].(string); ok {
		airdropSender = common.HexToAddress(hex)
	}

	organic := 0
	for _, ev := range params.Events {
		if ev.Type != domain.EventTransfer {
			continue
		}
		if ev.From == airdropSender || ev.From == (common.Address{}) {
			continue
		}
		organic++
	}

	if organic < m.cfg.MinOrganicTransfers {
		params.Context.Put(m.Key(), analysis.ModuleResult{
			Detected: true,
			Metadata: map[string]any{
				"organic_transfers": organic,
				"token_age":         age,
			},
		})
		return nil
	}

	params.Context.Put(m.Key(), analysis.ModuleResult{Detected: false})
	return nil
}

func (m *LowActivity) SimplifyMetadata(metadata map[string]any) map[string]any {
	return map[string]any{
		"organic_transfers": metadata["organic_transfers"],
	}
}
