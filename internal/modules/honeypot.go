package modules

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"token-spam-detector/internal/analysis"
	"token-spam-detector/internal/cache"
	"token-spam-detector/internal/erc20"
)

// Default honeypot thresholds.
const (
	DefaultConcentrationPct = 95
	DefaultHoneypotMinAge   = 3600 // seconds
)

// supplyTTL bounds how long memoized supply and balance reads are reused.
// Balances move faster than metadata, so the window is shorter.
const supplyTTL = 5 * time.Minute

// HoneypotConfig tunes the honeypot module.
type HoneypotConfig struct {
	// ConcentrationPct is the deployer's share of total supply, in percent,
	// at or above which the token counts as a honeypot.
	ConcentrationPct int64

	// MinTokenAge is the minimum age in seconds before the module judges a
	// token. Right after deployment the deployer legitimately holds all
	// supply.
	MinTokenAge int64
}

// Honeypot flags tokens whose supply stays concentrated in the deployer's
// hands long after deployment, the standard setup for pump-and-dump and
// unsellable tokens.
type Honeypot struct {
	cfg HoneypotConfig
}

// NewHoneypot creates the honeypot module. Zero config fields fall back to
// defaults.
func NewHoneypot(cfg HoneypotConfig) *Honeypot {
	if cfg.ConcentrationPct <= 0 {
		cfg.ConcentrationPct = DefaultConcentrationPct
	}
	if cfg.MinTokenAge <= 0 {
		cfg.MinTokenAge = DefaultHoneypotMinAge
	}
	return &Honeypot{cfg: cfg}
}

var _ analysis.Module = (*Honeypot)(nil)

func (m *Honeypot) Key() string         { return "honeypot" }
func (m *Honeypot) DependsOn() []string { return nil }

func (m *Honeypot) Scan(ctx context.Context, params *analysis.ScanParams) error {
	age := params.Timestamp - params.Token.Timestamp
	if age < m.cfg.MinTokenAge {
		params.Context.Put(m.Key(), analysis.ModuleResult{Detected: false})
		return nil
	}

	supply, err := cache.Query(params.Memo, "erc20:totalSupply", nil, supplyTTL, func() (*big.Int, error) {
		return erc20.TotalSupply(ctx, params.Provider, params.Token.Address)
	})
	if err != nil {
		return fmt.Errorf("resolve total supply: %w", err)
	}
	if supply == nil || supply.Sign() <= 0 {
		params.Context.Put(m.Key(), analysis.ModuleResult{Detected: false})
		return nil
	}

	deployer := params.Token.Deployer
	balance, err := cache.Query(params.Memo, "erc20:balanceOf", []any{deployer.Hex()}, supplyTTL, func() (*big.Int, error) {
		return erc20.BalanceOf(ctx, params.Provider, params.Token.Address, deployer)
	})
	if err != nil {
		return fmt.Errorf("resolve deployer balance: %w", err)
	}

	// balance * 100 >= supply * pct
	lhs := new(big.Int).Mul(balance, big.NewInt(100))
	rhs := new(big.Int).Mul(supply, big.NewInt(m.cfg.ConcentrationPct))
	if lhs.Cmp(rhs) >= 0 {
		sharePct := new(big.Int).Div(lhs, supply)
		params.Context.Put(m.Key(), analysis.ModuleResult{
			Detected: true,
			Metadata: map[string]any{
				"deployer":  deployer.Hex(),
				"share_pct": sharePct.Int64(),
				"token_age": age,
			},
		})
		return nil
	}

	params.Context.Put(m.Key(), analysis.ModuleResult{Detected: false})
	return nil
}

func (m *Honeypot) SimplifyMetadata(metadata map[string]any) map[string]any {
	return map[string]any{
		"deployer":  metadata["deployer"],
		"share_pct": metadata["share_pct"],
	}
}
