package modules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"token-spam-detector/internal/analysis"
	"token-spam-detector/internal/cache"
	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/erc20"
	"token-spam-detector/internal/normalize"
	"token-spam-detector/internal/tokenlist"
)

// metadataTTL bounds how long memoized name/symbol reads are reused. Token
// metadata is immutable for almost all contracts, but proxies can change it.
const metadataTTL = 1 * time.Hour

// Impersonation flags tokens whose name or symbol mimics a well-known token
// from the reference list, either through confusable characters or by copying
// it outright at a non-official address.
type Impersonation struct {
	lists *tokenlist.Provider
}

// NewImpersonation creates the impersonation module.
func NewImpersonation(lists *tokenlist.Provider) *Impersonation {
	return &Impersonation{lists: lists}
}

var _ analysis.Module = (*Impersonation)(nil)

func (m *Impersonation) Key() string         { return "impersonation" }
func (m *Impersonation) DependsOn() []string { return nil }

func (m *Impersonation) Scan(ctx context.Context, params *analysis.ScanParams) error {
	name, err := cache.Query(params.Memo, "erc20:name", nil, metadataTTL, func() (string, error) {
		return erc20.Name(ctx, params.Provider, params.Token.Address)
	})
	if err != nil {
		return fmt.Errorf("resolve token name: %w", err)
	}
	symbol, err := cache.Query(params.Memo, "erc20:symbol", nil, metadataTTL, func() (string, error) {
		return erc20.Symbol(ctx, params.Provider, params.Token.Address)
	})
	if err != nil {
		return fmt.Errorf("resolve token symbol: %w", err)
	}

	refs, err := m.lists.Get(ctx)
	if err != nil {
		return fmt.Errorf("load reference list: %w", err)
	}

	for _, ref := range refs {
		if m.isOfficialDeployment(ref, params.Token) {
			continue
		}

		if normalize.Impersonates(name, symbol, ref.Name, ref.Symbol) {
			params.Context.Put(m.Key(), analysis.ModuleResult{
				Detected: true,
				Metadata: map[string]any{
					"reference_name":   ref.Name,
					"reference_symbol": ref.Symbol,
					"token_name":       name,
					"token_symbol":     symbol,
					"reason":           "confusable",
				},
			})
			return nil
		}

		// An exact copy of a listed token at a foreign address is spam even
		// without character tricks. Only judged when the list pins official
		// deployments to compare against.
		if name == ref.Name && symbol == ref.Symbol && len(ref.Deployments) > 0 {
			params.Context.Put(m.Key(), analysis.ModuleResult{
				Detected: true,
				Metadata: map[string]any{
					"reference_name":   ref.Name,
					"reference_symbol": ref.Symbol,
					"token_name":       name,
					"token_symbol":     symbol,
					"reason":           "duplicate",
				},
			})
			return nil
		}
	}

	params.Context.Put(m.Key(), analysis.ModuleResult{Detected: false})
	return nil
}

// isOfficialDeployment reports whether the token under scan is the reference
// token's registered deployment on its chain.
func (m *Impersonation) isOfficialDeployment(ref domain.ReferenceToken, token domain.TokenContract) bool {
	dep, ok := ref.Deployments[strconv.FormatUint(token.ChainID, 10)]
	if !ok {
		return false
	}
	return strings.EqualFold(dep, token.Address.Hex())
}

func (m *Impersonation) SimplifyMetadata(metadata map[string]any) map[string]any {
	return map[string]any{
		"reference_name":   metadata["reference_name"],
		"reference_symbol": metadata["reference_symbol"],
		"reason":           metadata["reason"],
	}
}
