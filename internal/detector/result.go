package detector

import (
	"time"

	"token-spam-detector/internal/analysis"
	"token-spam-detector/internal/domain"
)

// TokenAnalysis is one token's released tick outcome.
type TokenAnalysis struct {
	key         string
	token       domain.TokenContract
	context     *analysis.Context
	blockNumber uint64
	timestamp   int64
	finalized   bool
	spamKeys    map[string]struct{}
	modules     []analysis.Module
}

// Token returns the analyzed contract.
func (a *TokenAnalysis) Token() domain.TokenContract { return a.token }

// Context returns the tick's analysis context.
func (a *TokenAnalysis) Context() *analysis.Context { return a.context }

// BlockNumber returns the tick's block position.
func (a *TokenAnalysis) BlockNumber() uint64 { return a.blockNumber }

// Timestamp returns the tick's timestamp.
func (a *TokenAnalysis) Timestamp() int64 { return a.timestamp }

// Verdict is the interpreted outcome of one analysis.
type Verdict struct {
	// IsSpam is true when any spam-signal module fired this tick.
	IsSpam bool

	// IsFinalized is true once the token's evaluation window closed. No
	// further tick changes the verdict after this point.
	IsFinalized bool

	// DetectedBy lists the keys of modules that fired, in execution order.
	DetectedBy []string

	// Findings carries each firing module's simplified metadata.
	Findings map[string]map[string]any
}

// Interpret reduces the analysis context into the final verdict. Module
// composition is additive: modules represent different fraud kinds, and any
// firing spam-signal module makes the token spam.
func (a *TokenAnalysis) Interpret() Verdict {
	v := Verdict{
		IsFinalized: a.finalized,
		Findings:    make(map[string]map[string]any),
	}

	for _, m := range a.modules {
		res, ok := a.context.Get(m.Key())
		if !ok || !res.Detected {
			continue
		}
		v.DetectedBy = append(v.DetectedBy, m.Key())
		v.Findings[m.Key()] = m.SimplifyMetadata(res.Metadata)
		if a.countsAsSpam(m.Key()) {
			v.IsSpam = true
		}
	}
	return v
}

func (a *TokenAnalysis) countsAsSpam(key string) bool {
	if len(a.spamKeys) == 0 {
		return true
	}
	_, ok := a.spamKeys[key]
	return ok
}

// Record converts the analysis into a storable verdict record.
func (a *TokenAnalysis) Record() *domain.VerdictRecord {
	v := a.Interpret()
	return &domain.VerdictRecord{
		ChainID:     a.token.ChainID,
		Address:     a.token.Address,
		Standard:    a.token.Standard,
		IsSpam:      v.IsSpam,
		IsFinalized: v.IsFinalized,
		DetectedBy:  v.DetectedBy,
		BlockNumber: a.blockNumber,
		Timestamp:   a.timestamp,
		CreatedAt:   time.Now().Unix(),
	}
}
