// Package detector owns the watch list and drives the tick-driven analysis
// pipeline over it. A tick dispatches one concurrent scan per watched token;
// within a scan the token's modules run sequentially in dependency order.
package detector

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"token-spam-detector/internal/analysis"
	"token-spam-detector/internal/cache"
	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/identify"
	"token-spam-detector/internal/observability"
	"token-spam-detector/internal/provider"
	"token-spam-detector/internal/storage"
)

// Default finalization policy values.
const (
	DefaultQuietTicks  = 3
	DefaultMaxTokenAge = 7 * 24 * 3600 // seconds
)

// Config tunes the detector's finalization policy and verdict aggregation.
type Config struct {
	// QuietTicks finalizes a token after this many consecutive ticks whose
	// module results did not change.
	QuietTicks int

	// MaxTokenAge finalizes a token once its age in seconds reaches this
	// bound, regardless of result churn.
	MaxTokenAge int64

	// SpamKeys names the modules whose detections count toward the spam
	// verdict. Empty means every module counts.
	SpamKeys []string
}

// watchedToken is the per-token mutable state. Owned by the Detector and
// guarded by its mutex.
type watchedToken struct {
	contract   domain.TokenContract
	events     []domain.TxEvent
	prev       *analysis.Context
	quietTicks int
	finalized  bool
}

// Detector tracks tokens under observation and evaluates them each tick.
type Detector struct {
	cfg      Config
	registry *analysis.Registry
	provider provider.DataProvider
	verdicts storage.VerdictStore
	memo     *cache.Memoizer
	spamKeys map[string]struct{}
	logger   *logrus.Entry

	mu     sync.Mutex
	tokens map[string]*watchedToken
	ready  []*TokenAnalysis
	wg     sync.WaitGroup
}

// New creates a Detector. The registry is resolved here; an unresolvable
// module graph is a configuration error.
func New(registry *analysis.Registry, dp provider.DataProvider, verdicts storage.VerdictStore, cfg Config) (*Detector, error) {
	if !registry.Resolved() {
		if err := registry.Resolve(); err != nil {
			return nil, fmt.Errorf("resolve module registry: %w", err)
		}
	}
	if cfg.QuietTicks <= 0 {
		cfg.QuietTicks = DefaultQuietTicks
	}
	if cfg.MaxTokenAge <= 0 {
		cfg.MaxTokenAge = DefaultMaxTokenAge
	}

	spamKeys := make(map[string]struct{}, len(cfg.SpamKeys))
	for _, k := range cfg.SpamKeys {
		spamKeys[k] = struct{}{}
	}

	return &Detector{
		cfg:      cfg,
		registry: registry,
		provider: dp,
		verdicts: verdicts,
		memo:     cache.NewMemoizer(),
		spamKeys: spamKeys,
		logger:   logrus.WithField("component", "detector"),
		tokens:   make(map[string]*watchedToken),
	}, nil
}

func tokenKey(chainID uint64, address common.Address) string {
	return fmt.Sprintf("%d:%s", chainID, address.Hex())
}

// AddToken admits a token for the given standard. Admission is idempotent:
// a token already watched at the same (chain, address) is left untouched.
func (d *Detector) AddToken(std domain.TokenStandard, token domain.TokenContract) {
	token.Standard = std

	d.mu.Lock()
	defer d.mu.Unlock()

	key := tokenKey(token.ChainID, token.Address)
	if _, exists := d.tokens[key]; exists {
		return
	}
	d.tokens[key] = &watchedToken{contract: token}
}

// Admit identifies the contract's token standard and adds it to the watch
// list, returning the identified standard. A contract whose standard cannot
// be identified never enters the watch list; identify.ErrUnknownStandard is
// surfaced to the caller.
func (d *Detector) Admit(ctx context.Context, token domain.TokenContract) (domain.TokenStandard, error) {
	std, err := identify.Identify(ctx, token.Address, d.provider)
	if err != nil {
		return "", fmt.Errorf("admit %s: %w", token.Address.Hex(), err)
	}
	d.AddToken(std, token)
	return std, nil
}

// HandleTxEvent routes a decoded event to every watched token it concerns.
// Pure data accumulation; no module runs here.
func (d *Detector) HandleTxEvent(ev domain.TxEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, wt := range d.tokens {
		if wt.finalized || wt.contract.Address != ev.Contract {
			continue
		}
		wt.events = append(wt.events, ev)
	}
}

// Watching returns the number of tokens currently on the watch list.
func (d *Detector) Watching() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tokens)
}

// tickJob is the snapshot a scan goroutine works from, taken under lock at
// dispatch so the scan never touches live watch-list state.
type tickJob struct {
	key    string
	token  domain.TokenContract
	events []domain.TxEvent
	prev   *analysis.Context
}

// Tick dispatches one concurrent scan per non-finalized token and returns
// once all scans are dispatched, not completed. Wait is the completion join.
func (d *Detector) Tick(timestamp int64, blockNumber uint64) {
	d.mu.Lock()
	jobs := make([]tickJob, 0, len(d.tokens))
	for key, wt := range d.tokens {
		if wt.finalized {
			continue
		}
		jobs = append(jobs, tickJob{
			key:    key,
			token:  wt.contract,
			events: append([]domain.TxEvent(nil), wt.events...),
			prev:   wt.prev,
		})
	}
	d.mu.Unlock()

	for _, job := range jobs {
		d.wg.Add(1)
		go func(job tickJob) {
			defer d.wg.Done()
			d.scanToken(job, timestamp, blockNumber)
		}(job)
	}
}

// Wait blocks until every scan dispatched by previous Tick calls has settled.
func (d *Detector) Wait() {
	d.wg.Wait()
}

// scanToken runs the token's module chain and records the tick's outcome.
func (d *Detector) scanToken(job tickJob, timestamp int64, blockNumber uint64) {
	ctx := context.Background()
	actx := analysis.NewContext()
	modules := d.registry.ModulesFor(job.token.Standard)

	params := &analysis.ScanParams{
		Token:       job.token,
		BlockNumber: blockNumber,
		Timestamp:   timestamp,
		Provider:    d.provider,
		Memo:        d.memo.Scope(job.key),
		Verdicts:    d.verdicts,
		Context:     actx,
		Events:      job.events,
	}

	for _, m := range modules {
		err := m.Scan(ctx, params)
		if err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"module": m.Key(),
				"token":  job.token.Address.Hex(),
			}).Warn("module scan failed")
			// A failed module counts as no detection this tick.
			if _, ok := actx.Get(m.Key()); !ok {
				actx.Put(m.Key(), analysis.ModuleResult{Detected: false})
			}
		}
		observability.RecordModuleScan(m.Key(), err != nil, actx.Detected(m.Key()))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	wt, ok := d.tokens[job.key]
	if !ok || wt.finalized {
		// Deleted or finalized while the scan was in flight. Discard.
		return
	}

	if actx.Changed(wt.prev) {
		wt.quietTicks = 0
	} else {
		wt.quietTicks++
	}
	wt.prev = actx

	age := timestamp - job.token.Timestamp
	if wt.quietTicks >= d.cfg.QuietTicks || age >= d.cfg.MaxTokenAge {
		wt.finalized = true
	}

	d.ready = append(d.ready, &TokenAnalysis{
		key:         job.key,
		token:       job.token,
		context:     actx,
		blockNumber: blockNumber,
		timestamp:   timestamp,
		finalized:   wt.finalized,
		spamKeys:    d.spamKeys,
		modules:     modules,
	})
}

// ReleaseAnalyses drains the ready buffer. Each analysis is returned at most
// once; analyses of tokens deleted since their scan are silently discarded.
// Finalized tokens are removed from the watch list once released.
func (d *Detector) ReleaseAnalyses() []*TokenAnalysis {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*TokenAnalysis, 0, len(d.ready))
	for _, a := range d.ready {
		if _, exists := d.tokens[a.key]; !exists {
			continue
		}
		out = append(out, a)
	}
	d.ready = nil

	for _, a := range out {
		if a.finalized {
			delete(d.tokens, a.key)
			d.memo.DeleteScope(a.key)
		}
	}
	return out
}

// DeleteToken removes a token from the watch list regardless of state.
// In-flight scans for it complete but their analyses are discarded at
// release time.
func (d *Detector) DeleteToken(chainID uint64, address common.Address) {
	key := tokenKey(chainID, address)

	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.tokens, key)
	d.memo.DeleteScope(key)
}
