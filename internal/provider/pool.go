package provider

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"token-spam-detector/internal/observability"
)

// Default pool configuration values.
const (
	DefaultMaxFailures       = 3
	DefaultRetryBudget       = 5
	DefaultBaseDelay         = 200 * time.Millisecond
	DefaultMaxDelay          = 5 * time.Second
	DefaultExclusionCooldown = 30 * time.Second
)

// PoolConfig configures RotatingPool behavior.
type PoolConfig struct {
	// MaxFailures is the number of consecutive failures after which a
	// provider is removed from rotation.
	MaxFailures int
	// RetryBudget bounds attempts per operation before the last error is
	// surfaced to the caller.
	RetryBudget int
	// BaseDelay is the initial backoff delay between attempts.
	BaseDelay time.Duration
	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration
	// Jitter randomizes each delay within [delay/2, delay].
	Jitter bool
	// ExclusionCooldown is how long an excluded provider sits out before it
	// is given a fresh chance in rotation.
	ExclusionCooldown time.Duration
}

// DefaultPoolConfig returns the default pool configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxFailures:       DefaultMaxFailures,
		RetryBudget:       DefaultRetryBudget,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		Jitter:            true,
		ExclusionCooldown: DefaultExclusionCooldown,
	}
}

type member struct {
	provider      DataProvider
	failures      int
	excludedUntil time.Time
}

// inRotation reports whether the member may serve calls at now. A member
// whose cooldown has elapsed is eligible again.
func (m *member) inRotation(now time.Time) bool {
	return m.excludedUntil.IsZero() || !now.Before(m.excludedUntil)
}

// RotatingPool assigns calls round-robin over a fixed set of providers. A
// provider is removed from rotation for ExclusionCooldown after MaxFailures
// consecutive transport failures, then re-admitted with a clean slate; while
// no live provider remains, operations fail with ErrPoolExhausted wrapping
// the last observed error. Contract-execution failures (reverts) never count
// against a provider.
type RotatingPool struct {
	mu      sync.Mutex
	members []*member
	next    int
	cfg     PoolConfig
	log     logrus.FieldLogger
}

// NewRotatingPool creates a pool over the given providers.
func NewRotatingPool(providers []DataProvider, cfg PoolConfig, log logrus.FieldLogger) *RotatingPool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = DefaultRetryBudget
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.ExclusionCooldown <= 0 {
		cfg.ExclusionCooldown = DefaultExclusionCooldown
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	members := make([]*member, len(providers))
	for i, p := range providers {
		members[i] = &member{provider: p}
	}
	observability.UpdateProvidersLive(len(members))
	return &RotatingPool{members: members, cfg: cfg, log: log}
}

// Live returns the number of providers currently eligible for rotation.
func (p *RotatingPool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.liveLocked(time.Now())
}

func (p *RotatingPool) liveLocked(now time.Time) int {
	live := 0
	for _, m := range p.members {
		if m.inRotation(now) {
			live++
		}
	}
	return live
}

// nextLive picks the next provider in rotation, or nil when none remain.
// A member whose exclusion cooldown has elapsed re-enters here with its
// failure count reset.
func (p *RotatingPool) nextLive() *member {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	for i := 0; i < len(p.members); i++ {
		m := p.members[p.next%len(p.members)]
		p.next++
		if !m.inRotation(now) {
			continue
		}
		if !m.excludedUntil.IsZero() {
			m.excludedUntil = time.Time{}
			m.failures = 0
			p.log.Info("provider re-admitted to rotation after cooldown")
			observability.UpdateProvidersLive(p.liveLocked(now))
		}
		return m
	}
	return nil
}

func (p *RotatingPool) reportSuccess(m *member) {
	p.mu.Lock()
	m.failures = 0
	p.mu.Unlock()
}

func (p *RotatingPool) reportFailure(m *member, op string, err error) {
	p.mu.Lock()
	m.failures++
	excluded := m.failures >= p.cfg.MaxFailures
	if excluded {
		m.excludedUntil = time.Now().Add(p.cfg.ExclusionCooldown)
	}
	live := p.liveLocked(time.Now())
	p.mu.Unlock()

	entry := p.log.WithFields(logrus.Fields{"op": op, "failures": m.failures})
	if excluded {
		entry.Warnf("provider excluded from rotation for %v: %v", p.cfg.ExclusionCooldown, err)
		observability.UpdateProvidersLive(live)
	} else {
		entry.Debugf("provider call failed: %v", err)
	}
}

// do runs fn against rotating providers with bounded backoff. Only transport
// and endpoint faults consume retry budget and failure accounting; a
// deterministic execution failure is a healthy round-trip whose error belongs
// to the caller.
func (p *RotatingPool) do(ctx context.Context, op string, fn func(DataProvider) error) error {
	var lastErr error
	delay := p.cfg.BaseDelay

	for attempt := 0; attempt < p.cfg.RetryBudget; attempt++ {
		m := p.nextLive()
		if m == nil {
			if lastErr != nil {
				return fmt.Errorf("%w: last error: %v", ErrPoolExhausted, lastErr)
			}
			return ErrPoolExhausted
		}

		err := fn(m.provider)
		if err == nil {
			p.reportSuccess(m)
			observability.RecordProviderCall(op, nil)
			return nil
		}
		if IsExecutionError(err) {
			p.reportSuccess(m)
			observability.RecordProviderCall(op, nil)
			return err
		}
		lastErr = err
		p.reportFailure(m, op, err)
		observability.RecordProviderCall(op, err)

		if attempt == p.cfg.RetryBudget-1 {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > p.cfg.MaxDelay {
			delay = p.cfg.MaxDelay
		}
	}

	return lastErr
}

func (p *RotatingPool) sleep(ctx context.Context, delay time.Duration) error {
	if p.cfg.Jitter {
		delay = delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetCode implements DataProvider.
func (p *RotatingPool) GetCode(ctx context.Context, address common.Address) ([]byte, error) {
	var out []byte
	err := p.do(ctx, "getCode", func(dp DataProvider) error {
		var err error
		out, err = dp.GetCode(ctx, address)
		return err
	})
	return out, err
}

// Call implements DataProvider.
func (p *RotatingPool) Call(ctx context.Context, to common.Address, input []byte) ([]byte, error) {
	var out []byte
	err := p.do(ctx, "call", func(dp DataProvider) error {
		var err error
		out, err = dp.Call(ctx, to, input)
		return err
	})
	return out, err
}

// GetBalance implements DataProvider.
func (p *RotatingPool) GetBalance(ctx context.Context, address common.Address) (*big.Int, error) {
	var out *big.Int
	err := p.do(ctx, "getBalance", func(dp DataProvider) error {
		var err error
		out, err = dp.GetBalance(ctx, address)
		return err
	})
	return out, err
}

// GetTransactionCount implements DataProvider.
func (p *RotatingPool) GetTransactionCount(ctx context.Context, address common.Address) (uint64, error) {
	var out uint64
	err := p.do(ctx, "getTransactionCount", func(dp DataProvider) error {
		var err error
		out, err = dp.GetTransactionCount(ctx, address)
		return err
	})
	return out, err
}

// LookupName implements DataProvider.
func (p *RotatingPool) LookupName(ctx context.Context, address common.Address) (string, error) {
	var out string
	err := p.do(ctx, "lookupName", func(dp DataProvider) error {
		var err error
		out, err = dp.LookupName(ctx, address)
		return err
	})
	return out, err
}

// Compile-time interface check.
var _ DataProvider = (*RotatingPool)(nil)
