// Package tokenlist loads and caches the reference token catalog used to
// detect impersonation of well-known tokens.
package tokenlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage"
)

// ErrUnavailable is returned when no list could be fetched and no snapshot,
// fresh or stale, is available.
var ErrUnavailable = errors.New("tokenlist: reference list unavailable")

// Default configuration values.
const (
	DefaultTTL     = 1 * time.Hour
	DefaultTimeout = 30 * time.Second
)

// listPayload is the wire format of the published token list.
type listPayload struct {
	Name   string                  `json:"name"`
	Tokens []domain.ReferenceToken `json:"tokens"`
}

// Provider serves the reference token list with a TTL-bounded snapshot.
// Reads are serialized: at most one fetch is in flight, and concurrent
// callers wait for it rather than each hitting the upstream.
type Provider struct {
	url    string
	ttl    time.Duration
	client *http.Client
	store  storage.TokenListStore
	logger *logrus.Entry
	now    func() time.Time

	mu        sync.Mutex
	snapshot  []domain.ReferenceToken
	fetchedAt time.Time
}

// Option configures Provider.
type Option func(*Provider)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// WithTTL sets the snapshot freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		p.ttl = ttl
	}
}

// WithClock sets the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// New creates a Provider fetching from url and persisting snapshots to store.
// A nil store disables persistence.
func New(url string, store storage.TokenListStore, opts ...Option) *Provider {
	p := &Provider{
		url:    url,
		ttl:    DefaultTTL,
		client: &http.Client{Timeout: DefaultTimeout},
		store:  store,
		logger: logrus.WithField("component", "tokenlist"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the reference token list. A fresh snapshot is returned as is;
// an expired one triggers a refetch. When the upstream fails, a stale
// snapshot is served rather than an error, and the persisted snapshot is
// used to bootstrap when no in-memory one exists yet.
func (p *Provider) Get(ctx context.Context) ([]domain.ReferenceToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snapshot != nil && p.now().Sub(p.fetchedAt) < p.ttl {
		return copyList(p.snapshot), nil
	}

	list, err := p.fetch(ctx)
	if err == nil {
		p.snapshot = list
		p.fetchedAt = p.now()
		p.persist(ctx, list)
		return copyList(list), nil
	}

	if p.snapshot != nil {
		p.logger.WithError(err).Warn("token list fetch failed, serving stale snapshot")
		return copyList(p.snapshot), nil
	}

	if p.store != nil {
		stored, storeErr := p.store.Read(ctx)
		if storeErr == nil {
			p.logger.WithError(err).Warn("token list fetch failed, serving persisted snapshot")
			p.snapshot = stored
			p.fetchedAt = time.Time{} // stale, retry on next call
			return copyList(stored), nil
		}
		if !errors.Is(storeErr, storage.ErrNotFound) {
			p.logger.WithError(storeErr).Error("read persisted token list")
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// fetch downloads and decodes the upstream list.
func (p *Provider) fetch(ctx context.Context) ([]domain.ReferenceToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch token list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch token list: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token list body: %w", err)
	}

	var payload listPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode token list: %w", err)
	}
	if payload.Tokens == nil {
		return nil, fmt.Errorf("decode token list: missing tokens field")
	}
	return payload.Tokens, nil
}

// persist writes the snapshot to the backing store. Failures are logged,
// not surfaced: the in-memory snapshot is already updated.
func (p *Provider) persist(ctx context.Context, list []domain.ReferenceToken) {
	if p.store == nil {
		return
	}
	if err := p.store.Write(ctx, list); err != nil {
		p.logger.WithError(err).Error("persist token list snapshot")
	}
}

func copyList(list []domain.ReferenceToken) []domain.ReferenceToken {
	out := make([]domain.ReferenceToken, len(list))
	copy(out, list)
	return out
}
