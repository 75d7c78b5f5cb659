package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Memoizer errors.
var (
	// ErrScopeDeleted is returned when querying through a scope that has been
	// deleted from its memoizer. This is a programming error, not retried.
	ErrScopeDeleted = errors.New("memoizer: scope not initialized")

	// ErrBadArgument is returned when a query argument is not a primitive.
	// Cache keys must be a pure function of the inputs.
	ErrBadArgument = errors.New("memoizer: query arguments must be primitive")
)

// DefaultScope is the scope used when callers do not need isolation.
const DefaultScope = ""

// outcome is the tagged result stored per cache key: a value or an error.
// Storing the error makes failures replayable without re-invoking the producer.
type outcome struct {
	value any
	err   error
}

// Memoizer layers named scopes (independent namespaces) over TTL caches.
// It deduplicates completed queries only: concurrent callers that miss on the
// same key each invoke their producer independently. There is deliberately no
// single-flight coalescing of in-flight calls.
type Memoizer struct {
	mu     sync.Mutex
	scopes map[string]*Scope
	now    func() time.Time
}

// NewMemoizer creates an empty memoizer.
func NewMemoizer() *Memoizer {
	return NewMemoizerWithClock(time.Now)
}

// NewMemoizerWithClock creates a memoizer using the given clock. Used in tests.
func NewMemoizerWithClock(now func() time.Time) *Memoizer {
	return &Memoizer{
		scopes: make(map[string]*Scope),
		now:    now,
	}
}

// Scope returns the scope with the given name, lazily creating it.
func (m *Memoizer) Scope(name string) *Scope {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.scopes[name]
	if !ok {
		s = &Scope{
			owner: m,
			name:  name,
			cache: NewWithClock[outcome](m.now),
		}
		m.scopes[name] = s
	}
	return s
}

// DeleteScope drops the named scope and all its entries. A scope handle held
// by a caller becomes invalid: subsequent queries fail with ErrScopeDeleted.
func (m *Memoizer) DeleteScope(name string) {
	m.mu.Lock()
	delete(m.scopes, name)
	m.mu.Unlock()
}

// ClearExpired sweeps expired entries in every scope.
func (m *Memoizer) ClearExpired() {
	m.mu.Lock()
	scopes := make([]*Scope, 0, len(m.scopes))
	for _, s := range m.scopes {
		scopes = append(scopes, s)
	}
	m.mu.Unlock()

	for _, s := range scopes {
		s.cache.ClearExpired()
	}
}

// Scope is a bound query namespace. Handles stay valid until the scope is
// deleted from the owning memoizer.
type Scope struct {
	owner *Memoizer
	name  string
	cache *Cache[outcome]
}

// Name returns the scope name.
func (s *Scope) Name() string {
	return s.name
}

// Query returns the memoized result for key+args, invoking produce on a miss.
// Both the returned value and the returned error of produce are cached for
// ttl and replayed verbatim until expiry. Args must be primitives (strings,
// booleans, integers, floats) so the cache key is deterministic.
func (s *Scope) Query(key string, args []any, ttl time.Duration, produce func() (any, error)) (any, error) {
	if !s.alive() {
		return nil, ErrScopeDeleted
	}

	ck, err := queryKey(key, args)
	if err != nil {
		return nil, err
	}

	if out, ok := s.cache.Get(ck); ok {
		return out.value, out.err
	}

	// Miss: invoke the producer without holding any lock, then cache whatever
	// it settles to. Concurrent misses on the same key race to Set; last
	// writer wins, which is harmless since producers are pure per key.
	value, perr := produce()
	s.cache.Set(ck, outcome{value: value, err: perr}, ttl)
	return value, perr
}

// alive reports whether the scope is still registered with its memoizer.
func (s *Scope) alive() bool {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	return s.owner.scopes[s.name] == s
}

// Query is the typed variant of Scope.Query.
func Query[V any](s *Scope, key string, args []any, ttl time.Duration, produce func() (V, error)) (V, error) {
	out, err := s.Query(key, args, ttl, func() (any, error) {
		return produce()
	})
	v, _ := out.(V)
	return v, err
}

// queryKey derives the deterministic cache key for key+args. The key is
// hashed for opacity so arbitrary argument content cannot collide with other
// query keys.
func queryKey(key string, args []any) (string, error) {
	var b strings.Builder
	b.WriteString(key)
	for _, a := range args {
		switch a.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			// unit separator keeps ("ab","c") distinct from ("a","bc")
			fmt.Fprintf(&b, "\x1f%T=%v", a, a)
		default:
			return "", fmt.Errorf("%w: %T", ErrBadArgument, a)
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}
