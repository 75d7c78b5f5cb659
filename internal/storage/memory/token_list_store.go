package memory

import (
	"context"
	"sync"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage"
)

// TokenListStore is an in-memory implementation of storage.TokenListStore.
type TokenListStore struct {
	mu       sync.RWMutex
	snapshot []domain.ReferenceToken
	written  bool
}

// NewTokenListStore creates a new in-memory token list store.
func NewTokenListStore() *TokenListStore {
	return &TokenListStore{}
}

// Read returns the last written snapshot. Returns ErrNotFound when no
// snapshot has been written yet.
func (s *TokenListStore) Read(_ context.Context) ([]domain.ReferenceToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.written {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	out := make([]domain.ReferenceToken, len(s.snapshot))
	copy(out, s.snapshot)
	return out, nil
}

// Write replaces the stored snapshot.
func (s *TokenListStore) Write(_ context.Context, list []domain.ReferenceToken) error {
	if list == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = make([]domain.ReferenceToken, len(list))
	copy(s.snapshot, list)
	s.written = true
	return nil
}

// Verify interface compliance at compile time.
var _ storage.TokenListStore = (*TokenListStore)(nil)
