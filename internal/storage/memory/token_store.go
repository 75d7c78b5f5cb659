package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage"
)

func tokenKey(chainID uint64, address common.Address) string {
	return fmt.Sprintf("%d:%s", chainID, address.Hex())
}

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenContract
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.TokenContract),
	}
}

// Insert adds a new token. Returns ErrDuplicateKey if (chain, address) exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.TokenContract) error {
	if t == nil || t.Address == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey(t.ChainID, t.Address)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	tokenCopy := *t
	s.data[key] = &tokenCopy
	return nil
}

// GetByAddress retrieves a token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(_ context.Context, chainID uint64, address common.Address) (*domain.TokenContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tokenKey(chainID, address)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tokenCopy := *t
	return &tokenCopy, nil
}

// GetAll retrieves all stored tokens, ordered by deployment block ASC.
func (s *TokenStore) GetAll(_ context.Context) ([]*domain.TokenContract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TokenContract, 0, len(s.data))
	for _, t := range s.data {
		tokenCopy := *t
		result = append(result, &tokenCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BlockNumber < result[j].BlockNumber
	})

	return result, nil
}

// Delete removes a token. Returns ErrNotFound if not exists.
func (s *TokenStore) Delete(_ context.Context, chainID uint64, address common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey(chainID, address)
	if _, exists := s.data[key]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// Verify interface compliance at compile time.
var _ storage.TokenStore = (*TokenStore)(nil)
