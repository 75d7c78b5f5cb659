package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage"
)

// VerdictStore is an in-memory implementation of storage.VerdictStore.
type VerdictStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.VerdictRecord
}

// NewVerdictStore creates a new in-memory verdict store.
func NewVerdictStore() *VerdictStore {
	return &VerdictStore{
		data: make(map[string][]*domain.VerdictRecord),
	}
}

// Append adds a verdict record.
func (s *VerdictStore) Append(_ context.Context, v *domain.VerdictRecord) error {
	if v == nil || v.Address == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	verdictCopy := *v
	verdictCopy.DetectedBy = append([]string(nil), v.DetectedBy...)
	key := tokenKey(v.ChainID, v.Address)
	s.data[key] = append(s.data[key], &verdictCopy)
	return nil
}

// GetByAddress retrieves all verdicts for a token, ordered by tick timestamp ASC.
func (s *VerdictStore) GetByAddress(_ context.Context, chainID uint64, address common.Address) ([]*domain.VerdictRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.data[tokenKey(chainID, address)]
	result := make([]*domain.VerdictRecord, 0, len(stored))
	for _, v := range stored {
		verdictCopy := *v
		verdictCopy.DetectedBy = append([]string(nil), v.DetectedBy...)
		result = append(result, &verdictCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.VerdictStore = (*VerdictStore)(nil)
