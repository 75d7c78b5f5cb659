package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage"
)

// TokenListStore implements storage.TokenListStore using PostgreSQL. The
// snapshot lives in a single JSONB row and is replaced wholesale on write.
type TokenListStore struct {
	pool *Pool
}

// NewTokenListStore creates a new TokenListStore.
func NewTokenListStore(pool *Pool) *TokenListStore {
	return &TokenListStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenListStore = (*TokenListStore)(nil)

// Read returns the last written snapshot. Returns ErrNotFound when no
// snapshot has been written yet.
func (s *TokenListStore) Read(ctx context.Context) ([]domain.ReferenceToken, error) {
	query := `SELECT payload FROM token_list_snapshot WHERE id = 1`

	var payload []byte
	err := s.pool.QueryRow(ctx, query).Scan(&payload)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read token list snapshot: %w", err)
	}

	var list []domain.ReferenceToken
	if err := json.Unmarshal(payload, &list); err != nil {
		return nil, fmt.Errorf("decode token list snapshot: %w", err)
	}
	return list, nil
}

// Write replaces the stored snapshot.
func (s *TokenListStore) Write(ctx context.Context, list []domain.ReferenceToken) error {
	if list == nil {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode token list snapshot: %w", err)
	}

	query := `
		INSERT INTO token_list_snapshot (id, payload, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, payload); err != nil {
		return fmt.Errorf("write token list snapshot: %w", err)
	}
	return nil
}
