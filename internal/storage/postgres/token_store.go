package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a new token. Returns ErrDuplicateKey if (chain, address) exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.TokenContract) error {
	if t == nil || t.Address == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tokens (
			chain_id, address, deployer, standard, block_number, deployed_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := s.pool.Exec(ctx, query,
		int64(t.ChainID),
		t.Address.Hex(),
		t.Deployer.Hex(),
		string(t.Standard),
		int64(t.BlockNumber),
		t.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByAddress retrieves a token. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByAddress(ctx context.Context, chainID uint64, address common.Address) (*domain.TokenContract, error) {
	query := `
		SELECT chain_id, address, deployer, standard, block_number, deployed_at
		FROM tokens
		WHERE chain_id = $1 AND address = $2
	`

	row := s.pool.QueryRow(ctx, query, int64(chainID), address.Hex())
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by address: %w", err)
	}
	return t, nil
}

// GetAll retrieves all stored tokens, ordered by deployment block ASC.
func (s *TokenStore) GetAll(ctx context.Context) ([]*domain.TokenContract, error) {
	query := `
		SELECT chain_id, address, deployer, standard, block_number, deployed_at
		FROM tokens
		ORDER BY block_number ASC, address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*domain.TokenContract
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}
	return tokens, nil
}

// Delete removes a token. Returns ErrNotFound if not exists.
func (s *TokenStore) Delete(ctx context.Context, chainID uint64, address common.Address) error {
	query := `DELETE FROM tokens WHERE chain_id = $1 AND address = $2`

	tag, err := s.pool.Exec(ctx, query, int64(chainID), address.Hex())
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanToken scans a single token row.
func scanToken(row pgRow) (*domain.TokenContract, error) {
	var t domain.TokenContract
	var chainID, blockNumber int64
	var address, deployer, standard string

	err := row.Scan(&chainID, &address, &deployer, &standard, &blockNumber, &t.Timestamp)
	if err != nil {
		return nil, err
	}

	t.ChainID = uint64(chainID)
	t.Address = common.HexToAddress(address)
	t.Deployer = common.HexToAddress(deployer)
	t.Standard = domain.TokenStandard(standard)
	t.BlockNumber = uint64(blockNumber)
	return &t, nil
}

// pgRow abstracts pgx.Row and pgx.Rows for shared scanning.
type pgRow interface {
	Scan(dest ...any) error
}
