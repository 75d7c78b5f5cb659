package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage"
)

// VerdictStore implements storage.VerdictStore using PostgreSQL.
type VerdictStore struct {
	pool *Pool
}

// NewVerdictStore creates a new VerdictStore.
func NewVerdictStore(pool *Pool) *VerdictStore {
	return &VerdictStore{pool: pool}
}

// Compile-time interface check.
var _ storage.VerdictStore = (*VerdictStore)(nil)

// Append adds a verdict record.
func (s *VerdictStore) Append(ctx context.Context, v *domain.VerdictRecord) error {
	if v == nil || v.Address == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO verdicts (
			chain_id, address, standard, is_spam, is_finalized,
			detected_by, block_number, tick_timestamp, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	detectedBy := v.DetectedBy
	if detectedBy == nil {
		detectedBy = []string{}
	}

	_, err := s.pool.Exec(ctx, query,
		int64(v.ChainID),
		v.Address.Hex(),
		string(v.Standard),
		v.IsSpam,
		v.IsFinalized,
		detectedBy,
		int64(v.BlockNumber),
		v.Timestamp,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verdict: %w", err)
	}
	return nil
}

// GetByAddress retrieves all verdicts for a token, ordered by tick timestamp ASC.
func (s *VerdictStore) GetByAddress(ctx context.Context, chainID uint64, address common.Address) ([]*domain.VerdictRecord, error) {
	query := `
		SELECT chain_id, address, standard, is_spam, is_finalized,
		       detected_by, block_number, tick_timestamp, created_at
		FROM verdicts
		WHERE chain_id = $1 AND address = $2
		ORDER BY tick_timestamp ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, int64(chainID), address.Hex())
	if err != nil {
		return nil, fmt.Errorf("get verdicts by address: %w", err)
	}
	defer rows.Close()

	var verdicts []*domain.VerdictRecord
	for rows.Next() {
		var v domain.VerdictRecord
		var cid, blockNumber int64
		var address, standard string

		err := rows.Scan(
			&cid, &address, &standard, &v.IsSpam, &v.IsFinalized,
			&v.DetectedBy, &blockNumber, &v.Timestamp, &v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan verdict row: %w", err)
		}

		v.ChainID = uint64(cid)
		v.Address = common.HexToAddress(address)
		v.Standard = domain.TokenStandard(standard)
		v.BlockNumber = uint64(blockNumber)
		verdicts = append(verdicts, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdict rows: %w", err)
	}
	return verdicts, nil
}
