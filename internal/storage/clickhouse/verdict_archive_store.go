package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/observability"
	"token-spam-detector/internal/storage"
)

// VerdictArchiveStore implements storage.VerdictArchive using ClickHouse.
type VerdictArchiveStore struct {
	conn *Conn
}

// NewVerdictArchiveStore creates a new VerdictArchiveStore.
func NewVerdictArchiveStore(conn *Conn) *VerdictArchiveStore {
	return &VerdictArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.VerdictArchive = (*VerdictArchiveStore)(nil)

// InsertBulk adds a batch of verdict records.
func (s *VerdictArchiveStore) InsertBulk(ctx context.Context, records []*domain.VerdictRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_bulk", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO verdict_archive (
			chain_id, address, standard, is_spam, is_finalized,
			detected_by, block_number, tick_timestamp, created_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, v := range records {
		if v == nil {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			v.ChainID, v.Address.Hex(), string(v.Standard),
			boolToUint8(v.IsSpam), boolToUint8(v.IsFinalized),
			v.DetectedBy, v.BlockNumber, v.Timestamp, v.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByAddress retrieves all archived verdicts for a token, ordered by tick
// timestamp ASC.
func (s *VerdictArchiveStore) GetByAddress(ctx context.Context, chainID uint64, address common.Address) ([]*domain.VerdictRecord, error) {
	query := `
		SELECT chain_id, address, standard, is_spam, is_finalized,
		       detected_by, block_number, tick_timestamp, created_at
		FROM verdict_archive
		WHERE chain_id = ? AND address = ?
		ORDER BY tick_timestamp ASC
	`

	start := time.Now()
	rows, err := s.conn.Query(ctx, query, chainID, address.Hex())
	observability.RecordDBQuery("clickhouse", "select", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query verdicts by address: %w", err)
	}
	defer rows.Close()

	var records []*domain.VerdictRecord
	for rows.Next() {
		var v domain.VerdictRecord
		var addr, standard string
		var isSpam, isFinalized uint8

		err := rows.Scan(
			&v.ChainID, &addr, &standard, &isSpam, &isFinalized,
			&v.DetectedBy, &v.BlockNumber, &v.Timestamp, &v.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan verdict row: %w", err)
		}

		v.Address = common.HexToAddress(addr)
		v.Standard = domain.TokenStandard(standard)
		v.IsSpam = isSpam != 0
		v.IsFinalized = isFinalized != 0
		records = append(records, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdict rows: %w", err)
	}
	return records, nil
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
