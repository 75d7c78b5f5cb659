package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"token-spam-detector/internal/domain"
)

// TokenStore provides access to the durable watched-token registry.
type TokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if (chain, address) exists.
	Insert(ctx context.Context, t *domain.TokenContract) error

	// GetByAddress retrieves a token. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, chainID uint64, address common.Address) (*domain.TokenContract, error)

	// GetAll retrieves all stored tokens, ordered by deployment block ASC.
	GetAll(ctx context.Context) ([]*domain.TokenContract, error)

	// Delete removes a token. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, chainID uint64, address common.Address) error
}

// TokenListStore persists reference token list snapshots. A snapshot is
// overwritten as a whole: the list provider always reads and writes the full
// catalog.
type TokenListStore interface {
	// Read returns the last written snapshot. Returns ErrNotFound when no
	// snapshot has been written yet.
	Read(ctx context.Context) ([]domain.ReferenceToken, error)

	// Write replaces the stored snapshot.
	Write(ctx context.Context, list []domain.ReferenceToken) error
}

// VerdictArchive stores released verdicts long term for offline analysis.
// Unlike VerdictStore it is batch oriented and makes no uniqueness promises.
type VerdictArchive interface {
	// InsertBulk adds a batch of verdict records.
	InsertBulk(ctx context.Context, records []*domain.VerdictRecord) error

	// GetByAddress retrieves all archived verdicts for a token, ordered by
	// tick timestamp ASC.
	GetByAddress(ctx context.Context, chainID uint64, address common.Address) ([]*domain.VerdictRecord, error)
}

// VerdictStore provides append-only access to released analysis verdicts.
type VerdictStore interface {
	// Append adds a verdict record.
	Append(ctx context.Context, v *domain.VerdictRecord) error

	// GetByAddress retrieves all verdicts for a token, ordered by tick
	// timestamp ASC.
	GetByAddress(ctx context.Context, chainID uint64, address common.Address) ([]*domain.VerdictRecord, error)
}
