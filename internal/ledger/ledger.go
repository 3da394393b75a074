// Package ledger persists dispense outcomes. Writes are append-only:
// a row is inserted exactly once by the pipeline and never updated.
// The read side serves the admin analytics endpoints only.
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artiswap/sui-faucet/internal/dispense"
)

// Store reads and writes the faucet_requests table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a store over the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record appends one outcome. Absent fields (digest on failure, reason
// on success) are stored as NULL.
func (s *Store) Record(ctx context.Context, outcome *dispense.Outcome) error {
	const q = `INSERT INTO faucet_requests
		(id, wallet_address, ip_address, tx_hash, amount, status, failure_reason, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var txHash, reason any
	if outcome.TxDigest != "" {
		txHash = outcome.TxDigest
	}
	if outcome.FailureReason != "" {
		reason = outcome.FailureReason
	}

	_, err := s.pool.Exec(ctx, q,
		outcome.ID, outcome.WalletAddress, outcome.OriginKey, txHash,
		outcome.AmountMist, outcome.Status, reason, outcome.UserAgent, outcome.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger: insert failed: %w", err)
	}
	return nil
}
