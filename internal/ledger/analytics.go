package ledger

import (
	"context"
	"fmt"
	"time"
)

const (
	recentLimit = 10
	topLimit    = 5
)

// Totals aggregates the whole ledger.
type Totals struct {
	Requests      int64 `json:"requests"`
	Success       int64 `json:"success"`
	Failed        int64 `json:"failed"`
	MistDispensed int64 `json:"mistDispensed"`
}

// Entry is one ledger row as exposed to the admin API.
type Entry struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	OriginKey     string    `json:"ipAddress"`
	TxDigest      string    `json:"txHash,omitempty"`
	AmountMist    int64     `json:"amount"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failureReason,omitempty"`
	UserAgent     string    `json:"userAgent"`
	CreatedAt     time.Time `json:"createdAt"`
}

// KeyCount is a grouped request count for one wallet or origin.
type KeyCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Bucket is one timeseries point.
type Bucket struct {
	Time    time.Time `json:"time"`
	Total   int64     `json:"total"`
	Success int64     `json:"success"`
	Failed  int64     `json:"failed"`
	Mist    int64     `json:"mist"`
}

// Summary is the admin analytics payload.
type Summary struct {
	Totals     Totals     `json:"totals"`
	Recent     []Entry    `json:"recent"`
	TopWallets []KeyCount `json:"topWallets"`
	TopOrigins []KeyCount `json:"topIps"`
}

// Summarize gathers totals, the most recent outcomes, and the busiest
// wallets and origins.
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	out := &Summary{}

	const totalsQ = `SELECT count(*),
		count(*) FILTER (WHERE status = 'success'),
		count(*) FILTER (WHERE status = 'failed'),
		COALESCE(sum(amount) FILTER (WHERE status = 'success'), 0)
		FROM faucet_requests`
	err := s.pool.QueryRow(ctx, totalsQ).Scan(
		&out.Totals.Requests, &out.Totals.Success, &out.Totals.Failed, &out.Totals.MistDispensed)
	if err != nil {
		return nil, fmt.Errorf("ledger: totals query failed: %w", err)
	}

	if out.Recent, err = s.recent(ctx); err != nil {
		return nil, err
	}
	if out.TopWallets, err = s.topKeys(ctx, "wallet_address"); err != nil {
		return nil, err
	}
	if out.TopOrigins, err = s.topKeys(ctx, "ip_address"); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) recent(ctx context.Context) ([]Entry, error) {
	const q = `SELECT id, wallet_address, ip_address, COALESCE(tx_hash, ''),
		amount, status, COALESCE(failure_reason, ''), user_agent, created_at
		FROM faucet_requests ORDER BY created_at DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, q, recentLimit)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent query failed: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, recentLimit)
	for rows.Next() {
		var e Entry
		if err = rows.Scan(&e.ID, &e.WalletAddress, &e.OriginKey, &e.TxDigest,
			&e.AmountMist, &e.Status, &e.FailureReason, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger: recent scan failed: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) topKeys(ctx context.Context, column string) ([]KeyCount, error) {
	// column is one of two compile-time constants, never user input.
	q := fmt.Sprintf(`SELECT %s, count(*) FROM faucet_requests
		GROUP BY %s ORDER BY count(*) DESC LIMIT $1`, column, column)
	rows, err := s.pool.Query(ctx, q, topLimit)
	if err != nil {
		return nil, fmt.Errorf("ledger: top %s query failed: %w", column, err)
	}
	defer rows.Close()

	counts := make([]KeyCount, 0, topLimit)
	for rows.Next() {
		var kc KeyCount
		if err = rows.Scan(&kc.Key, &kc.Count); err != nil {
			return nil, fmt.Errorf("ledger: top %s scan failed: %w", column, err)
		}
		counts = append(counts, kc)
	}
	return counts, rows.Err()
}

// Timeseries buckets outcomes over the trailing window. granularity is
// "hourly" or "daily"; window is how far back to look.
func (s *Store) Timeseries(ctx context.Context, granularity string, window time.Duration) ([]Bucket, error) {
	trunc := "day"
	if granularity == "hourly" {
		trunc = "hour"
	}
	const q = `SELECT date_trunc($1, created_at) AS bucket,
		count(*),
		count(*) FILTER (WHERE status = 'success'),
		count(*) FILTER (WHERE status = 'failed'),
		COALESCE(sum(amount) FILTER (WHERE status = 'success'), 0)
		FROM faucet_requests
		WHERE created_at >= $2
		GROUP BY bucket ORDER BY bucket ASC`

	rows, err := s.pool.Query(ctx, q, trunc, time.Now().UTC().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("ledger: timeseries query failed: %w", err)
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		var b Bucket
		if err = rows.Scan(&b.Time, &b.Total, &b.Success, &b.Failed, &b.Mist); err != nil {
			return nil, fmt.Errorf("ledger: timeseries scan failed: %w", err)
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}
