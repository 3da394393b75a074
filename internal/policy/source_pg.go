package policy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// policyRowID is the single durable policy row, as seeded.
const policyRowID = 1

// PGSource reads the policy row from Postgres. The grant amount is
// stored in whole SUI and scaled to MIST on fetch.
type PGSource struct {
	pool *pgxpool.Pool
}

// NewPGSource constructs a source over the given pool.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

// FetchPolicy implements Source.
func (s *PGSource) FetchPolicy(ctx context.Context) (*Policy, error) {
	const q = `SELECT cooldown_seconds, faucet_amount, enabled, max_requests_per_ip, max_requests_per_wallet
		FROM faucet_policy WHERE id = $1`

	var (
		cooldown  int64
		amountSui float64
		enabled   bool
		perIP     int64
		perWallet int64
	)
	err := s.pool.QueryRow(ctx, q, policyRowID).Scan(&cooldown, &amountSui, &enabled, &perIP, &perWallet)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("policy: fetch failed: %w", err)
	}
	return &Policy{
		CooldownSeconds: cooldown,
		OriginPoints:    perIP,
		WalletPoints:    perWallet,
		AmountMist:      int64(math.Round(amountSui * mistPerSui)),
		Enabled:         enabled,
	}, nil
}

// Update describes a partial policy change; nil fields are untouched.
type Update struct {
	CooldownSeconds *int64
	AmountSui       *float64
	Enabled         *bool
	OriginPoints    *int64
	WalletPoints    *int64
}

// Validate rejects updates the store would refuse to load back.
func (u *Update) Validate() error {
	if u.CooldownSeconds != nil && *u.CooldownSeconds <= 0 {
		return fmt.Errorf("policy: cooldown_seconds must be positive")
	}
	if u.AmountSui != nil && *u.AmountSui <= 0 {
		return fmt.Errorf("policy: faucet_amount must be positive")
	}
	if u.OriginPoints != nil && *u.OriginPoints < 0 {
		return fmt.Errorf("policy: max_requests_per_ip must not be negative")
	}
	if u.WalletPoints != nil && *u.WalletPoints < 0 {
		return fmt.Errorf("policy: max_requests_per_wallet must not be negative")
	}
	if u.CooldownSeconds == nil && u.AmountSui == nil && u.Enabled == nil &&
		u.OriginPoints == nil && u.WalletPoints == nil {
		return fmt.Errorf("policy: update has no fields")
	}
	return nil
}

// UpdatePolicy persists the non-nil fields of u onto the policy row.
// Callers reload the snapshot afterwards.
func (s *PGSource) UpdatePolicy(ctx context.Context, u *Update) error {
	if err := u.Validate(); err != nil {
		return err
	}

	sets := make([]string, 0, 5)
	args := make([]any, 0, 6)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.CooldownSeconds != nil {
		add("cooldown_seconds", *u.CooldownSeconds)
	}
	if u.AmountSui != nil {
		add("faucet_amount", *u.AmountSui)
	}
	if u.Enabled != nil {
		add("enabled", *u.Enabled)
	}
	if u.OriginPoints != nil {
		add("max_requests_per_ip", *u.OriginPoints)
	}
	if u.WalletPoints != nil {
		add("max_requests_per_wallet", *u.WalletPoints)
	}

	args = append(args, policyRowID)
	q := fmt.Sprintf("UPDATE faucet_policy SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("policy: update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
