// Package policy holds the admission policy that drives the dispensing
// pipeline. The current policy is an immutable snapshot swapped
// atomically on reload, so concurrent readers never observe a partially
// updated value.
package policy

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// mistPerSui converts the configured grant amount (whole SUI) to MIST,
// the smallest on-chain unit.
const mistPerSui = 1_000_000_000

var (
	// ErrNotLoaded is returned by Get before the first successful Load.
	ErrNotLoaded = errors.New("policy: not loaded")
	// ErrNotFound is returned by a Source when no policy row exists.
	ErrNotFound = errors.New("policy: not found")
)

// Policy is one immutable admission-policy snapshot.
type Policy struct {
	// CooldownSeconds is the fixed quota window applied to both keys.
	CooldownSeconds int64
	// OriginPoints is the request allotment per origin key per window.
	OriginPoints int64
	// WalletPoints is the request allotment per wallet key per window.
	WalletPoints int64
	// AmountMist is the grant size in MIST.
	AmountMist int64
	// Enabled gates the whole faucet.
	Enabled bool
}

// Window returns the quota window as a duration.
func (p *Policy) Window() time.Duration {
	return time.Duration(p.CooldownSeconds) * time.Second
}

// Validate rejects snapshots the limiter cannot act on.
func (p *Policy) Validate() error {
	if p.CooldownSeconds < 0 || p.OriginPoints < 0 || p.WalletPoints < 0 || p.AmountMist < 0 {
		return fmt.Errorf("policy: negative field in %+v", *p)
	}
	if (p.OriginPoints > 0 || p.WalletPoints > 0) && p.CooldownSeconds == 0 {
		return fmt.Errorf("policy: cooldown must be positive when quotas are set")
	}
	return nil
}

// Source fetches the durable policy. Implementations return
// ErrNotFound when no policy exists.
type Source interface {
	FetchPolicy(ctx context.Context) (*Policy, error)
}

// Store exposes the current policy snapshot. Load must succeed once
// before Get; Reload swaps the snapshot wholesale. Reads are lock-free.
type Store struct {
	source  Source
	current atomic.Pointer[Policy]
}

// NewStore constructs a store over the given source.
func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Load fetches the initial policy. A missing policy is not recoverable:
// the service must not serve traffic with an undefined quota or amount.
func (s *Store) Load(ctx context.Context) error {
	return s.refresh(ctx)
}

// Get returns the current snapshot. Callers must not mutate it.
func (s *Store) Get() (*Policy, error) {
	p := s.current.Load()
	if p == nil {
		return nil, ErrNotLoaded
	}
	return p, nil
}

// Reload re-fetches the policy and atomically swaps the snapshot.
// In-flight requests keep whatever snapshot they already read.
func (s *Store) Reload(ctx context.Context) error {
	if err := s.refresh(ctx); err != nil {
		return err
	}
	log.Info("policy: snapshot reloaded")
	return nil
}

func (s *Store) refresh(ctx context.Context) error {
	p, err := s.source.FetchPolicy(ctx)
	if err != nil {
		return err
	}
	if err = p.Validate(); err != nil {
		return err
	}
	s.current.Store(p)
	return nil
}
