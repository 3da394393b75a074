package dispense

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artiswap/sui-faucet/internal/policy"
	"github.com/artiswap/sui-faucet/internal/quota"
)

// sharedStore reproduces the Redis script semantics so the full
// pipeline can be exercised with real limiters.
type sharedStore struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]*sharedEntry
}

type sharedEntry struct {
	remaining int64
	expiresAt time.Time
}

func newSharedStore() *sharedStore {
	return &sharedStore{now: time.Unix(1_700_000_000, 0), entries: make(map[string]*sharedEntry)}
}

func (s *sharedStore) Consume(_ context.Context, key string, points int64, window time.Duration) (quota.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(s.now) {
		entry = &sharedEntry{remaining: points, expiresAt: s.now.Add(window)}
		s.entries[key] = entry
	}
	if entry.remaining > 0 {
		entry.remaining--
		return quota.Decision{Allowed: true, Remaining: entry.remaining}, nil
	}
	return quota.Decision{RetryAfter: entry.expiresAt.Sub(s.now)}, nil
}

// TestScenarioSingleDailyGrant walks the documented policy
// {originPoints:1, walletPoints:1, window:86400s, amount:1000}: the
// first request settles, a second from the same origin to a different
// wallet declines on origin quota with a day-scale retry hint and
// leaves no ledger trace.
func TestScenarioSingleDailyGrant(t *testing.T) {
	store := newSharedStore()
	pol := &policy.Policy{
		CooldownSeconds: 86400,
		OriginPoints:    1,
		WalletPoints:    1,
		AmountMist:      1000,
		Enabled:         true,
	}
	transfer := &fakeTransfer{digest: "D1-digest"}
	led := &fakeLedger{}
	d := New(
		&fakePolicies{pol: pol},
		quota.NewLimiter(store, "faucet_ip"),
		quota.NewLimiter(store, "faucet_wallet"),
		transfer, led,
	)
	ctx := context.Background()

	walletD1 := "0x" + strings.Repeat("1", 64)
	walletD2 := "0x" + strings.Repeat("2", 64)

	resultA := d.Dispense(ctx, Request{WalletAddress: walletD1, OriginKey: "198.51.100.1"})
	if resultA.Status != StatusTransferSucceeded {
		t.Fatalf("request A: status = %s, want %s", resultA.Status, StatusTransferSucceeded)
	}
	if len(led.outcomes) != 1 {
		t.Fatalf("request A: ledger entries = %d, want 1", len(led.outcomes))
	}
	if o := led.outcomes[0]; o.WalletAddress != walletD1 || o.Status != OutcomeSuccess || o.AmountMist != 1000 {
		t.Errorf("request A outcome = %+v", o)
	}

	resultB := d.Dispense(ctx, Request{WalletAddress: walletD2, OriginKey: "198.51.100.1"})
	if resultB.Status != StatusOriginQuota {
		t.Fatalf("request B: status = %s, want %s", resultB.Status, StatusOriginQuota)
	}
	if got := resultB.RetryAfter; got != 86400*time.Second {
		t.Errorf("request B: retry hint = %v, want 86400s", got)
	}
	if len(led.outcomes) != 1 {
		t.Errorf("request B must not add a ledger entry, have %d", len(led.outcomes))
	}
	if transfer.calls != 1 {
		t.Errorf("transfer attempts = %d, want 1", transfer.calls)
	}
}
