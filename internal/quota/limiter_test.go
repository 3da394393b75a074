package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memStore mirrors the Redis script semantics in memory: full allotment
// on first use, atomic decrement, non-extending window on rejection.
type memStore struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]*memEntry
	err     error
}

type memEntry struct {
	remaining int64
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{now: time.Unix(1_700_000_000, 0), entries: make(map[string]*memEntry)}
}

func (s *memStore) advance(d time.Duration) {
	s.mu.Lock()
	s.now = s.now.Add(d)
	s.mu.Unlock()
}

func (s *memStore) Consume(_ context.Context, key string, points int64, window time.Duration) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Decision{}, s.err
	}
	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(s.now) {
		entry = &memEntry{remaining: points, expiresAt: s.now.Add(window)}
		s.entries[key] = entry
	}
	if entry.remaining > 0 {
		entry.remaining--
		return Decision{Allowed: true, Remaining: entry.remaining}, nil
	}
	return Decision{RetryAfter: entry.expiresAt.Sub(s.now)}, nil
}

func TestLimiterExhaustsAndResets(t *testing.T) {
	store := newMemStore()
	limiter := NewLimiter(store, "faucet_ip")
	ctx := context.Background()
	window := 24 * time.Hour

	for i := 0; i < 3; i++ {
		d, err := limiter.Consume(ctx, "10.0.0.1", 3, window)
		if err != nil {
			t.Fatalf("consume %d failed: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("consume %d: expected admit, got reject", i)
		}
		if d.Remaining != int64(2-i) {
			t.Errorf("consume %d: remaining = %d, want %d", i, d.Remaining, 2-i)
		}
	}

	d, err := limiter.Consume(ctx, "10.0.0.1", 3, window)
	if err != nil {
		t.Fatalf("4th consume failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected 4th consume within window to be rejected")
	}
	if d.RetryAfter != window {
		t.Errorf("retry hint = %v, want %v", d.RetryAfter, window)
	}

	store.advance(window + time.Second)
	d, err = limiter.Consume(ctx, "10.0.0.1", 3, window)
	if err != nil {
		t.Fatalf("consume after window failed: %v", err)
	}
	if !d.Allowed || d.Remaining != 2 {
		t.Errorf("after window: got %+v, want full fresh allotment", d)
	}
}

func TestLimiterRejectionDoesNotExtendWindow(t *testing.T) {
	store := newMemStore()
	limiter := NewLimiter(store, "faucet_ip")
	ctx := context.Background()
	window := time.Hour

	if _, err := limiter.Consume(ctx, "k", 1, window); err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	store.advance(40 * time.Minute)
	d, err := limiter.Consume(ctx, "k", 1, window)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected rejection inside window")
	}
	if d.RetryAfter != 20*time.Minute {
		t.Errorf("retry hint = %v, want 20m (window measured from first use)", d.RetryAfter)
	}

	// A second failed attempt must not push the unlock time out.
	store.advance(10 * time.Minute)
	d, err = limiter.Consume(ctx, "k", 1, window)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("expected rejection inside window")
	}
	if d.RetryAfter != 10*time.Minute {
		t.Errorf("retry hint = %v, want 10m", d.RetryAfter)
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	store := newMemStore()
	limiter := NewLimiter(store, "faucet_wallet")
	ctx := context.Background()

	if d, _ := limiter.Consume(ctx, "a", 1, time.Hour); !d.Allowed {
		t.Fatal("key a should be admitted")
	}
	if d, _ := limiter.Consume(ctx, "b", 1, time.Hour); !d.Allowed {
		t.Fatal("key b has its own allotment")
	}
	if d, _ := limiter.Consume(ctx, "a", 1, time.Hour); d.Allowed {
		t.Fatal("key a should be exhausted")
	}
}

func TestLimiterPrefixesIsolateDimensions(t *testing.T) {
	store := newMemStore()
	origin := NewLimiter(store, "faucet_ip")
	wallet := NewLimiter(store, "faucet_wallet")
	ctx := context.Background()

	if d, _ := origin.Consume(ctx, "same-key", 1, time.Hour); !d.Allowed {
		t.Fatal("origin consume should be admitted")
	}
	if d, _ := wallet.Consume(ctx, "same-key", 1, time.Hour); !d.Allowed {
		t.Fatal("wallet dimension must not share the origin counter")
	}
}

func TestLimiterZeroAllotmentRejects(t *testing.T) {
	store := newMemStore()
	limiter := NewLimiter(store, "faucet_ip")

	d, err := limiter.Consume(context.Background(), "k", 0, time.Hour)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}
	if d.Allowed {
		t.Fatal("zero allotment must reject")
	}
	if d.RetryAfter != time.Hour {
		t.Errorf("retry hint = %v, want the full window", d.RetryAfter)
	}
	if len(store.entries) != 0 {
		t.Error("zero allotment must not create counter state")
	}
}

func TestLimiterFailsClosedOnStoreError(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	limiter := NewLimiter(store, "faucet_ip")

	_, err := limiter.Consume(context.Background(), "k", 1, time.Hour)
	if err == nil {
		t.Fatal("expected error when the store is unreachable")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("error = %v, want ErrStoreUnavailable", err)
	}
}
