package dispense

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/artiswap/sui-faucet/internal/policy"
	"github.com/artiswap/sui-faucet/internal/quota"
)

const (
	defaultTransferTimeout = 30 * time.Second
	recordTimeout          = 10 * time.Second

	reasonTransactionFailed = "transaction_failed"
	reasonTransferTimeout   = "transfer_timeout"
)

// Policies exposes the current admission policy snapshot.
type Policies interface {
	Get() (*policy.Policy, error)
}

// Limiter consumes one quota point for a key. *quota.Limiter satisfies
// this; tests substitute fakes.
type Limiter interface {
	Consume(ctx context.Context, key string, points int64, window time.Duration) (quota.Decision, error)
}

// Transferrer performs the single settlement attempt. It returns the
// transaction digest on success. The pipeline never retries it: a
// blind retry risks a duplicate grant.
type Transferrer interface {
	Transfer(ctx context.Context, walletAddress string, amountMist int64) (string, error)
}

// Ledger appends settled outcomes. Append-only; a failure here must not
// change the caller-visible result of the transfer.
type Ledger interface {
	Record(ctx context.Context, outcome *Outcome) error
}

// Dispenser runs the admission and dispensing pipeline.
type Dispenser struct {
	policies        Policies
	origin          Limiter
	wallet          Limiter
	transfer        Transferrer
	ledger          Ledger
	transferTimeout time.Duration
	now             func() time.Time
}

// Option customizes a Dispenser.
type Option func(*Dispenser)

// WithTransferTimeout bounds the settlement wait. Expiry is recorded as
// a failed outcome, never left pending.
func WithTransferTimeout(d time.Duration) Option {
	return func(dp *Dispenser) {
		if d > 0 {
			dp.transferTimeout = d
		}
	}
}

// WithClock overrides the outcome timestamp source.
func WithClock(now func() time.Time) Option {
	return func(dp *Dispenser) {
		if now != nil {
			dp.now = now
		}
	}
}

// New constructs a Dispenser.
func New(policies Policies, origin, wallet Limiter, transfer Transferrer, ledger Ledger, opts ...Option) *Dispenser {
	d := &Dispenser{
		policies:        policies,
		origin:          origin,
		wallet:          wallet,
		transfer:        transfer,
		ledger:          ledger,
		transferTimeout: defaultTransferTimeout,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispense runs one request through the pipeline. Declines before the
// transfer step produce no ledger entry; once the transfer collaborator
// has been invoked, exactly one outcome is recorded whatever it
// reported.
func (d *Dispenser) Dispense(ctx context.Context, req Request) Result {
	m := newMachine()

	pol, err := d.policies.Get()
	if err != nil {
		log.Errorf("dispense: policy unavailable: %v", err)
		return Result{Status: StatusInternalError}
	}
	m.advance(statePolicyChecked)
	if !pol.Enabled {
		return Result{Status: StatusServiceDisabled}
	}

	originDec, err := d.origin.Consume(ctx, req.OriginKey, pol.OriginPoints, pol.Window())
	if err != nil {
		log.Errorf("dispense: origin quota check failed for %s: %v", req.OriginKey, err)
		return Result{Status: StatusInternalError}
	}
	if !originDec.Allowed {
		return Result{Status: StatusOriginQuota, RetryAfter: originDec.RetryAfter}
	}
	m.advance(stateOriginAdmitted)

	// The origin point above stays spent even if the wallet check
	// declines: a single hot wallet must not drain a shared origin's
	// allotment across many wallets.
	walletDec, err := d.wallet.Consume(ctx, req.WalletAddress, pol.WalletPoints, pol.Window())
	if err != nil {
		log.Errorf("dispense: wallet quota check failed for %s: %v", req.WalletAddress, err)
		return Result{Status: StatusInternalError}
	}
	if !walletDec.Allowed {
		return Result{Status: StatusDestinationQuota, RetryAfter: walletDec.RetryAfter}
	}
	m.advance(stateDestinationAdmitted)

	tctx, cancel := context.WithTimeout(ctx, d.transferTimeout)
	digest, transferErr := d.transfer.Transfer(tctx, req.WalletAddress, pol.AmountMist)
	cancel()
	m.advance(stateTransferAttempted)

	outcome := d.buildOutcome(req, pol.AmountMist, digest, transferErr)
	d.record(ctx, m, outcome)

	m.advance(stateResponded)
	if transferErr != nil {
		return Result{Status: StatusTransferFailed, Reason: outcome.FailureReason}
	}
	return Result{Status: StatusTransferSucceeded, TxDigest: digest}
}

func (d *Dispenser) buildOutcome(req Request, amountMist int64, digest string, transferErr error) *Outcome {
	o := &Outcome{
		ID:            uuid.New(),
		WalletAddress: req.WalletAddress,
		OriginKey:     req.OriginKey,
		AmountMist:    amountMist,
		UserAgent:     req.UserAgent,
		CreatedAt:     d.now().UTC(),
	}
	if transferErr != nil {
		o.Status = OutcomeFailed
		o.FailureReason = failureReason(transferErr)
		return o
	}
	o.Status = OutcomeSuccess
	o.TxDigest = digest
	return o
}

// record writes the outcome regardless of the caller's context state:
// the transfer already settled one way or the other, and the audit
// trail must reflect it even when the client has gone away.
func (d *Dispenser) record(ctx context.Context, m *machine, outcome *Outcome) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := d.ledger.Record(rctx, outcome); err != nil {
		log.Errorf("dispense: ledger write failed for outcome %s (wallet %s): %v",
			outcome.ID, outcome.WalletAddress, err)
	}
	m.advance(stateRecorded)
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return reasonTransferTimeout
	}
	return reasonTransactionFailed
}
