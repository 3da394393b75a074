// Package dispense orchestrates one faucet grant: policy check, dual
// quota admission, the transfer attempt, and the ledger write.
package dispense

import (
	"time"

	"github.com/google/uuid"
)

// Status is the caller-visible result taxonomy.
type Status string

const (
	StatusServiceDisabled   Status = "service-disabled"
	StatusOriginQuota       Status = "origin-quota-exceeded"
	StatusDestinationQuota  Status = "destination-quota-exceeded"
	StatusTransferSucceeded Status = "transfer-succeeded"
	StatusTransferFailed    Status = "transfer-failed"
	StatusInternalError     Status = "internal-error"
)

// Request is one inbound dispense attempt. It is never persisted.
type Request struct {
	WalletAddress string
	OriginKey     string
	UserAgent     string
}

// Outcome is the settled record of one attempted transfer. It is
// written to the ledger exactly once and never mutated afterwards.
type Outcome struct {
	ID            uuid.UUID
	WalletAddress string
	OriginKey     string
	TxDigest      string
	AmountMist    int64
	Status        string
	FailureReason string
	UserAgent     string
	CreatedAt     time.Time
}

const (
	// OutcomeSuccess and OutcomeFailed are the only ledger statuses.
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Result is what the pipeline reports back to the transport layer.
type Result struct {
	Status Status
	// RetryAfter is set on quota declines.
	RetryAfter time.Duration
	// TxDigest is set when Status is StatusTransferSucceeded.
	TxDigest string
	// Reason is set when Status is StatusTransferFailed.
	Reason string
}
