package domain

import (
	"time"

	"github.com/google/uuid"
)

// VerificationStatus represents the reconciliation state of an inbound
// provider payment.
type VerificationStatus string

const (
	VerificationStatusPending   VerificationStatus = "PENDING"
	VerificationStatusVerified  VerificationStatus = "VERIFIED"
	VerificationStatusFailed    VerificationStatus = "FAILED"
	VerificationStatusDuplicate VerificationStatus = "DUPLICATE"
)

// IsSettled reports whether the record reached an outcome that a replay
// must return unchanged.
func (s VerificationStatus) IsSettled() bool {
	return s == VerificationStatusVerified || s == VerificationStatusFailed
}

// ProviderError captures a structured failure from reconciliation.
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExternalPaymentRecord tracks one inbound provider payment through
// reconciliation. A given provider reference maps to at most one ledger
// transaction; re-processing the same idempotency key is a no-op
// returning the original result.
type ExternalPaymentRecord struct {
	ID                    uuid.UUID          `json:"id"`
	ProviderReference     string             `json:"provider_reference"` // unique
	OwnerID               uuid.UUID          `json:"owner_id"`
	Amount                int64              `json:"amount"` // minor units
	Currency              string             `json:"currency"`
	VerificationStatus    VerificationStatus `json:"verification_status"`
	RawResponse           []byte             `json:"-"` // opaque, retained for audit
	ProviderTransactionID string             `json:"provider_transaction_id,omitempty"`
	LedgerTransactionID   *uuid.UUID         `json:"ledger_transaction_id,omitempty"`
	SignatureValid        bool               `json:"signature_valid"`
	SignatureCheckedAt    *time.Time         `json:"signature_checked_at,omitempty"`
	IdempotencyKey        string             `json:"idempotency_key"`
	Error                 *ProviderError     `json:"error,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// BuildReconcileIdempotencyKey derives the fallback idempotency key when
// the provider did not supply one.
func BuildReconcileIdempotencyKey(providerReference string) string {
	return "recon:" + providerReference
}
