package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of ledger event.
type TransactionType string

const (
	TransactionTypeFunding         TransactionType = "FUNDING"
	TransactionTypePurchase        TransactionType = "PURCHASE"
	TransactionTypeRefund          TransactionType = "REFUND"
	TransactionTypeAdminAdjustment TransactionType = "ADMIN_ADJUSTMENT"
)

// TransactionStatus represents the lifecycle state of a ledger entry.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusReversed  TransactionStatus = "REVERSED"
)

// TransactionSource identifies where the funds movement originated.
type TransactionSource string

const (
	SourceWallet           TransactionSource = "WALLET"
	SourceExternalProvider TransactionSource = "EXTERNAL_PROVIDER"
	SourceDirectPayment    TransactionSource = "DIRECT_PAYMENT"
	SourceAdmin            TransactionSource = "ADMIN"
)

// Transaction is an immutable, append-only audit record of a single
// balance-affecting event. Balance snapshots are written once and never
// mutated; corrections are new records.
type Transaction struct {
	ID                    uuid.UUID         `json:"id"`
	Reference             string            `json:"reference"` // globally unique
	OwnerID               uuid.UUID         `json:"owner_id"`
	WalletID              uuid.UUID         `json:"wallet_id"`
	Type                  TransactionType   `json:"type"`
	Amount                int64             `json:"amount"` // minor units, >= 0
	Currency              string            `json:"currency"`
	PreviousBalance       int64             `json:"previous_balance"`
	NewBalance            int64             `json:"new_balance"`
	Status                TransactionStatus `json:"status"`
	Source                TransactionSource `json:"source"`
	OrderID               *uuid.UUID        `json:"order_id,omitempty"`
	RefundOfTransactionID *uuid.UUID        `json:"refund_of_transaction_id,omitempty"`
	FraudScore            int               `json:"fraud_score"`
	FraudFlags            []string          `json:"fraud_flags,omitempty"`
	ClientIP              string            `json:"client_ip,omitempty"`
	DeviceID              string            `json:"device_id,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
	ProcessedAt           *time.Time        `json:"processed_at,omitempty"`
}

// IsTerminal returns true if the transaction is in a final state.
// Terminal states never change except COMPLETED -> REVERSED via an
// explicit refund event.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusReversed
}

// IsReversible returns true if this transaction can be reversed by a refund.
func (t *Transaction) IsReversible() bool {
	return t.Status == TransactionStatusCompleted &&
		t.Type != TransactionTypeRefund
}
