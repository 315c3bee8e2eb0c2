package dto

// CreateWalletRequest is the request body for wallet provisioning.
type CreateWalletRequest struct {
	Currency string `json:"currency" binding:"required,len=3"`
	DeviceID string `json:"device_id,omitempty" binding:"max=128"`
	Location string `json:"location,omitempty" binding:"max=64"`
}

// WalletResponse is the wallet representation returned to callers. The
// ciphertext and key material never appear here.
type WalletResponse struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	RiskScore int    `json:"risk_score"`
	Version   int64  `json:"version"`
	CreatedAt string `json:"created_at"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// AdjustBalanceRequest is the request body for a balance mutation.
// Delta is signed minor units: positive credits, negative debits.
type AdjustBalanceRequest struct {
	Delta          int64   `json:"delta" binding:"required"`
	Type           string  `json:"type" binding:"required,oneof=FUNDING PURCHASE ADMIN_ADJUSTMENT"`
	Reference      string  `json:"reference,omitempty" binding:"max=100"`
	IdempotencyKey *string `json:"idempotency_key,omitempty"`
	OTPCodeID      *string `json:"otp_code_id,omitempty"`
	OrderID        *string `json:"order_id,omitempty"`
	DeviceID       string  `json:"device_id,omitempty" binding:"max=128"`
}

// SetWalletStatusRequest is the admin request body for status changes.
type SetWalletStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE FROZEN SUSPENDED"`
}

// TransactionResponse is the ledger record representation.
type TransactionResponse struct {
	ID              string   `json:"id"`
	Reference       string   `json:"reference"`
	Type            string   `json:"type"`
	Amount          int64    `json:"amount"`
	Currency        string   `json:"currency"`
	PreviousBalance int64    `json:"previous_balance"`
	NewBalance      int64    `json:"new_balance"`
	Status          string   `json:"status"`
	Source          string   `json:"source"`
	FraudScore      int      `json:"fraud_score"`
	FraudFlags      []string `json:"fraud_flags,omitempty"`
	CreatedAt       string   `json:"created_at"`
	ProcessedAt     *string  `json:"processed_at,omitempty"`
}

// TransactionListResponse wraps a paginated ledger listing.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// ReverseRequest is the admin request body for reversing a completed
// transaction.
type ReverseRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// OTPIssueRequest is the request body for issuing a one-time code.
type OTPIssueRequest struct {
	Purpose        string  `json:"purpose" binding:"required,oneof=FUNDING DEDUCTION SENSITIVE_ACTION"`
	BoundReference *string `json:"bound_reference,omitempty"`
	Channel        string  `json:"channel" binding:"required,oneof=EMAIL SMS"`
}

// OTPIssueResponse returns the issued code handle. The plaintext code
// travels only through the delivery channel, never this response.
type OTPIssueResponse struct {
	CodeID    string `json:"code_id"`
	ExpiresAt string `json:"expires_at"`
}

// OTPVerifyRequest is the request body for verifying a one-time code.
type OTPVerifyRequest struct {
	CodeID string `json:"code_id" binding:"required,uuid"`
	Code   string `json:"code" binding:"required,min=4,max=10"`
}

// OTPVerifyResponse reports the verify outcome.
type OTPVerifyResponse struct {
	Outcome           string `json:"outcome"`
	AttemptsRemaining int    `json:"attempts_remaining"`
}

// FraudResolveRequest is the admin request body for resolving a signal.
type FraudResolveRequest struct {
	Notes string `json:"notes" binding:"required,max=1000"`
}

// FraudLogResponse is one fraud signal.
type FraudLogResponse struct {
	ID                   string  `json:"id"`
	OwnerID              string  `json:"owner_id"`
	Reason               string  `json:"reason"`
	Score                int     `json:"score"`
	Action               string  `json:"action"`
	TransactionReference *string `json:"transaction_reference,omitempty"`
	Resolved             bool    `json:"resolved"`
	CreatedAt            string  `json:"created_at"`
}

// ReconcileResponse is the outcome of one provider webhook delivery.
type ReconcileResponse struct {
	ProviderReference   string  `json:"provider_reference"`
	VerificationStatus  string  `json:"verification_status"`
	LedgerTransactionID *string `json:"ledger_transaction_id,omitempty"`
}
