package ports

import (
	"context"
	"time"

	"wallet-vault/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BalanceCipher encrypts and decrypts wallet balances. Balances are
// int64 minor units serialized as decimal text; keys are derived from
// the password and the wallet's per-wallet salt via a slow KDF. Every
// encryption draws a fresh nonce so identical balances never produce
// identical ciphertext.
type BalanceCipher interface {
	Encrypt(balance int64, password string, meta *domain.EncryptionMeta) (string, error)
	// Decrypt accepts the current ciphertext layout and, when the
	// primary parse fails, one legacy layout for wallets written before
	// per-wallet salts.
	Decrypt(ciphertext string, password string, meta *domain.EncryptionMeta) (int64, error)
	// NewMeta draws a fresh random salt for a new wallet.
	NewMeta() (*domain.EncryptionMeta, error)
}

// SignatureService handles HMAC-SHA256 signing and verification of
// provider webhook payloads.
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// HashService handles one-way hashing of OTP codes (Argon2id).
type HashService interface {
	Hash(code string) (string, error)
	Verify(code string, hash string) (bool, error)
}

// TokenService handles the caller-identity JWT at the delivery boundary.
type TokenService interface {
	Generate(userID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ReplayGuard short-circuits rapid duplicate webhook deliveries.
type ReplayGuard interface {
	// FirstSeen atomically records the token, returning true if it was
	// not seen before within the TTL window.
	FirstSeen(ctx context.Context, scope string, token string, ttl time.Duration) (bool, error)
}

// GeoResolver maps an IP address to a coarse location for the
// new-location fraud signal. Implementations may be nil-configured, in
// which case the signal falls back to raw IP comparison.
type GeoResolver interface {
	CountryForIP(ip string) (string, error)
}

// --- Service Ports (Business Logic) ---

// WalletService owns the wallet entity and the atomic mutation protocol.
type WalletService interface {
	Create(ctx context.Context, ownerID uuid.UUID, currency string, origin domain.OriginMetadata) (*domain.Wallet, error)
	GetBalance(ctx context.Context, ownerID uuid.UUID, credential string) (int64, string, error) // balance, currency
	AdjustBalance(ctx context.Context, req AdjustRequest) (*domain.Transaction, error)
	SetStatus(ctx context.Context, ownerID uuid.UUID, status domain.WalletStatus, actor domain.ActorTag) error
}

// AdjustRequest holds validated input for a balance mutation.
type AdjustRequest struct {
	OwnerID        uuid.UUID
	Delta          int64 // signed minor units; positive credits, negative debits
	Type           domain.TransactionType
	Source         domain.TransactionSource
	Actor          domain.ActorTag
	Credential     string // cipher password; empty means the system credential
	Reference      string // generated when empty
	IdempotencyKey *string
	OTPCodeID      *uuid.UUID
	OrderID        *uuid.UUID
	ClientIP       string
	DeviceID       string
}

// LedgerService owns the append-only transaction ledger.
type LedgerService interface {
	// Record writes a ledger entry inside the caller's database
	// transaction: COMPLETED for synchronous internal events, PENDING
	// for provider-initiated ones.
	Record(ctx context.Context, dbTx pgx.Tx, event LedgerEvent) (*domain.Transaction, error)
	// Reverse creates a linked REFUND transaction, credits the wallet
	// back, and moves the original to REVERSED. The original must
	// currently be COMPLETED.
	Reverse(ctx context.Context, originalReference string, reason string) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// LedgerEvent carries everything needed for one audit record.
type LedgerEvent struct {
	Reference       string
	OwnerID         uuid.UUID
	WalletID        uuid.UUID
	Type            domain.TransactionType
	Amount          int64 // >= 0
	Currency        string
	PreviousBalance int64
	NewBalance      int64
	Source          domain.TransactionSource
	OrderID         *uuid.UUID
	RefundOf        *uuid.UUID
	FraudScore      int
	FraudFlags      []string
	ClientIP        string
	DeviceID        string
	Pending         bool
}

// OTPService owns issuance and verification of one-time codes.
type OTPService interface {
	Issue(ctx context.Context, req OTPIssueRequest) (*OTPIssueResult, error)
	Verify(ctx context.Context, codeID uuid.UUID, supplied string) (*OTPVerifyResult, error)
	// AssertConsumed checks that the code was successfully verified for
	// this owner, purpose, and bound reference. Used by the wallet
	// store when fraud scoring demanded an OTP.
	AssertConsumed(ctx context.Context, codeID uuid.UUID, ownerID uuid.UUID, purpose domain.OTPPurpose, boundReference string) error
	// CleanupExpired removes codes past their expiry. Returns the
	// number deleted.
	CleanupExpired(ctx context.Context) (int64, error)
}

// OTPIssueRequest holds input for issuing a code.
type OTPIssueRequest struct {
	OwnerID        uuid.UUID
	Purpose        domain.OTPPurpose
	BoundReference *string
	Channel        domain.OTPChannel
}

// OTPIssueResult returns the code id and the plaintext code. The
// plaintext goes to the delivery collaborator and is never stored.
type OTPIssueResult struct {
	CodeID    uuid.UUID
	Code      string
	ExpiresAt time.Time
}

// OTPOutcome is the result class of a verify call.
type OTPOutcome string

const (
	OTPOutcomeSuccess     OTPOutcome = "SUCCESS"
	OTPOutcomeMismatch    OTPOutcome = "MISMATCH"
	OTPOutcomeExpired     OTPOutcome = "EXPIRED"
	OTPOutcomeLocked      OTPOutcome = "LOCKED"
	OTPOutcomeAlreadyUsed OTPOutcome = "ALREADY_USED"
)

// OTPVerifyResult reports the verify outcome and remaining attempts.
type OTPVerifyResult struct {
	Outcome           OTPOutcome
	AttemptsRemaining int
}

// FraudService scores mutation requests and records detected signals.
type FraudService interface {
	Assess(ctx context.Context, input FraudInput) (*FraudAssessment, error)
	// HasBlockingHold reports whether unresolved BLOCK/ESCALATE logs
	// veto mutations for this owner.
	HasBlockingHold(ctx context.Context, ownerID uuid.UUID) (bool, error)
	Resolve(ctx context.Context, logID uuid.UUID, resolverID uuid.UUID, notes string) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.FraudLog, error)
}

// FraudInput carries the request context to score.
type FraudInput struct {
	OwnerID   uuid.UUID
	Amount    int64 // absolute minor units
	Reference string
	ClientIP  string
	DeviceID  string
}

// FraudAssessment is the combined scoring result.
type FraudAssessment struct {
	Score  int // 0..100 capped
	Flags  []string
	Action domain.FraudAction
}

// ReconcileService matches inbound provider webhooks to ledger
// transactions idempotently.
type ReconcileService interface {
	Reconcile(ctx context.Context, req ReconcileRequest) (*domain.ExternalPaymentRecord, error)
}

// ReconcileRequest holds one inbound provider notification.
type ReconcileRequest struct {
	ProviderReference string
	RawResponse       []byte // opaque signed payload, retained for audit
	Signature         string
	IdempotencyKey    string // falls back to the provider reference when empty
}
