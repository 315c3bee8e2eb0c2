package ports

import (
	"context"
	"errors"
	"time"

	"wallet-vault/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrVersionConflict is returned by version-checked writes when the row
// was modified by a concurrent writer. The caller decides whether to
// re-fetch and retry; nothing retries automatically.
var ErrVersionConflict = errors.New("version conflict: row was modified concurrently")

// ErrUniqueViolation is returned by inserts that hit a uniqueness
// constraint (owner wallet, transaction reference, provider reference,
// idempotency key).
var ErrUniqueViolation = errors.New("unique constraint violation")

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks: the
// FOR UPDATE load is the per-wallet serialization point and the
// version-checked update is the conflict detector.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByOwnerIDForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// UpdateBalance persists a new ciphertext and bumps the version.
	// Returns ErrVersionConflict if ExpectedVersion no longer matches.
	UpdateBalance(ctx context.Context, tx pgx.Tx, params UpdateBalanceParams) error
	SetStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus, actor domain.ActorTag) error
	UpdateRiskScore(ctx context.Context, id uuid.UUID, score int) error
}

// UpdateBalanceParams holds the version-checked wallet write.
type UpdateBalanceParams struct {
	WalletID         uuid.UUID
	EncryptedBalance string
	UpdatedBy        domain.ActorTag
	ExpectedVersion  int64
}

// TransactionRepository defines persistence operations for the
// append-only ledger.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	// UpdateStatus moves a record along the allowed status path: PENDING
	// to any terminal status, or COMPLETED to REVERSED. Returns
	// ErrVersionConflict if the record is not in the required prior state.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error
	CheckRefundExists(ctx context.Context, originalTxID uuid.UUID) (bool, error)
	// Fraud-signal queries
	CountCompletedSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int, error)
	RecentAggregate(ctx context.Context, ownerID uuid.UUID, limit int) (*TransactionAggregate, error)
	// Audit queries
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionAggregate summarizes an owner's recent completed
// transactions for deviation scoring.
type TransactionAggregate struct {
	Count         int64
	AverageAmount int64
	LastCreatedAt *time.Time
}

// TransactionListParams holds filter + pagination for audit listings.
type TransactionListParams struct {
	OwnerID  uuid.UUID
	Status   *domain.TransactionStatus
	Type     *domain.TransactionType
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// OTPRepository defines persistence for one-time codes. Attempt counting
// and the used-flag transition are single conditional updates so parallel
// verifies cannot double-consume a code or slip past the lockout.
type OTPRepository interface {
	Create(ctx context.Context, code *domain.OneTimeCode) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.OneTimeCode, error)
	// RegisterFailedAttempt atomically increments the attempt counter,
	// setting the locked flag on the crossing attempt. Returns the
	// post-increment attempt count and whether the code is now locked.
	RegisterFailedAttempt(ctx context.Context, id uuid.UUID, lockedUntil time.Time) (attempts int, locked bool, err error)
	// MarkUsed consumes the code. Returns false when the code was
	// already consumed by a concurrent verify.
	MarkUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) (bool, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// FraudLogRepository defines persistence for detected fraud signals.
type FraudLogRepository interface {
	Create(ctx context.Context, log *domain.FraudLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FraudLog, error)
	// HasUnresolvedBlocking reports whether the owner has an unresolved
	// BLOCK or ESCALATE log vetoing further mutations.
	HasUnresolvedBlocking(ctx context.Context, ownerID uuid.UUID) (bool, error)
	Resolve(ctx context.Context, id uuid.UUID, resolverID uuid.UUID, notes string) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.FraudLog, error)
}

// ProviderPaymentRepository defines persistence for external payment
// records. Uniqueness of provider reference and idempotency key is
// enforced by the store, not in process, so concurrent reconciler
// instances stay correct.
type ProviderPaymentRepository interface {
	// Create inserts a new record. Returns ErrUniqueViolation when the
	// provider reference or idempotency key already exists.
	Create(ctx context.Context, record *domain.ExternalPaymentRecord) error
	GetByProviderReference(ctx context.Context, providerReference string) (*domain.ExternalPaymentRecord, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.ExternalPaymentRecord, error)
	// MarkVerified links the ledger transaction within the enclosing
	// database transaction so credit and record settle together.
	MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID, ledgerTxID uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, provErr domain.ProviderError) error
}

// IdempotencyRepository defines persistence for idempotency logs (the
// durable layer backing the Redis fast path).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
