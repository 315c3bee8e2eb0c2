package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProviderPaymentRepo implements ports.ProviderPaymentRepository. The
// unique indexes on provider_reference and idempotency_key are the
// concurrency contract; everything above relies on Create losing races
// loudly via ErrUniqueViolation.
type ProviderPaymentRepo struct {
	pool Pool
}

// NewProviderPaymentRepo creates a new ProviderPaymentRepo.
func NewProviderPaymentRepo(pool Pool) *ProviderPaymentRepo {
	return &ProviderPaymentRepo{pool: pool}
}

const providerColumns = `id, provider_reference, owner_id, amount, currency, verification_status,
	raw_response, provider_transaction_id, ledger_transaction_id, signature_valid,
	signature_checked_at, idempotency_key, error, created_at, updated_at`

// Create inserts a new external payment record.
func (r *ProviderPaymentRepo) Create(ctx context.Context, rec *domain.ExternalPaymentRecord) error {
	query := `INSERT INTO provider_payments (id, provider_reference, owner_id, amount, currency, verification_status,
		raw_response, provider_transaction_id, ledger_transaction_id, signature_valid,
		signature_checked_at, idempotency_key, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.ProviderReference, rec.OwnerID, rec.Amount, rec.Currency, rec.VerificationStatus,
		rec.RawResponse, rec.ProviderTransactionID, rec.LedgerTransactionID, rec.SignatureValid,
		rec.SignatureCheckedAt, rec.IdempotencyKey, rec.Error, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrUniqueViolation
		}
		return fmt.Errorf("insert provider payment: %w", err)
	}
	return nil
}

// GetByProviderReference fetches a record by the provider's reference.
func (r *ProviderPaymentRepo) GetByProviderReference(ctx context.Context, providerReference string) (*domain.ExternalPaymentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM provider_payments WHERE provider_reference = $1`, providerColumns)
	return scanProviderPayment(r.pool.QueryRow(ctx, query, providerReference))
}

// GetByIdempotencyKey fetches a record by its idempotency key.
func (r *ProviderPaymentRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.ExternalPaymentRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM provider_payments WHERE idempotency_key = $1`, providerColumns)
	return scanProviderPayment(r.pool.QueryRow(ctx, query, key))
}

// MarkVerified links the ledger transaction within the enclosing
// database transaction.
func (r *ProviderPaymentRepo) MarkVerified(ctx context.Context, tx pgx.Tx, id uuid.UUID, ledgerTxID uuid.UUID) error {
	query := `UPDATE provider_payments
		SET verification_status = 'VERIFIED', ledger_transaction_id = $2, updated_at = NOW()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id, ledgerTxID)
	if err != nil {
		return fmt.Errorf("mark provider payment verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("provider payment not found: %s", id)
	}
	return nil
}

// MarkFailed records the failure outcome with structured error detail.
func (r *ProviderPaymentRepo) MarkFailed(ctx context.Context, id uuid.UUID, provErr domain.ProviderError) error {
	query := `UPDATE provider_payments
		SET verification_status = 'FAILED', error = $2, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, provErr)
	if err != nil {
		return fmt.Errorf("mark provider payment failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("provider payment not found: %s", id)
	}
	return nil
}

func scanProviderPayment(row pgx.Row) (*domain.ExternalPaymentRecord, error) {
	rec := &domain.ExternalPaymentRecord{}
	err := row.Scan(
		&rec.ID, &rec.ProviderReference, &rec.OwnerID, &rec.Amount, &rec.Currency, &rec.VerificationStatus,
		&rec.RawResponse, &rec.ProviderTransactionID, &rec.LedgerTransactionID, &rec.SignatureValid,
		&rec.SignatureCheckedAt, &rec.IdempotencyKey, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan provider payment: %w", err)
	}
	return rec, nil
}
