package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPaymentRecord(ownerID uuid.UUID) *domain.ExternalPaymentRecord {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.ExternalPaymentRecord{
		ID:                    uuid.New(),
		ProviderReference:     "PROV-" + uuid.NewString()[:8],
		OwnerID:               ownerID,
		Amount:                5000,
		Currency:              "USD",
		VerificationStatus:    domain.VerificationStatusPending,
		RawResponse:           []byte(`{"status":"SUCCESS"}`),
		ProviderTransactionID: "prov-tx-1",
		SignatureValid:        true,
		SignatureCheckedAt:    &now,
		IdempotencyKey:        domain.BuildReconcileIdempotencyKey("PROV-X"),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func providerTestColumns() []string {
	return []string{"id", "provider_reference", "owner_id", "amount", "currency", "verification_status",
		"raw_response", "provider_transaction_id", "ledger_transaction_id", "signature_valid",
		"signature_checked_at", "idempotency_key", "error", "created_at", "updated_at"}
}

func providerRow(rec *domain.ExternalPaymentRecord) *pgxmock.Rows {
	return pgxmock.NewRows(providerTestColumns()).AddRow(
		rec.ID, rec.ProviderReference, rec.OwnerID, rec.Amount, rec.Currency, rec.VerificationStatus,
		rec.RawResponse, rec.ProviderTransactionID, rec.LedgerTransactionID, rec.SignatureValid,
		rec.SignatureCheckedAt, rec.IdempotencyKey, rec.Error, rec.CreatedAt, rec.UpdatedAt,
	)
}

func TestProviderPaymentRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProviderPaymentRepo(mock)
	rec := newTestPaymentRecord(uuid.New())

	mock.ExpectExec("INSERT INTO provider_payments").
		WithArgs(rec.ID, rec.ProviderReference, rec.OwnerID, rec.Amount, rec.Currency, rec.VerificationStatus,
			rec.RawResponse, rec.ProviderTransactionID, rec.LedgerTransactionID, rec.SignatureValid,
			rec.SignatureCheckedAt, rec.IdempotencyKey, rec.Error, rec.CreatedAt, rec.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), rec)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderPaymentRepo_Create_DuplicateReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProviderPaymentRepo(mock)
	rec := newTestPaymentRecord(uuid.New())

	mock.ExpectExec("INSERT INTO provider_payments").
		WithArgs(rec.ID, rec.ProviderReference, rec.OwnerID, rec.Amount, rec.Currency, rec.VerificationStatus,
			rec.RawResponse, rec.ProviderTransactionID, rec.LedgerTransactionID, rec.SignatureValid,
			rec.SignatureCheckedAt, rec.IdempotencyKey, rec.Error, rec.CreatedAt, rec.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "provider_payments_provider_reference_key"})

	err = repo.Create(context.Background(), rec)
	assert.ErrorIs(t, err, ports.ErrUniqueViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderPaymentRepo_GetByProviderReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProviderPaymentRepo(mock)
	rec := newTestPaymentRecord(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM provider_payments WHERE provider_reference").
		WithArgs(rec.ProviderReference).
		WillReturnRows(providerRow(rec))

	result, err := repo.GetByProviderReference(context.Background(), rec.ProviderReference)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, rec.ID, result.ID)
	assert.Equal(t, rec.RawResponse, result.RawResponse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderPaymentRepo_GetByIdempotencyKey_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProviderPaymentRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM provider_payments WHERE idempotency_key").
		WithArgs("recon:unknown").
		WillReturnRows(pgxmock.NewRows(providerTestColumns()))

	result, err := repo.GetByIdempotencyKey(context.Background(), "recon:unknown")
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderPaymentRepo_MarkVerified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProviderPaymentRepo(mock)
	recID := uuid.New()
	ledgerTxID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE provider_payments").
		WithArgs(recID, ledgerTxID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkVerified(context.Background(), tx, recID, ledgerTxID)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderPaymentRepo_MarkFailed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProviderPaymentRepo(mock)
	recID := uuid.New()
	provErr := domain.ProviderError{Code: "RCN_003", Message: "amount mismatch"}

	mock.ExpectExec("UPDATE provider_payments").
		WithArgs(recID, provErr).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.MarkFailed(context.Background(), recID, provErr)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
