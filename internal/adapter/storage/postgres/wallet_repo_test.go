package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(ownerID uuid.UUID) *domain.Wallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Wallet{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		Currency:         "USD",
		EncryptedBalance: "aabb:ccdd",
		Encryption: domain.EncryptionMeta{
			Algorithm:  "AES-256-GCM",
			KDF:        "PBKDF2-SHA256",
			Iterations: 150000,
			SaltHex:    "0011223344556677",
		},
		Status:        domain.WalletStatusActive,
		LastUpdatedBy: domain.ActorSystem,
		Version:       1,
		Origin:        domain.OriginMetadata{IPAddress: "10.0.0.1", DeviceID: "dev-1"},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func walletTestColumns() []string {
	return []string{"id", "owner_id", "currency", "encrypted_balance", "encryption_meta", "status",
		"last_updated_by", "risk_score", "version", "origin", "created_at", "updated_at"}
}

func walletRow(w *domain.Wallet) *pgxmock.Rows {
	return pgxmock.NewRows(walletTestColumns()).AddRow(
		w.ID, w.OwnerID, w.Currency, w.EncryptedBalance, w.Encryption, w.Status,
		w.LastUpdatedBy, w.RiskScore, w.Version, w.Origin, w.CreatedAt, w.UpdatedAt,
	)
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.OwnerID, w.Currency, w.EncryptedBalance, w.Encryption, w.Status,
			w.LastUpdatedBy, w.RiskScore, w.Version, w.Origin, w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), w)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByOwnerID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs(w.OwnerID).
		WillReturnRows(walletRow(w))

	result, err := repo.GetByOwnerID(context.Background(), w.OwnerID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.Equal(t, w.EncryptedBalance, result.EncryptedBalance)
	assert.Equal(t, w.Encryption.SaltHex, result.Encryption.SaltHex)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByOwnerID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	ownerID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id").
		WithArgs(ownerID).
		WillReturnRows(pgxmock.NewRows(walletTestColumns()))

	result, err := repo.GetByOwnerID(context.Background(), ownerID)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByOwnerIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id .+ FOR UPDATE").
		WithArgs(w.OwnerID).
		WillReturnRows(walletRow(w))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByOwnerIDForUpdate(context.Background(), tx, w.OwnerID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wallets").
		WithArgs("new-cipher", domain.ActorUserAction, walletID, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, ports.UpdateBalanceParams{
		WalletID:         walletID,
		EncryptedBalance: "new-cipher",
		UpdatedBy:        domain.ActorUserAction,
		ExpectedVersion:  3,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalance_VersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()

	mock.ExpectBegin()
	// Version moved underneath us: zero rows updated.
	mock.ExpectExec("UPDATE wallets").
		WithArgs("new-cipher", domain.ActorUserAction, walletID, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateBalance(context.Background(), tx, ports.UpdateBalanceParams{
		WalletID:         walletID,
		EncryptedBalance: "new-cipher",
		UpdatedBy:        domain.ActorUserAction,
		ExpectedVersion:  3,
	})
	assert.ErrorIs(t, err, ports.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_SetStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()

	mock.ExpectExec("UPDATE wallets SET status").
		WithArgs(domain.WalletStatusFrozen, domain.ActorAdmin, walletID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.SetStatus(context.Background(), walletID, domain.WalletStatusFrozen, domain.ActorAdmin)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateRiskScore(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()

	mock.ExpectExec("UPDATE wallets SET risk_score").
		WithArgs(65, walletID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.UpdateRiskScore(context.Background(), walletID, 65)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
