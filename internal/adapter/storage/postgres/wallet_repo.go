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

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

const walletColumns = `id, owner_id, currency, encrypted_balance, encryption_meta, status,
	last_updated_by, risk_score, version, origin, created_at, updated_at`

// Create inserts a new wallet. Returns ports.ErrUniqueViolation when the
// owner already has one.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, owner_id, currency, encrypted_balance, encryption_meta, status,
		last_updated_by, risk_score, version, origin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.OwnerID, w.Currency, w.EncryptedBalance, w.Encryption, w.Status,
		w.LastUpdatedBy, w.RiskScore, w.Version, w.Origin, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrUniqueViolation
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByOwnerID fetches a wallet by owner (non-locking read).
func (r *WalletRepo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE owner_id = $1`, walletColumns)
	return scanWallet(r.pool.QueryRow(ctx, query, ownerID))
}

// GetByOwnerIDForUpdate fetches a wallet by owner with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByOwnerIDForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) (*domain.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE owner_id = $1 FOR UPDATE`, walletColumns)
	return scanWallet(tx.QueryRow(ctx, query, ownerID))
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := fmt.Sprintf(`SELECT %s FROM wallets WHERE id = $1 FOR UPDATE`, walletColumns)
	return scanWallet(tx.QueryRow(ctx, query, id))
}

// UpdateBalance writes the new ciphertext and bumps the version, guarded
// by the expected version. Zero rows affected means a concurrent writer
// won the race.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, params ports.UpdateBalanceParams) error {
	query := `UPDATE wallets
		SET encrypted_balance = $1, last_updated_by = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4`

	tag, err := tx.Exec(ctx, query,
		params.EncryptedBalance, params.UpdatedBy, params.WalletID, params.ExpectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	return nil
}

// SetStatus transitions the wallet lifecycle state.
func (r *WalletRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.WalletStatus, actor domain.ActorTag) error {
	query := `UPDATE wallets SET status = $1, last_updated_by = $2, updated_at = NOW() WHERE id = $3`

	tag, err := r.pool.Exec(ctx, query, status, actor, id)
	if err != nil {
		return fmt.Errorf("set wallet status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", id)
	}
	return nil
}

// UpdateRiskScore writes the latest fraud assessment score onto the wallet.
func (r *WalletRepo) UpdateRiskScore(ctx context.Context, id uuid.UUID, score int) error {
	query := `UPDATE wallets SET risk_score = $1, updated_at = NOW() WHERE id = $2`

	_, err := r.pool.Exec(ctx, query, score, id)
	if err != nil {
		return fmt.Errorf("update risk score: %w", err)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.Currency, &w.EncryptedBalance, &w.Encryption, &w.Status,
		&w.LastUpdatedBy, &w.RiskScore, &w.Version, &w.Origin, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
