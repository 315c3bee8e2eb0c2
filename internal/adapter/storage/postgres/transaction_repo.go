package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, reference, owner_id, wallet_id, tx_type, amount, currency,
	previous_balance, new_balance, status, source, order_id, refund_of_transaction_id,
	fraud_score, fraud_flags, client_ip, device_id, created_at, processed_at`

// Create inserts a new ledger record within a database transaction.
// Returns ports.ErrUniqueViolation when the reference already exists.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, reference, owner_id, wallet_id, tx_type, amount, currency,
		previous_balance, new_balance, status, source, order_id, refund_of_transaction_id,
		fraud_score, fraud_flags, client_ip, device_id, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.Reference, t.OwnerID, t.WalletID, t.Type, t.Amount, t.Currency,
		t.PreviousBalance, t.NewBalance, t.Status, t.Source, t.OrderID, t.RefundOfTransactionID,
		t.FraudScore, t.FraudFlags, t.ClientIP, t.DeviceID, t.CreatedAt, t.ProcessedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrUniqueViolation
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a ledger record by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1`, transactionColumns)
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByReference fetches a ledger record by its globally unique reference.
func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE reference = $1`, transactionColumns)
	return scanTransaction(r.pool.QueryRow(ctx, query, reference))
}

// UpdateStatus moves a record along the allowed status path. The guard
// is in the WHERE clause so a record already past the required prior
// state affects zero rows and surfaces as ErrVersionConflict.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TransactionStatus) error {
	query := `UPDATE transactions
		SET status = $1, processed_at = COALESCE(processed_at, NOW())
		WHERE id = $2 AND (status = 'PENDING' OR (status = 'COMPLETED' AND $1 = 'REVERSED'))`

	tag, err := tx.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	return nil
}

// CheckRefundExists checks if a non-failed refund already points at the
// given original transaction.
func (r *TransactionRepo) CheckRefundExists(ctx context.Context, originalTxID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions
		WHERE refund_of_transaction_id = $1 AND tx_type = 'REFUND' AND status != 'FAILED')`

	var exists bool
	err := r.pool.QueryRow(ctx, query, originalTxID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check refund exists: %w", err)
	}
	return exists, nil
}

// CountCompletedSince counts an owner's completed transactions created
// at or after the given instant.
func (r *TransactionRepo) CountCompletedSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM transactions
		WHERE owner_id = $1 AND status = 'COMPLETED' AND created_at >= $2`

	var count int
	err := r.pool.QueryRow(ctx, query, ownerID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed transactions: %w", err)
	}
	return count, nil
}

// RecentAggregate summarizes the owner's last N completed transactions.
func (r *TransactionRepo) RecentAggregate(ctx context.Context, ownerID uuid.UUID, limit int) (*ports.TransactionAggregate, error) {
	query := `SELECT COUNT(*), COALESCE(AVG(amount), 0)::BIGINT, MAX(created_at)
		FROM (SELECT amount, created_at FROM transactions
			WHERE owner_id = $1 AND status = 'COMPLETED'
			ORDER BY created_at DESC LIMIT $2) recent`

	agg := &ports.TransactionAggregate{}
	err := r.pool.QueryRow(ctx, query, ownerID, limit).Scan(
		&agg.Count, &agg.AverageAmount, &agg.LastCreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate recent transactions: %w", err)
	}
	return agg, nil
}

// List fetches ledger records with filtering and pagination.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIdx))
	args = append(args, params.OwnerID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("tx_type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.Reference, &t.OwnerID, &t.WalletID, &t.Type, &t.Amount, &t.Currency,
			&t.PreviousBalance, &t.NewBalance, &t.Status, &t.Source, &t.OrderID, &t.RefundOfTransactionID,
			&t.FraudScore, &t.FraudFlags, &t.ClientIP, &t.DeviceID, &t.CreatedAt, &t.ProcessedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.Reference, &t.OwnerID, &t.WalletID, &t.Type, &t.Amount, &t.Currency,
		&t.PreviousBalance, &t.NewBalance, &t.Status, &t.Source, &t.OrderID, &t.RefundOfTransactionID,
		&t.FraudScore, &t.FraudFlags, &t.ClientIP, &t.DeviceID, &t.CreatedAt, &t.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
