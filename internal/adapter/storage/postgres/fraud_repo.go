package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-vault/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// FraudLogRepo implements ports.FraudLogRepository.
type FraudLogRepo struct {
	pool Pool
}

// NewFraudLogRepo creates a new FraudLogRepo.
func NewFraudLogRepo(pool Pool) *FraudLogRepo {
	return &FraudLogRepo{pool: pool}
}

const fraudColumns = `id, owner_id, reason, score, action, transaction_reference,
	context, resolved, resolved_by, resolution_notes, created_at`

// Create inserts a detected fraud signal.
func (r *FraudLogRepo) Create(ctx context.Context, log *domain.FraudLog) error {
	query := `INSERT INTO fraud_logs (id, owner_id, reason, score, action, transaction_reference,
		context, resolved, resolved_by, resolution_notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		log.ID, log.OwnerID, log.Reason, log.Score, log.Action, log.TransactionReference,
		log.Context, log.Resolved, log.ResolvedBy, log.ResolutionNotes, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fraud log: %w", err)
	}
	return nil
}

// GetByID fetches a fraud log by UUID.
func (r *FraudLogRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FraudLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM fraud_logs WHERE id = $1`, fraudColumns)

	f := &domain.FraudLog{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&f.ID, &f.OwnerID, &f.Reason, &f.Score, &f.Action, &f.TransactionReference,
		&f.Context, &f.Resolved, &f.ResolvedBy, &f.ResolutionNotes, &f.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fraud log: %w", err)
	}
	return f, nil
}

// HasUnresolvedBlocking reports whether the owner has an unresolved
// BLOCK or ESCALATE signal.
func (r *FraudLogRepo) HasUnresolvedBlocking(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM fraud_logs
		WHERE owner_id = $1 AND resolved = FALSE AND action IN ('BLOCK', 'ESCALATE'))`

	var exists bool
	err := r.pool.QueryRow(ctx, query, ownerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check blocking fraud logs: %w", err)
	}
	return exists, nil
}

// Resolve marks a fraud log as handled by an administrator.
func (r *FraudLogRepo) Resolve(ctx context.Context, id uuid.UUID, resolverID uuid.UUID, notes string) error {
	query := `UPDATE fraud_logs SET resolved = TRUE, resolved_by = $2, resolution_notes = $3 WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, resolverID, notes)
	if err != nil {
		return fmt.Errorf("resolve fraud log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fraud log not found: %s", id)
	}
	return nil
}

// ListByOwner fetches the owner's most recent fraud signals.
func (r *FraudLogRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.FraudLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM fraud_logs WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`, fraudColumns)

	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list fraud logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.FraudLog
	for rows.Next() {
		f := domain.FraudLog{}
		err := rows.Scan(
			&f.ID, &f.OwnerID, &f.Reason, &f.Score, &f.Action, &f.TransactionReference,
			&f.Context, &f.Resolved, &f.ResolvedBy, &f.ResolutionNotes, &f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fraud log row: %w", err)
		}
		logs = append(logs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fraud log rows: %w", err)
	}
	return logs, nil
}
