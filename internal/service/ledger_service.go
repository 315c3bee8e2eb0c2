package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService. Records are written
// once and never mutated afterwards; the only status transitions are
// PENDING to a terminal status and COMPLETED to REVERSED via Reverse.
type LedgerServiceImpl struct {
	txRepo     ports.TransactionRepository
	walletRepo ports.WalletRepository
	cipher     ports.BalanceCipher
	transactor ports.DBTransactor
	credential string // service credential for system-initiated wallet access
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	cipher ports.BalanceCipher,
	transactor ports.DBTransactor,
	credential string,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		txRepo:     txRepo,
		walletRepo: walletRepo,
		cipher:     cipher,
		transactor: transactor,
		credential: credential,
		log:        log,
	}
}

// Record writes one audit record inside the caller's database
// transaction. The balance snapshots come from the caller, which holds
// the wallet row lock while this runs.
func (s *LedgerServiceImpl) Record(ctx context.Context, dbTx pgx.Tx, event ports.LedgerEvent) (*domain.Transaction, error) {
	if event.Amount < 0 {
		return nil, apperror.Validation("ledger amount must not be negative")
	}
	if event.Reference == "" {
		return nil, apperror.Validation("ledger reference is required")
	}

	now := time.Now().UTC()
	status := domain.TransactionStatusCompleted
	var processedAt *time.Time
	if event.Pending {
		status = domain.TransactionStatusPending
	} else {
		processedAt = &now
	}

	txn := &domain.Transaction{
		ID:                    uuid.New(),
		Reference:             event.Reference,
		OwnerID:               event.OwnerID,
		WalletID:              event.WalletID,
		Type:                  event.Type,
		Amount:                event.Amount,
		Currency:              event.Currency,
		PreviousBalance:       event.PreviousBalance,
		NewBalance:            event.NewBalance,
		Status:                status,
		Source:                event.Source,
		OrderID:               event.OrderID,
		RefundOfTransactionID: event.RefundOf,
		FraudScore:            event.FraudScore,
		FraudFlags:            event.FraudFlags,
		ClientIP:              event.ClientIP,
		DeviceID:              event.DeviceID,
		CreatedAt:             now,
		ProcessedAt:           processedAt,
	}

	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return nil, apperror.ErrDuplicateReference()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create ledger record: %w", err))
	}

	return txn, nil
}

// Reverse creates a linked REFUND record, credits the wallet back, and
// moves the original to REVERSED, all in one database transaction.
func (s *LedgerServiceImpl) Reverse(ctx context.Context, originalReference string, reason string) (*domain.Transaction, error) {
	origTx, err := s.txRepo.GetByReference(ctx, originalReference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find original tx: %w", err))
	}
	if origTx == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	if !origTx.IsReversible() {
		return nil, apperror.ErrNotReversible()
	}

	refundExists, err := s.txRepo.CheckRefundExists(ctx, origTx.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("check refund exists: %w", err))
	}
	if refundExists {
		return nil, apperror.ErrAlreadyReversed()
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & get wallet
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, origTx.WalletID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if !wallet.IsActive() {
		return nil, apperror.ErrWalletNotActive(string(wallet.Status))
	}

	// Decrypt balance
	currentBalance, err := s.cipher.Decrypt(wallet.EncryptedBalance, s.credential, &wallet.Encryption)
	if err != nil {
		return nil, apperror.ErrDecryptionFailed(fmt.Errorf("decrypt balance: %w", err))
	}

	// Calculate new balance (ADD back)
	newBalance := currentBalance + origTx.Amount
	newBalanceEnc, err := s.cipher.Encrypt(newBalance, s.credential, &wallet.Encryption)
	if err != nil {
		return nil, apperror.ErrCipherFailure(fmt.Errorf("encrypt new balance: %w", err))
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:                    uuid.New(),
		Reference:             "REFUND-" + originalReference,
		OwnerID:               origTx.OwnerID,
		WalletID:              wallet.ID,
		Type:                  domain.TransactionTypeRefund,
		Amount:                origTx.Amount,
		Currency:              origTx.Currency,
		PreviousBalance:       currentBalance,
		NewBalance:            newBalance,
		Status:                domain.TransactionStatusCompleted,
		Source:                origTx.Source,
		OrderID:               origTx.OrderID,
		RefundOfTransactionID: &origTx.ID,
		FraudFlags:            []string{"REVERSAL:" + reason},
		CreatedAt:             now,
		ProcessedAt:           &now,
	}

	// Persist: update wallet balance
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, ports.UpdateBalanceParams{
		WalletID:         wallet.ID,
		EncryptedBalance: newBalanceEnc,
		UpdatedBy:        domain.ActorSystem,
		ExpectedVersion:  wallet.Version,
	}); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, apperror.ErrWriteConflict()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update balance: %w", err))
	}

	// Persist: create refund transaction. The unique refund reference
	// decides the race between concurrent reversals of the same original.
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return nil, apperror.ErrAlreadyReversed()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create refund tx: %w", err))
	}

	// Persist: mark original transaction as REVERSED
	if err := s.txRepo.UpdateStatus(ctx, dbTx, origTx.ID, domain.TransactionStatusReversed); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, apperror.ErrAlreadyReversed()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("reverse original tx: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("refund_tx_id", txn.ID.String()).
		Str("original_reference", originalReference).
		Int64("amount", origTx.Amount).
		Msg("transaction reversed")

	return txn, nil
}

// GetByReference looks up a single ledger record.
func (s *LedgerServiceImpl) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get by reference: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	return txn, nil
}

// List returns a filtered, paginated slice of ledger records plus the
// total match count.
func (s *LedgerServiceImpl) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	txns, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}
