package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// WalletServiceImpl implements ports.WalletService. Every balance
// mutation runs the same protocol: fraud gate, optional OTP gate,
// idempotency check, then one database transaction holding the wallet
// row lock across decrypt, re-encrypt, version-checked write, and the
// ledger record.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	cipher     ports.BalanceCipher
	ledger     ports.LedgerService
	otp        ports.OTPService
	fraud      ports.FraudService
	transactor ports.DBTransactor
	credential string // service credential used when the caller supplies none
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	cipher ports.BalanceCipher,
	ledger ports.LedgerService,
	otp ports.OTPService,
	fraud ports.FraudService,
	transactor ports.DBTransactor,
	credential string,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		cipher:     cipher,
		ledger:     ledger,
		otp:        otp,
		fraud:      fraud,
		transactor: transactor,
		credential: credential,
		log:        log,
	}
}

// Create provisions the owner's single wallet with an encrypted zero
// balance and a fresh per-wallet salt.
func (s *WalletServiceImpl) Create(ctx context.Context, ownerID uuid.UUID, currency string, origin domain.OriginMetadata) (*domain.Wallet, error) {
	if currency == "" {
		return nil, apperror.Validation("currency is required")
	}

	meta, err := s.cipher.NewMeta()
	if err != nil {
		return nil, apperror.ErrCipherFailure(fmt.Errorf("new encryption meta: %w", err))
	}

	zeroEnc, err := s.cipher.Encrypt(0, s.credential, meta)
	if err != nil {
		return nil, apperror.ErrCipherFailure(fmt.Errorf("encrypt zero balance: %w", err))
	}

	now := time.Now().UTC()
	wallet := &domain.Wallet{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		Currency:         currency,
		EncryptedBalance: zeroEnc,
		Encryption:       *meta,
		Status:           domain.WalletStatusActive,
		LastUpdatedBy:    domain.ActorSystem,
		Version:          1,
		Origin:           origin,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			return nil, apperror.ErrWalletExists()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("owner_id", ownerID.String()).
		Str("currency", currency).
		Msg("wallet created")

	return wallet, nil
}

// GetBalance decrypts and returns the balance without mutating anything.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, ownerID uuid.UUID, credential string) (int64, string, error) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return 0, "", apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return 0, "", apperror.ErrWalletNotFound()
	}

	balance, err := s.cipher.Decrypt(wallet.EncryptedBalance, s.credentialOrDefault(credential), &wallet.Encryption)
	if err != nil {
		return 0, "", apperror.ErrDecryptionFailed(fmt.Errorf("decrypt balance: %w", err))
	}
	return balance, wallet.Currency, nil
}

// AdjustBalance applies a signed delta through the atomic mutation
// protocol and returns the resulting ledger record.
func (s *WalletServiceImpl) AdjustBalance(ctx context.Context, req ports.AdjustRequest) (*domain.Transaction, error) {
	if req.Delta == 0 {
		return nil, apperror.Validation("delta must be non-zero")
	}
	if req.OwnerID == uuid.Nil {
		return nil, apperror.Validation("owner id is required")
	}
	if req.Reference == "" {
		req.Reference = buildReference(req.Type, req.OwnerID)
	}

	amount := req.Delta
	if amount < 0 {
		amount = -amount
	}

	// Idempotency: Redis fast path, then the durable log. Replays return
	// the original result before any re-scoring happens.
	var idempKey string
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		idempKey = domain.BuildAdjustIdempotencyKey(req.OwnerID, *req.IdempotencyKey)

		cached, err := s.idempCache.Get(ctx, idempKey)
		if err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
		}
		if cached != nil {
			return unmarshalCachedTransaction(cached)
		}

		idempLog, err := s.idempRepo.Get(ctx, idempKey)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("db idempotency check: %w", err))
		}
		if idempLog != nil {
			return unmarshalCachedTransaction(idempLog.ResponseJSON)
		}
	}

	// Fraud gate: unresolved holds veto first, then this request is scored.
	held, err := s.fraud.HasBlockingHold(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if held {
		return nil, apperror.ErrFraudBlocked()
	}

	assessment, err := s.fraud.Assess(ctx, ports.FraudInput{
		OwnerID:   req.OwnerID,
		Amount:    amount,
		Reference: req.Reference,
		ClientIP:  req.ClientIP,
		DeviceID:  req.DeviceID,
	})
	if err != nil {
		return nil, err
	}
	if assessment.Action.IsBlocking() {
		return nil, apperror.ErrFraudBlocked()
	}
	if assessment.Action == domain.FraudActionRequireOTP {
		if req.OTPCodeID == nil {
			return nil, apperror.ErrOTPRequired()
		}
		if err := s.otp.AssertConsumed(ctx, *req.OTPCodeID, req.OwnerID, otpPurposeFor(req), req.Reference); err != nil {
			return nil, err
		}
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & get wallet
	wallet, err := s.walletRepo.GetByOwnerIDForUpdate(ctx, dbTx, req.OwnerID)
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
	currentBalance, err := s.cipher.Decrypt(wallet.EncryptedBalance, s.credentialOrDefault(req.Credential), &wallet.Encryption)
	if err != nil {
		return nil, apperror.ErrDecryptionFailed(fmt.Errorf("decrypt balance: %w", err))
	}

	// Business rule: the decrypted balance never goes negative
	newBalance := currentBalance + req.Delta
	if newBalance < 0 {
		return nil, apperror.ErrInsufficientFunds()
	}

	newBalanceEnc, err := s.cipher.Encrypt(newBalance, s.credentialOrDefault(req.Credential), &wallet.Encryption)
	if err != nil {
		return nil, apperror.ErrCipherFailure(fmt.Errorf("encrypt new balance: %w", err))
	}

	// Persist: update wallet balance (version-checked)
	if err := s.walletRepo.UpdateBalance(ctx, dbTx, ports.UpdateBalanceParams{
		WalletID:         wallet.ID,
		EncryptedBalance: newBalanceEnc,
		UpdatedBy:        req.Actor,
		ExpectedVersion:  wallet.Version,
	}); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, apperror.ErrWriteConflict()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update balance: %w", err))
	}

	// Persist: ledger record
	txn, err := s.ledger.Record(ctx, dbTx, ports.LedgerEvent{
		Reference:       req.Reference,
		OwnerID:         req.OwnerID,
		WalletID:        wallet.ID,
		Type:            req.Type,
		Amount:          amount,
		Currency:        wallet.Currency,
		PreviousBalance: currentBalance,
		NewBalance:      newBalance,
		Source:          req.Source,
		OrderID:         req.OrderID,
		FraudScore:      assessment.Score,
		FraudFlags:      assessment.Flags,
		ClientIP:        req.ClientIP,
		DeviceID:        req.DeviceID,
	})
	if err != nil {
		return nil, err
	}

	// Persist: idempotency log
	var respJSON []byte
	if idempKey != "" {
		respJSON, err = json.Marshal(txn)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		if err := s.idempRepo.Create(ctx, dbTx, &domain.IdempotencyLog{
			Key:           idempKey,
			TransactionID: txn.ID,
			ResponseJSON:  respJSON,
			CreatedAt:     time.Now().UTC(),
		}); err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("save idempotency log: %w", err))
		}
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-process: cache in Redis (best-effort)
	if idempKey != "" {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("owner_id", req.OwnerID.String()).
		Int64("delta", req.Delta).
		Int64("new_balance", newBalance).
		Str("type", string(req.Type)).
		Msg("balance adjusted")

	return txn, nil
}

// SetStatus transitions the wallet's lifecycle state. Status changes
// replace deletion; FROZEN and SUSPENDED wallets reject mutations but
// stay readable.
func (s *WalletServiceImpl) SetStatus(ctx context.Context, ownerID uuid.UUID, status domain.WalletStatus, actor domain.ActorTag) error {
	switch status {
	case domain.WalletStatusActive, domain.WalletStatusFrozen, domain.WalletStatusSuspended:
	default:
		return apperror.Validation(fmt.Sprintf("unknown wallet status %q", status))
	}

	wallet, err := s.walletRepo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return apperror.ErrWalletNotFound()
	}

	if err := s.walletRepo.SetStatus(ctx, wallet.ID, status, actor); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("set status: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("owner_id", ownerID.String()).
		Str("status", string(status)).
		Str("actor", string(actor)).
		Msg("wallet status changed")
	return nil
}

func (s *WalletServiceImpl) credentialOrDefault(credential string) string {
	if credential != "" {
		return credential
	}
	return s.credential
}

// otpPurposeFor maps a mutation to the purpose its challenge must have
// been issued for.
func otpPurposeFor(req ports.AdjustRequest) domain.OTPPurpose {
	if req.Type == domain.TransactionTypeAdminAdjustment {
		return domain.OTPPurposeSensitiveAction
	}
	if req.Delta > 0 {
		return domain.OTPPurposeFunding
	}
	return domain.OTPPurposeDeduction
}

func buildReference(txType domain.TransactionType, ownerID uuid.UUID) string {
	return fmt.Sprintf("%s-%s-%d", txType, ownerID.String()[:8], time.Now().UTC().UnixMilli())
}

// unmarshalCachedTransaction deserializes a cached transaction.
func unmarshalCachedTransaction(data []byte) (*domain.Transaction, error) {
	txn := &domain.Transaction{}
	if err := json.Unmarshal(data, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached tx: %w", err))
	}
	return txn, nil
}
