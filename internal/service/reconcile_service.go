package service

import (
	"bytes"
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

// replayGuardTTL bounds the Redis fast-path window for webhook replays.
// The durable guarantee is the unique constraint on provider reference
// and idempotency key, not this guard.
const (
	replayGuardTTL   = 48 * time.Hour
	replayGuardScope = "recon"
)

// providerWebhookPayload is the authoritative parsed form of the signed
// provider notification.
type providerWebhookPayload struct {
	ProviderReference     string `json:"provider_reference"`
	ProviderTransactionID string `json:"provider_transaction_id"`
	OwnerID               string `json:"owner_id"`
	Amount                int64  `json:"amount"`
	Currency              string `json:"currency"`
	Status                string `json:"status"`
	Timestamp             int64  `json:"timestamp"`
}

const providerStatusSuccess = "SUCCESS"

// ReconcileServiceImpl implements ports.ReconcileService. A provider
// reference credits a wallet at most once; every inbound notification
// leaves an auditable record whatever the outcome.
type ReconcileServiceImpl struct {
	providerRepo ports.ProviderPaymentRepository
	walletRepo   ports.WalletRepository
	txRepo       ports.TransactionRepository
	fraudRepo    ports.FraudLogRepository
	ledger       ports.LedgerService
	cipher       ports.BalanceCipher
	sigSvc       ports.SignatureService
	replay       ports.ReplayGuard
	transactor   ports.DBTransactor
	secret       string
	credential   string
	log          zerolog.Logger
}

// NewReconcileService creates a new ReconcileServiceImpl.
func NewReconcileService(
	providerRepo ports.ProviderPaymentRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	fraudRepo ports.FraudLogRepository,
	ledger ports.LedgerService,
	cipher ports.BalanceCipher,
	sigSvc ports.SignatureService,
	replay ports.ReplayGuard,
	transactor ports.DBTransactor,
	secret string,
	credential string,
	log zerolog.Logger,
) *ReconcileServiceImpl {
	return &ReconcileServiceImpl{
		providerRepo: providerRepo,
		walletRepo:   walletRepo,
		txRepo:       txRepo,
		fraudRepo:    fraudRepo,
		ledger:       ledger,
		cipher:       cipher,
		sigSvc:       sigSvc,
		replay:       replay,
		transactor:   transactor,
		secret:       secret,
		credential:   credential,
		log:          log,
	}
}

// Reconcile matches one inbound provider notification to a funding
// ledger transaction and wallet credit, idempotently.
func (s *ReconcileServiceImpl) Reconcile(ctx context.Context, req ports.ReconcileRequest) (*domain.ExternalPaymentRecord, error) {
	if req.ProviderReference == "" {
		return nil, apperror.Validation("provider reference is required")
	}
	idempKey := req.IdempotencyKey
	if idempKey == "" {
		idempKey = domain.BuildReconcileIdempotencyKey(req.ProviderReference)
	}

	now := time.Now().UTC()

	// Signature gate: no credit ever happens past an invalid signature,
	// but the attempt itself is recorded for audit.
	if !s.sigSvc.Verify(s.secret, req.RawResponse, req.Signature) {
		s.recordInvalidSignature(ctx, req, now)
		return nil, apperror.ErrSignatureInvalid()
	}

	// Redis fast path for rapid replays.
	first, err := s.replay.FirstSeen(ctx, replayGuardScope, req.ProviderReference, replayGuardTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("provider_reference", req.ProviderReference).Msg("replay guard unavailable, falling through to DB")
		first = true
	}
	if !first {
		stored, err := s.providerRepo.GetByProviderReference(ctx, req.ProviderReference)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("load replayed record: %w", err))
		}
		if stored != nil {
			return s.replayResult(ctx, stored, req.RawResponse)
		}
	}

	payload, err := parseProviderPayload(req.RawResponse)
	if err != nil {
		return nil, apperror.ErrProviderPayloadInvalid(err)
	}
	if payload.ProviderReference != req.ProviderReference {
		return nil, apperror.ErrProviderPayloadInvalid(fmt.Errorf("payload reference %q does not match %q", payload.ProviderReference, req.ProviderReference))
	}
	ownerID, err := uuid.Parse(payload.OwnerID)
	if err != nil {
		return nil, apperror.ErrProviderPayloadInvalid(fmt.Errorf("invalid owner id: %w", err))
	}

	// Insert-first: the unique constraint on provider reference and
	// idempotency key decides races between concurrent reconcilers.
	record := &domain.ExternalPaymentRecord{
		ID:                    uuid.New(),
		ProviderReference:     req.ProviderReference,
		OwnerID:               ownerID,
		Amount:                payload.Amount,
		Currency:              payload.Currency,
		VerificationStatus:    domain.VerificationStatusPending,
		RawResponse:           req.RawResponse,
		ProviderTransactionID: payload.ProviderTransactionID,
		SignatureValid:        true,
		SignatureCheckedAt:    &now,
		IdempotencyKey:        idempKey,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.providerRepo.Create(ctx, record); err != nil {
		if errors.Is(err, ports.ErrUniqueViolation) {
			stored, lerr := s.providerRepo.GetByProviderReference(ctx, req.ProviderReference)
			if lerr != nil {
				return nil, apperror.ErrDatabaseError(fmt.Errorf("load existing record: %w", lerr))
			}
			if stored == nil {
				stored, lerr = s.providerRepo.GetByIdempotencyKey(ctx, idempKey)
				if lerr != nil || stored == nil {
					return nil, apperror.ErrDuplicateReference()
				}
			}
			return s.replayResult(ctx, stored, req.RawResponse)
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create payment record: %w", err))
	}

	// Amount/currency against the authoritative payload.
	if payload.Amount <= 0 || payload.Currency == "" || payload.Status != providerStatusSuccess {
		return nil, s.fail(ctx, record, apperror.ErrAmountMismatch(), "RCN_003",
			fmt.Sprintf("payload not creditable: amount=%d currency=%q status=%q", payload.Amount, payload.Currency, payload.Status))
	}

	txn, err := s.credit(ctx, record, payload)
	if err != nil {
		var appErr *apperror.AppError
		code, msg := "SYS_001", err.Error()
		if errors.As(err, &appErr) {
			code, msg = appErr.Code, appErr.Message
		}
		return nil, s.fail(ctx, record, err, code, msg)
	}

	record.VerificationStatus = domain.VerificationStatusVerified
	record.LedgerTransactionID = &txn.ID
	record.UpdatedAt = time.Now().UTC()

	s.log.Info().
		Str("provider_reference", req.ProviderReference).
		Str("owner_id", ownerID.String()).
		Str("tx_id", txn.ID.String()).
		Int64("amount", payload.Amount).
		Msg("provider payment reconciled")

	return record, nil
}

// credit applies the funding in one database transaction: pending
// ledger record, wallet credit, ledger completion, and the verified
// link settle together or not at all.
func (s *ReconcileServiceImpl) credit(ctx context.Context, record *domain.ExternalPaymentRecord, payload *providerWebhookPayload) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & get wallet
	wallet, err := s.walletRepo.GetByOwnerIDForUpdate(ctx, dbTx, record.OwnerID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	if !wallet.IsActive() {
		return nil, apperror.ErrWalletNotActive(string(wallet.Status))
	}
	if wallet.Currency != payload.Currency {
		return nil, apperror.ErrAmountMismatch()
	}

	// Decrypt balance
	currentBalance, err := s.cipher.Decrypt(wallet.EncryptedBalance, s.credential, &wallet.Encryption)
	if err != nil {
		return nil, apperror.ErrDecryptionFailed(fmt.Errorf("decrypt balance: %w", err))
	}

	newBalance := currentBalance + payload.Amount
	newBalanceEnc, err := s.cipher.Encrypt(newBalance, s.credential, &wallet.Encryption)
	if err != nil {
		return nil, apperror.ErrCipherFailure(fmt.Errorf("encrypt new balance: %w", err))
	}

	// Persist: pending ledger record for the provider-initiated event
	txn, err := s.ledger.Record(ctx, dbTx, ports.LedgerEvent{
		Reference:       "EXT-" + record.ProviderReference,
		OwnerID:         record.OwnerID,
		WalletID:        wallet.ID,
		Type:            domain.TransactionTypeFunding,
		Amount:          payload.Amount,
		Currency:        payload.Currency,
		PreviousBalance: currentBalance,
		NewBalance:      newBalance,
		Source:          domain.SourceExternalProvider,
		Pending:         true,
	})
	if err != nil {
		return nil, err
	}

	// Persist: update wallet balance (version-checked)
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

	// Persist: complete the ledger record now that the credit is applied
	if err := s.txRepo.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusCompleted); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("complete ledger record: %w", err))
	}
	txn.Status = domain.TransactionStatusCompleted

	// Persist: link the transaction onto the payment record
	if err := s.providerRepo.MarkVerified(ctx, dbTx, record.ID, txn.ID); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("mark record verified: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	return txn, nil
}

// replayResult implements the idempotent-replay contract: a settled
// record comes back unchanged for identical payloads, and is flagged
// DUPLICATE (on a copy, the stored audit row stays untouched) when the
// replayed payload differs.
func (s *ReconcileServiceImpl) replayResult(ctx context.Context, stored *domain.ExternalPaymentRecord, rawResponse []byte) (*domain.ExternalPaymentRecord, error) {
	if !stored.VerificationStatus.IsSettled() {
		return nil, apperror.ErrDuplicateReference()
	}
	if bytes.Equal(stored.RawResponse, rawResponse) {
		return stored, nil
	}

	ref := stored.ProviderReference
	if err := s.fraudRepo.Create(ctx, &domain.FraudLog{
		ID:                   uuid.New(),
		OwnerID:              stored.OwnerID,
		Reason:               domain.FraudReasonDuplicateReference,
		Score:                duplicateRefScore,
		Action:               domain.FraudActionManualReview,
		TransactionReference: &ref,
		CreatedAt:            time.Now().UTC(),
	}); err != nil {
		s.log.Error().Err(err).Str("provider_reference", ref).Msg("failed to log conflicting replay")
	}

	dup := *stored
	dup.VerificationStatus = domain.VerificationStatusDuplicate
	s.log.Warn().
		Str("provider_reference", ref).
		Msg("provider reference replayed with differing payload")
	return &dup, nil
}

// fail marks the record FAILED with error detail and passes the
// original error through. The wallet is untouched on this path.
func (s *ReconcileServiceImpl) fail(ctx context.Context, record *domain.ExternalPaymentRecord, cause error, code, message string) error {
	if err := s.providerRepo.MarkFailed(ctx, record.ID, domain.ProviderError{Code: code, Message: message}); err != nil {
		s.log.Error().Err(err).Str("provider_reference", record.ProviderReference).Msg("failed to mark payment record failed")
	}
	s.log.Warn().
		Str("provider_reference", record.ProviderReference).
		Str("code", code).
		Msg("reconciliation failed")
	return cause
}

// recordInvalidSignature persists an audit row for a notification that
// failed the signature gate. The row is filed under a synthetic
// reference and idempotency key: an unauthenticated delivery must never
// claim the real provider-reference slot, or garbage could block the
// legitimate delivery that follows.
func (s *ReconcileServiceImpl) recordInvalidSignature(ctx context.Context, req ports.ReconcileRequest, now time.Time) {
	var ownerID uuid.UUID
	if payload, err := parseProviderPayload(req.RawResponse); err == nil {
		if id, perr := uuid.Parse(payload.OwnerID); perr == nil {
			ownerID = id
		}
	}
	id := uuid.New()
	record := &domain.ExternalPaymentRecord{
		ID:                 id,
		ProviderReference:  fmt.Sprintf("SIGFAIL-%s-%s", req.ProviderReference, id),
		OwnerID:            ownerID,
		VerificationStatus: domain.VerificationStatusFailed,
		RawResponse:        req.RawResponse,
		SignatureValid:     false,
		SignatureCheckedAt: &now,
		IdempotencyKey:     "sigfail:" + id.String(),
		Error:              &domain.ProviderError{Code: "RCN_001", Message: "webhook signature verification failed"},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.providerRepo.Create(ctx, record); err != nil {
		s.log.Error().Err(err).Str("provider_reference", req.ProviderReference).Msg("failed to record invalid-signature attempt")
	}
	s.log.Warn().Str("provider_reference", req.ProviderReference).Msg("webhook signature invalid")
}

func parseProviderPayload(raw []byte) (*providerWebhookPayload, error) {
	var payload providerWebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.ProviderReference == "" {
		return nil, fmt.Errorf("missing provider_reference")
	}
	return &payload, nil
}
