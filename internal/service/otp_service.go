package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OTPServiceImpl implements ports.OTPService. A code moves from issued
// to exactly one of verified, expired, or locked. Expiry and lockout are
// lazy cutoffs evaluated on the next verify, not active timers.
type OTPServiceImpl struct {
	otpRepo     ports.OTPRepository
	hashSvc     ports.HashService
	ttl         time.Duration
	maxAttempts int
	codeLength  int
	lockoutFor  time.Duration
	log         zerolog.Logger
}

// NewOTPService creates a new OTPServiceImpl.
func NewOTPService(
	otpRepo ports.OTPRepository,
	hashSvc ports.HashService,
	ttl time.Duration,
	maxAttempts int,
	codeLength int,
	lockoutFor time.Duration,
	log zerolog.Logger,
) *OTPServiceImpl {
	return &OTPServiceImpl{
		otpRepo:     otpRepo,
		hashSvc:     hashSvc,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		codeLength:  codeLength,
		lockoutFor:  lockoutFor,
		log:         log,
	}
}

// Issue generates a random numeric code, stores only its hash, and
// returns the plaintext once for the delivery collaborator.
func (s *OTPServiceImpl) Issue(ctx context.Context, req ports.OTPIssueRequest) (*ports.OTPIssueResult, error) {
	code, err := generateNumericCode(s.codeLength)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate code: %w", err))
	}

	codeHash, err := s.hashSvc.Hash(code)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash code: %w", err))
	}

	now := time.Now().UTC()
	otc := &domain.OneTimeCode{
		ID:             uuid.New(),
		OwnerID:        req.OwnerID,
		CodeHash:       codeHash,
		Purpose:        req.Purpose,
		BoundReference: req.BoundReference,
		ExpiresAt:      now.Add(s.ttl),
		Attempts:       0,
		MaxAttempts:    s.maxAttempts,
		Channel:        req.Channel,
		CreatedAt:      now,
	}

	if err := s.otpRepo.Create(ctx, otc); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create one-time code: %w", err))
	}

	s.log.Info().
		Str("code_id", otc.ID.String()).
		Str("owner_id", req.OwnerID.String()).
		Str("purpose", string(req.Purpose)).
		Time("expires_at", otc.ExpiresAt).
		Msg("one-time code issued")

	return &ports.OTPIssueResult{
		CodeID:    otc.ID,
		Code:      code,
		ExpiresAt: otc.ExpiresAt,
	}, nil
}

// Verify checks a supplied code against the stored hash. Outcome classes
// come back in the result; errors are reserved for infrastructure
// failures. A used code can never verify again even with the correct
// value, and the attempt crossing max_attempts locks the code.
func (s *OTPServiceImpl) Verify(ctx context.Context, codeID uuid.UUID, supplied string) (*ports.OTPVerifyResult, error) {
	otc, err := s.otpRepo.GetByID(ctx, codeID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get one-time code: %w", err))
	}
	if otc == nil {
		return nil, apperror.ErrOTPNotFound()
	}

	now := time.Now().UTC()

	if otc.IsUsed {
		return &ports.OTPVerifyResult{Outcome: ports.OTPOutcomeAlreadyUsed}, nil
	}
	// A code that is both expired and locked reports EXPIRED.
	if otc.IsExpired(now) {
		return &ports.OTPVerifyResult{Outcome: ports.OTPOutcomeExpired}, nil
	}
	if otc.IsExhausted() {
		return &ports.OTPVerifyResult{Outcome: ports.OTPOutcomeLocked}, nil
	}

	match, err := s.hashSvc.Verify(supplied, otc.CodeHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify code hash: %w", err))
	}

	if !match {
		attempts, locked, err := s.otpRepo.RegisterFailedAttempt(ctx, codeID, now.Add(s.lockoutFor))
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("register failed attempt: %w", err))
		}
		if locked {
			s.log.Warn().
				Str("code_id", codeID.String()).
				Str("owner_id", otc.OwnerID.String()).
				Int("attempts", attempts).
				Msg("one-time code locked after repeated failures")
			return &ports.OTPVerifyResult{Outcome: ports.OTPOutcomeLocked}, nil
		}
		return &ports.OTPVerifyResult{
			Outcome:           ports.OTPOutcomeMismatch,
			AttemptsRemaining: otc.MaxAttempts - attempts,
		}, nil
	}

	// The conditional update is the single consumption point: a
	// concurrent correct guess loses here and sees ALREADY_USED.
	consumed, err := s.otpRepo.MarkUsed(ctx, codeID, now)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("mark code used: %w", err))
	}
	if !consumed {
		return &ports.OTPVerifyResult{Outcome: ports.OTPOutcomeAlreadyUsed}, nil
	}

	s.log.Info().
		Str("code_id", codeID.String()).
		Str("owner_id", otc.OwnerID.String()).
		Msg("one-time code verified")

	return &ports.OTPVerifyResult{Outcome: ports.OTPOutcomeSuccess}, nil
}

// AssertConsumed checks that a code was successfully verified for this
// owner, purpose, and bound reference. It gates mutations that fraud
// scoring flagged as requiring a challenge.
func (s *OTPServiceImpl) AssertConsumed(ctx context.Context, codeID, ownerID uuid.UUID, purpose domain.OTPPurpose, boundReference string) error {
	otc, err := s.otpRepo.GetByID(ctx, codeID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("get one-time code: %w", err))
	}
	// Another owner's code is indistinguishable from a missing one.
	if otc == nil || otc.OwnerID != ownerID {
		return apperror.ErrOTPNotFound()
	}
	if !otc.IsUsed {
		return apperror.ErrOTPRequired()
	}
	if otc.Purpose != purpose {
		return apperror.ErrOTPPurposeMismatch()
	}
	if otc.BoundReference != nil && boundReference != "" && *otc.BoundReference != boundReference {
		return apperror.ErrOTPPurposeMismatch()
	}
	return nil
}

// CleanupExpired removes codes past their expiry. Meant to run
// periodically from the scheduler in main.
func (s *OTPServiceImpl) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, err := s.otpRepo.DeleteExpiredBefore(ctx, time.Now().UTC())
	if err != nil {
		return 0, apperror.ErrDatabaseError(fmt.Errorf("delete expired codes: %w", err))
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Msg("expired one-time codes removed")
	}
	return deleted, nil
}

// generateNumericCode draws n digits from crypto/rand.
func generateNumericCode(n int) (string, error) {
	if n < 4 {
		n = 6
	}
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}
