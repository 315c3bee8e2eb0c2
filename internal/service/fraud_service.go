package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wallet-vault/internal/core/domain"
	"wallet-vault/internal/core/ports"
	"wallet-vault/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Per-signal contributed scores and actions. The returned action is the
// maximum severity across triggered signals; the total score is capped
// at 100 and written back onto the wallet.
const (
	velocityScore      = 25
	deviationScore     = 30
	newDeviceScore     = 15
	newLocationScore   = 20
	duplicateRefScore  = 50
	maxRiskScore       = 100
	deviationMinSample = 3 // completed txs needed before deviation is meaningful
	recentSampleSize   = 10
)

// FraudServiceImpl implements ports.FraudService.
type FraudServiceImpl struct {
	fraudRepo           ports.FraudLogRepository
	txRepo              ports.TransactionRepository
	walletRepo          ports.WalletRepository
	geo                 ports.GeoResolver // nil disables geo lookup
	velocityWindow      time.Duration
	velocityThreshold   int
	deviationMultiplier int64
	log                 zerolog.Logger
}

// NewFraudService creates a new FraudServiceImpl. geo may be nil, in
// which case the new-location signal compares raw IPs against the
// wallet's origin metadata.
func NewFraudService(
	fraudRepo ports.FraudLogRepository,
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	geo ports.GeoResolver,
	velocityWindow time.Duration,
	velocityThreshold int,
	deviationMultiplier int64,
	log zerolog.Logger,
) *FraudServiceImpl {
	return &FraudServiceImpl{
		fraudRepo:           fraudRepo,
		txRepo:              txRepo,
		walletRepo:          walletRepo,
		geo:                 geo,
		velocityWindow:      velocityWindow,
		velocityThreshold:   velocityThreshold,
		deviationMultiplier: deviationMultiplier,
		log:                 log,
	}
}

// Assess scores a mutation request. Every triggered signal is persisted
// as its own FraudLog row; the caller enforces the combined action.
func (s *FraudServiceImpl) Assess(ctx context.Context, input ports.FraudInput) (*ports.FraudAssessment, error) {
	wallet, err := s.walletRepo.GetByOwnerID(ctx, input.OwnerID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	now := time.Now().UTC()
	assessment := &ports.FraudAssessment{Action: domain.FraudActionMonitoring}
	var signals []*domain.FraudLog

	// Signal: transaction velocity
	recentCount, err := s.txRepo.CountCompletedSince(ctx, input.OwnerID, now.Add(-s.velocityWindow))
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("count recent txs: %w", err))
	}
	if recentCount >= s.velocityThreshold {
		action := domain.FraudActionRequireOTP
		if recentCount >= 2*s.velocityThreshold {
			action = domain.FraudActionManualReview
		}
		signals = append(signals, s.newSignal(input, domain.FraudReasonVelocity, velocityScore, action, domain.FraudContext{
			PriorTransactionCount: recentCount,
			ClientIP:              input.ClientIP,
			DeviceID:              input.DeviceID,
		}))
	}

	// Signal: amount deviation from recent history
	agg, err := s.txRepo.RecentAggregate(ctx, input.OwnerID, recentSampleSize)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("recent aggregate: %w", err))
	}
	if agg != nil && agg.Count >= deviationMinSample && agg.AverageAmount > 0 &&
		input.Amount > s.deviationMultiplier*agg.AverageAmount {
		sctx := domain.FraudContext{
			PriorTransactionCount: int(agg.Count),
			AmountVariance:        input.Amount - agg.AverageAmount,
			ClientIP:              input.ClientIP,
			DeviceID:              input.DeviceID,
		}
		if agg.LastCreatedAt != nil {
			sctx.SecondsSinceLastTx = int64(now.Sub(*agg.LastCreatedAt).Seconds())
		}
		signals = append(signals, s.newSignal(input, domain.FraudReasonAmountDeviation, deviationScore, domain.FraudActionRequireOTP, sctx))
	}

	// Signal: new device
	if input.DeviceID != "" && wallet.Origin.DeviceID != "" && input.DeviceID != wallet.Origin.DeviceID {
		signals = append(signals, s.newSignal(input, domain.FraudReasonNewDevice, newDeviceScore, domain.FraudActionMonitoring, domain.FraudContext{
			ClientIP: input.ClientIP,
			DeviceID: input.DeviceID,
		}))
	}

	// Signal: new location
	if loc, changed := s.locationChanged(input.ClientIP, wallet.Origin); changed {
		signals = append(signals, s.newSignal(input, domain.FraudReasonNewLocation, newLocationScore, domain.FraudActionRequireOTP, domain.FraudContext{
			ClientIP: input.ClientIP,
			DeviceID: input.DeviceID,
			Location: loc,
		}))
	}

	// Signal: duplicate reference
	if input.Reference != "" {
		existing, err := s.txRepo.GetByReference(ctx, input.Reference)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("check reference: %w", err))
		}
		if existing != nil {
			signals = append(signals, s.newSignal(input, domain.FraudReasonDuplicateReference, duplicateRefScore, domain.FraudActionBlock, domain.FraudContext{
				ClientIP: input.ClientIP,
				DeviceID: input.DeviceID,
			}))
		}
	}

	for _, sig := range signals {
		if err := s.fraudRepo.Create(ctx, sig); err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("persist fraud signal: %w", err))
		}
		assessment.Score += sig.Score
		assessment.Flags = append(assessment.Flags, string(sig.Reason))
		assessment.Action = domain.MaxFraudAction(assessment.Action, sig.Action)
	}
	if assessment.Score > maxRiskScore {
		assessment.Score = maxRiskScore
	}

	if len(signals) > 0 {
		if err := s.walletRepo.UpdateRiskScore(ctx, wallet.ID, assessment.Score); err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("update risk score: %w", err))
		}
		s.log.Warn().
			Str("owner_id", input.OwnerID.String()).
			Int("score", assessment.Score).
			Strs("flags", assessment.Flags).
			Str("action", string(assessment.Action)).
			Msg("fraud signals detected")
	}

	return assessment, nil
}

// HasBlockingHold reports whether unresolved BLOCK/ESCALATE logs veto
// mutations for this owner.
func (s *FraudServiceImpl) HasBlockingHold(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	blocked, err := s.fraudRepo.HasUnresolvedBlocking(ctx, ownerID)
	if err != nil {
		return false, apperror.ErrDatabaseError(fmt.Errorf("check blocking hold: %w", err))
	}
	return blocked, nil
}

// Resolve clears a fraud log's veto.
func (s *FraudServiceImpl) Resolve(ctx context.Context, logID, resolverID uuid.UUID, notes string) error {
	entry, err := s.fraudRepo.GetByID(ctx, logID)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("get fraud log: %w", err))
	}
	if entry == nil {
		return apperror.ErrFraudLogNotFound()
	}
	if err := s.fraudRepo.Resolve(ctx, logID, resolverID, notes); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("resolve fraud log: %w", err))
	}

	s.log.Info().
		Str("log_id", logID.String()).
		Str("resolver_id", resolverID.String()).
		Msg("fraud log resolved")
	return nil
}

// ListByOwner returns the owner's most recent signals, newest first.
func (s *FraudServiceImpl) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit int) ([]domain.FraudLog, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	logs, err := s.fraudRepo.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list fraud logs: %w", err))
	}
	return logs, nil
}

func (s *FraudServiceImpl) newSignal(input ports.FraudInput, reason domain.FraudReason, score int, action domain.FraudAction, sctx domain.FraudContext) *domain.FraudLog {
	var ref *string
	if input.Reference != "" {
		ref = &input.Reference
	}
	return &domain.FraudLog{
		ID:                   uuid.New(),
		OwnerID:              input.OwnerID,
		Reason:               reason,
		Score:                score,
		Action:               action,
		TransactionReference: ref,
		Context:              sctx,
		CreatedAt:            time.Now().UTC(),
	}
}

// locationChanged compares the request origin against the wallet's
// provisioning origin: resolved country when a geo database is
// configured, /24-style raw IP prefix otherwise.
func (s *FraudServiceImpl) locationChanged(clientIP string, origin domain.OriginMetadata) (string, bool) {
	if clientIP == "" {
		return "", false
	}
	if s.geo != nil && origin.Location != "" {
		country, err := s.geo.CountryForIP(clientIP)
		if err != nil || country == "" {
			return "", false
		}
		return country, country != origin.Location
	}
	if origin.IPAddress == "" {
		return "", false
	}
	return clientIP, ipPrefix(clientIP) != ipPrefix(origin.IPAddress)
}

func ipPrefix(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ip
	}
	return strings.Join(parts[:3], ".")
}
