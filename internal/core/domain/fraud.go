package domain

import (
	"time"

	"github.com/google/uuid"
)

// FraudReason is the closed enumeration of detection categories.
type FraudReason string

const (
	FraudReasonVelocity           FraudReason = "TRANSACTION_VELOCITY"
	FraudReasonAmountDeviation    FraudReason = "AMOUNT_DEVIATION"
	FraudReasonNewDevice          FraudReason = "NEW_DEVICE"
	FraudReasonNewLocation        FraudReason = "NEW_LOCATION"
	FraudReasonDuplicateReference FraudReason = "DUPLICATE_REFERENCE"
)

// FraudAction is the enforcement action selected for a detected signal.
type FraudAction string

const (
	FraudActionMonitoring   FraudAction = "MONITORING"
	FraudActionRequireOTP   FraudAction = "REQUIRE_OTP"
	FraudActionManualReview FraudAction = "MANUAL_REVIEW"
	FraudActionBlock        FraudAction = "BLOCK"
	FraudActionEscalate     FraudAction = "ESCALATE"
)

// fraudActionRank orders actions by severity:
// monitoring < require_otp < manual_review < block < escalate.
var fraudActionRank = map[FraudAction]int{
	FraudActionMonitoring:   0,
	FraudActionRequireOTP:   1,
	FraudActionManualReview: 2,
	FraudActionBlock:        3,
	FraudActionEscalate:     4,
}

// Severity returns the ordinal severity of the action.
func (a FraudAction) Severity() int {
	return fraudActionRank[a]
}

// IsBlocking reports whether the action is a hard denial pending
// administrator resolution.
func (a FraudAction) IsBlocking() bool {
	return a == FraudActionBlock || a == FraudActionEscalate
}

// MaxFraudAction returns the higher-severity of two actions.
func MaxFraudAction(a, b FraudAction) FraudAction {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// FraudContext records the signal's supporting evidence.
type FraudContext struct {
	PriorTransactionCount int    `json:"prior_transaction_count"`
	SecondsSinceLastTx    int64  `json:"seconds_since_last_tx,omitempty"`
	AmountVariance        int64  `json:"amount_variance,omitempty"`
	ClientIP              string `json:"client_ip,omitempty"`
	DeviceID              string `json:"device_id,omitempty"`
	Location              string `json:"location,omitempty"`
}

// FraudLog persists one detected fraud signal. Unresolved BLOCK/ESCALATE
// logs veto further mutation attempts on the same wallet until resolved.
type FraudLog struct {
	ID                   uuid.UUID    `json:"id"`
	OwnerID              uuid.UUID    `json:"owner_id"`
	Reason               FraudReason  `json:"reason"`
	Score                int          `json:"score"` // 0..100 contributed
	Action               FraudAction  `json:"action"`
	TransactionReference *string      `json:"transaction_reference,omitempty"`
	Context              FraudContext `json:"context"`
	Resolved             bool         `json:"resolved"`
	ResolvedBy           *uuid.UUID   `json:"resolved_by,omitempty"`
	ResolutionNotes      *string      `json:"resolution_notes,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}
