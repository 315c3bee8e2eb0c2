package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWallet_IsActive(t *testing.T) {
	tests := []struct {
		name   string
		status WalletStatus
		want   bool
	}{
		{"active", WalletStatusActive, true},
		{"frozen", WalletStatusFrozen, false},
		{"suspended", WalletStatusSuspended, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Wallet{Status: tt.status}
			assert.Equal(t, tt.want, w.IsActive())
		})
	}
}

func TestTransaction_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status TransactionStatus
		want   bool
	}{
		{"pending", TransactionStatusPending, false},
		{"completed", TransactionStatusCompleted, true},
		{"failed", TransactionStatusFailed, true},
		{"reversed", TransactionStatusReversed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Status: tt.status}
			assert.Equal(t, tt.want, tx.IsTerminal())
		})
	}
}

func TestTransaction_IsReversible(t *testing.T) {
	tests := []struct {
		name   string
		txType TransactionType
		status TransactionStatus
		want   bool
	}{
		{"completed purchase", TransactionTypePurchase, TransactionStatusCompleted, true},
		{"completed funding", TransactionTypeFunding, TransactionStatusCompleted, true},
		{"pending purchase", TransactionTypePurchase, TransactionStatusPending, false},
		{"failed purchase", TransactionTypePurchase, TransactionStatusFailed, false},
		{"already reversed", TransactionTypePurchase, TransactionStatusReversed, false},
		{"completed refund", TransactionTypeRefund, TransactionStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &Transaction{Type: tt.txType, Status: tt.status}
			assert.Equal(t, tt.want, tx.IsReversible())
		})
	}
}

func TestOneTimeCode_IsExpired(t *testing.T) {
	now := time.Now().UTC()
	code := &OneTimeCode{ExpiresAt: now.Add(5 * time.Minute)}

	assert.False(t, code.IsExpired(now))
	assert.False(t, code.IsExpired(now.Add(5*time.Minute)))
	assert.True(t, code.IsExpired(now.Add(5*time.Minute+time.Second)))
}

func TestOneTimeCode_IsExhausted(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		locked   bool
		want     bool
	}{
		{"fresh", 0, false, false},
		{"two of three", 2, false, false},
		{"at limit", 3, false, true},
		{"explicitly locked", 1, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &OneTimeCode{Attempts: tt.attempts, MaxAttempts: 3, IsLocked: tt.locked}
			assert.Equal(t, tt.want, c.IsExhausted())
		})
	}
}

func TestFraudAction_SeverityOrdering(t *testing.T) {
	ordered := []FraudAction{
		FraudActionMonitoring,
		FraudActionRequireOTP,
		FraudActionManualReview,
		FraudActionBlock,
		FraudActionEscalate,
	}

	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Severity(), ordered[i-1].Severity(),
			"%s must outrank %s", ordered[i], ordered[i-1])
	}

	assert.Equal(t, FraudActionBlock, MaxFraudAction(FraudActionRequireOTP, FraudActionBlock))
	assert.Equal(t, FraudActionEscalate, MaxFraudAction(FraudActionEscalate, FraudActionMonitoring))
	assert.Equal(t, FraudActionMonitoring, MaxFraudAction(FraudActionMonitoring, FraudActionMonitoring))
}

func TestFraudAction_IsBlocking(t *testing.T) {
	assert.True(t, FraudActionBlock.IsBlocking())
	assert.True(t, FraudActionEscalate.IsBlocking())
	assert.False(t, FraudActionMonitoring.IsBlocking())
	assert.False(t, FraudActionRequireOTP.IsBlocking())
	assert.False(t, FraudActionManualReview.IsBlocking())
}

func TestVerificationStatus_IsSettled(t *testing.T) {
	assert.True(t, VerificationStatusVerified.IsSettled())
	assert.True(t, VerificationStatusFailed.IsSettled())
	assert.False(t, VerificationStatusPending.IsSettled())
	assert.False(t, VerificationStatusDuplicate.IsSettled())
}
