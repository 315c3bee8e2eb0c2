package domain

import (
	"time"

	"github.com/google/uuid"
)

// OTPPurpose scopes a one-time code to a single kind of sensitive action.
// A code issued for one purpose must not validate a request for another.
type OTPPurpose string

const (
	OTPPurposeFunding         OTPPurpose = "FUNDING"
	OTPPurposeDeduction       OTPPurpose = "DEDUCTION"
	OTPPurposeSensitiveAction OTPPurpose = "SENSITIVE_ACTION"
)

// OTPChannel tags how the code was delivered to the user.
type OTPChannel string

const (
	OTPChannelEmail OTPChannel = "EMAIL"
	OTPChannelSMS   OTPChannel = "SMS"
)

// OneTimeCode is an ephemeral, attempt-limited challenge. Only the hash
// of the code is ever stored.
type OneTimeCode struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        uuid.UUID  `json:"owner_id"`
	CodeHash       string     `json:"-"` // argon2id, never the plaintext
	Purpose        OTPPurpose `json:"purpose"`
	BoundReference *string    `json:"bound_reference,omitempty"`
	ExpiresAt      time.Time  `json:"expires_at"`
	Attempts       int        `json:"attempts"`
	MaxAttempts    int        `json:"max_attempts"`
	IsUsed         bool       `json:"is_used"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
	IsLocked       bool       `json:"is_locked"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	Channel        OTPChannel `json:"channel"`
	CreatedAt      time.Time  `json:"created_at"`
}

// IsExpired reports whether the code is past its expiry at the given time.
func (c *OneTimeCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsExhausted reports whether the code has burned all allowed attempts.
func (c *OneTimeCode) IsExhausted() bool {
	return c.IsLocked || c.Attempts >= c.MaxAttempts
}
