package domain

import (
	"time"

	"github.com/google/uuid"
)

// WalletStatus represents the lifecycle state of a wallet.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "ACTIVE"
	WalletStatusFrozen    WalletStatus = "FROZEN"
	WalletStatusSuspended WalletStatus = "SUSPENDED"
)

// ActorTag identifies who performed the last wallet mutation.
type ActorTag string

const (
	ActorSystem     ActorTag = "SYSTEM"
	ActorAdmin      ActorTag = "ADMIN"
	ActorUserAction ActorTag = "USER_ACTION"
)

// EncryptionMeta carries the per-wallet key-derivation parameters.
// The salt is random per wallet so identical credentials never derive
// identical keys across wallets.
type EncryptionMeta struct {
	Algorithm  string `json:"algorithm"`  // e.g. "AES-256-GCM"
	KDF        string `json:"kdf"`        // e.g. "PBKDF2-SHA256"
	Iterations int    `json:"iterations"` // KDF iteration count
	SaltHex    string `json:"salt"`       // hex-encoded random salt
}

// OriginMetadata records where a wallet was provisioned from.
type OriginMetadata struct {
	IPAddress string `json:"ip_address,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
	Location  string `json:"location,omitempty"`
}

// Wallet represents a user's encrypted monetary balance. One per user.
// The decrypted balance is always >= 0 and the version counter strictly
// increases on every successful mutation. Wallets are never deleted;
// status transitions replace deletion.
type Wallet struct {
	ID               uuid.UUID      `json:"id"`
	OwnerID          uuid.UUID      `json:"owner_id"`
	Currency         string         `json:"currency"`
	EncryptedBalance string         `json:"-"` // ciphertext, never expose raw
	Encryption       EncryptionMeta `json:"-"`
	Status           WalletStatus   `json:"status"`
	LastUpdatedBy    ActorTag       `json:"last_updated_by"`
	RiskScore        int            `json:"risk_score"` // 0..100
	Version          int64          `json:"version"`
	Origin           OriginMetadata `json:"origin"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// IsActive returns true if the wallet accepts balance mutations.
func (w *Wallet) IsActive() bool {
	return w.Status == WalletStatusActive
}
