package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog caches a completed mutation result so a retried request
// returns the original outcome instead of producing a second side effect.
type IdempotencyLog struct {
	Key           string    `json:"key"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ResponseJSON  []byte    `json:"response_json"` // Cached response to return
	CreatedAt     time.Time `json:"created_at"`
}

// BuildAdjustIdempotencyKey constructs the key for balance adjustments.
func BuildAdjustIdempotencyKey(ownerID uuid.UUID, key string) string {
	return ownerID.String() + ":adjust:" + key
}
