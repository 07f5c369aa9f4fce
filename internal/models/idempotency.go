package models

import "time"

// IdempotencyRecord is what a replayed POST with the same Idempotency-Key
// resolves to.
type IdempotencyRecord struct {
	EntityType EntityType `json:"entityType"`
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"createdAt"`
}
