package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

type QueueStatus string

const (
	QueuePending QueueStatus = "pending"
	QueueSyncing QueueStatus = "syncing"
	QueueFailed  QueueStatus = "failed"
)

// QueueItem is a local mutation waiting to be sent to the remote API.
type QueueItem struct {
	Seq         int64           `json:"seq"`
	Action      Action          `json:"action"`
	EntityType  EntityType      `json:"entityType"`
	Payload     json.RawMessage `json:"payload"`
	LocalID     string          `json:"localId"`
	RemoteID    string          `json:"remoteId,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	RetryCount  int             `json:"retryCount"`
	Status      QueueStatus     `json:"status"`
	LastAttempt *time.Time      `json:"lastAttempt,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// TargetID is the id the remote call addresses: the server id once known.
func (q *QueueItem) TargetID() string {
	if q.RemoteID != "" {
		return q.RemoteID
	}
	return q.LocalID
}

// MirrorRecord is the on-device copy of an entity.
type MirrorRecord struct {
	EntityType EntityType      `json:"entityType"`
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Payload    json.RawMessage `json:"payload"`
	Synced     bool            `json:"synced"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func NewMirrorRecord(e Entity, synced bool) (*MirrorRecord, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", e.EntityType(), err)
	}
	return &MirrorRecord{
		EntityType: e.EntityType(),
		ID:         e.GetID(),
		UserID:     e.GetUserID(),
		Payload:    payload,
		Synced:     synced,
		UpdatedAt:  e.GetUpdatedAt(),
	}, nil
}

func (r *MirrorRecord) Entity() (Entity, error) {
	return Decode(r.EntityType, r.Payload)
}
