package cqrs

import (
	"encoding/json"
	"time"
)

// ---------- Sync commands ----------

type SyncItemInput struct {
	ID               string
	EntityType       string
	EntityID         string
	Action           string
	Method           string
	Path             string
	Payload          json.RawMessage
	BaseVersion      *time.Time
	ConflictStrategy string
	ClientTimestamp  time.Time
}

type EnqueueSyncCommand struct {
	OrganizationID string
	UserID         string
	DeviceID       string
	Items          []SyncItemInput
}

// ProcessSyncCommand replays a device's queue. Token is the caller's bearer
// token, forwarded on every replayed request.
type ProcessSyncCommand struct {
	OrganizationID string
	UserID         string
	DeviceID       string
	Token          string
	EntityTypes    []string
	EntityID       string
}

type RetrySyncItemCommand struct {
	OrganizationID string
	UserID         string
	ItemID         string
}

type ClearCompletedCommand struct {
	OrganizationID string
	UserID         string
	DeviceID       string
}

// ---------- Sync queries ----------

type SyncStatusQuery struct {
	OrganizationID string
	UserID         string
	DeviceID       string
}

type SyncItemsQuery struct {
	OrganizationID string
	UserID         string
	DeviceID       string
	Status         string
}
