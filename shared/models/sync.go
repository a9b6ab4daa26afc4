package models

import (
	"encoding/json"
	"time"
)

// Sync item statuses.
const (
	SyncPending   = "pending"
	SyncSyncing   = "syncing"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
	SyncConflict  = "conflict"
)

// Conflict strategies.
const (
	ConflictLocal  = "local"
	ConflictServer = "server"
	ConflictMerge  = "merge"
)

// MaxSyncRetries bounds replay attempts for transient failures.
const MaxSyncRetries = 3

// SyncItem is one queued offline write from a device.
type SyncItem struct {
	ID               string          `json:"id"`
	OrganizationID   string          `json:"-"`
	UserID           string          `json:"userId"`
	DeviceID         string          `json:"deviceId"`
	EntityType       string          `json:"entityType"`
	EntityID         string          `json:"entityId,omitempty"`
	Action           string          `json:"action"`
	Method           string          `json:"method"`
	Path             string          `json:"path"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	BaseVersion      *time.Time      `json:"baseVersion,omitempty"`
	ConflictStrategy string          `json:"conflictStrategy"`
	Status           string          `json:"status"`
	RetryCount       int             `json:"retryCount"`
	LastError        string          `json:"lastError,omitempty"`
	Resolution       string          `json:"resolution,omitempty"`
	ResponseStatus   int             `json:"responseStatus,omitempty"`
	ClientTimestamp  time.Time       `json:"clientTimestamp"`
	CreatedAt        time.Time       `json:"createdTimestamp"`
	UpdatedAt        time.Time       `json:"updatedTimestamp"`
	CompletedAt      *time.Time      `json:"completedTimestamp,omitempty"`
}

type SyncStatus struct {
	DeviceID   string         `json:"deviceId"`
	Counts     map[string]int `json:"counts"`
	LastSyncAt *time.Time     `json:"lastSyncTimestamp,omitempty"`
}
