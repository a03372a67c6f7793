// Package models provides data model definitions for the sync core.
package models

import (
	"encoding/json"
	"time"
)

// EntityType identifies the kind of remote entity a change targets.
type EntityType string

const (
	EntityCampaign EntityType = "campaign"
	EntityFilter   EntityType = "filter"
)

// IsValid returns true if the entity type is recognized.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityCampaign, EntityFilter:
		return true
	default:
		return false
	}
}

// AllEntityTypes returns every supported entity type.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityCampaign, EntityFilter}
}

// Operation identifies the mutation a change carries.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// IsValid returns true if the operation is recognized.
func (o Operation) IsValid() bool {
	switch o {
	case OperationCreate, OperationUpdate, OperationDelete:
		return true
	default:
		return false
	}
}

// ChangeStatus is the lifecycle status of a pending change.
type ChangeStatus string

const (
	ChangePending  ChangeStatus = "pending"
	ChangeSynced   ChangeStatus = "synced"
	ChangeFailed   ChangeStatus = "failed"
	ChangeDisabled ChangeStatus = "disabled"
)

// Terminal reports whether the status excludes the change from future drains.
func (s ChangeStatus) Terminal() bool {
	return s == ChangeSynced || s == ChangeFailed || s == ChangeDisabled
}

// PendingChange is a locally recorded, not-yet-acknowledged mutation intent.
// Changes form an append-only log: they are created by the public enqueue
// API, mutated only by the sync manager and never deleted.
type PendingChange struct {
	ID         int64           `db:"id" json:"id"`
	EntityType EntityType      `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id,omitempty"` // empty for create
	Operation  Operation       `db:"operation" json:"operation"`
	Data       json.RawMessage `db:"data" json:"data,omitempty"`
	Timestamp  int64           `db:"timestamp" json:"timestamp"` // client clock at enqueue, unix seconds
	RetryCount int             `db:"retry_count" json:"retry_count"`
	Status     ChangeStatus    `db:"status" json:"status"`
	LastError  string          `db:"last_error" json:"last_error,omitempty"`
}

// TableName returns the collection name for PendingChange.
func (PendingChange) TableName() string {
	return "pendingChanges"
}

// Time returns the enqueue timestamp as time.Time.
func (c *PendingChange) Time() time.Time {
	return time.Unix(c.Timestamp, 0)
}

// DataMap decodes the opaque payload into a generic field map.
// Returns an empty map when the change carries no data (delete).
func (c *PendingChange) DataMap() (map[string]interface{}, error) {
	if len(c.Data) == 0 {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(c.Data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the invariants the enqueue API must reject violations of:
// update/delete require an entity id, create/update require a payload.
func (c *PendingChange) Validate() error {
	if !c.EntityType.IsValid() {
		return &ValidationError{Field: "entity_type", Value: string(c.EntityType)}
	}
	if !c.Operation.IsValid() {
		return &ValidationError{Field: "operation", Value: string(c.Operation)}
	}
	if c.Operation != OperationCreate && c.EntityID == "" {
		return &ValidationError{Field: "entity_id", Value: "", Reason: "required for " + string(c.Operation)}
	}
	if c.Operation != OperationDelete && len(c.Data) == 0 {
		return &ValidationError{Field: "data", Value: "", Reason: "required for " + string(c.Operation)}
	}
	return nil
}

// ValidationError reports an invalid enqueue argument.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return "invalid " + e.Field + ": " + e.Reason
	}
	return "invalid " + e.Field + ": " + e.Value
}
