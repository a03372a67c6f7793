// Package models provides data model definitions for the sync core.
package models

import (
	"encoding/json"
	"time"
)

// CachedEntity is the last known value of a remote entity. It is written
// by the sync manager after any successful read or write and read by UI
// code needing offline-available data. It is never authoritative: server
// data supersedes it whenever the server is reachable.
type CachedEntity struct {
	EntityID   string          `db:"entity_id" json:"entity_id"`
	EntityType EntityType      `db:"entity_type" json:"entity_type"`
	Data       json.RawMessage `db:"data" json:"data"`
	UpdatedAt  int64           `db:"updated_at" json:"updated_at"` // server-side modification time
	CachedAt   int64           `db:"cached_at" json:"cached_at"`   // local write time
}

// DataMap decodes the cached entity value into a generic field map.
func (e *CachedEntity) DataMap() (map[string]interface{}, error) {
	if len(e.Data) == 0 {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdatedAtTime returns UpdatedAt as time.Time.
func (e *CachedEntity) UpdatedAtTime() time.Time {
	return time.Unix(e.UpdatedAt, 0)
}

// Touch updates the local cache timestamp.
func (e *CachedEntity) Touch() {
	e.CachedAt = time.Now().Unix()
}
