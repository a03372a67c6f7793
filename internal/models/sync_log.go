// Package models provides data model definitions for the sync core.
package models

import "time"

// SyncLogEntry is the append-only record of one sync cycle's outcome.
// Entries are created by the sync manager at the end of a cycle and are
// never mutated.
type SyncLogEntry struct {
	ID        int64  `db:"id" json:"id"`
	Timestamp int64  `db:"timestamp" json:"timestamp"`
	Status    string `db:"status" json:"status"` // completed or failed
	Synced    int    `db:"synced" json:"synced"`
	Conflicts int    `db:"conflicts" json:"conflicts"`
	Errors    int    `db:"errors" json:"errors"`
	Reason    string `db:"reason" json:"reason,omitempty"`
}

// TableName returns the collection name for SyncLogEntry.
func (SyncLogEntry) TableName() string {
	return "syncLog"
}

// Time returns the cycle timestamp as time.Time.
func (e *SyncLogEntry) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}
