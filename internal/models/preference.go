// Package models provides data model definitions for the sync core.
package models

// UserPreference is a simple key/value pair persisted locally, independent
// of sync (debug flags, UI filter persistence).
type UserPreference struct {
	Key       string `db:"key" json:"key"`
	Value     string `db:"value" json:"value"`
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the collection name for UserPreference.
func (UserPreference) TableName() string {
	return "userPreferences"
}
