// Package store provides the local persistent store.
package store

import (
	"fmt"
	"strings"
)

// IndexDef declares a secondary index over a top-level JSON field of the
// stored items. Indexes are non-unique.
type IndexDef struct {
	// Field is the JSON key the index extracts from each item.
	Field string

	// Numeric selects INTEGER column affinity (timestamps, counters).
	Numeric bool
}

// CollectionDef declares one collection: its primary key mode and its
// secondary indexes.
type CollectionDef struct {
	// Name is the collection (table) name.
	Name string

	// AutoID selects a store-assigned monotonic integer primary key.
	// When false the collection is keyed by a caller-supplied string key.
	AutoID bool

	// Indexes are the secondary indexes maintained for the collection.
	Indexes []IndexDef
}

// Schema declares a logical database: a named set of collections with a
// schema version. Bump Version when collections or indexes change.
type Schema struct {
	Name        string
	Version     int
	Collections []CollectionDef
}

// The three logical databases of the sync core. Collection and index
// names follow the persistent schema contract: the request log, the
// entity cache with the pending-change queue and sync log, and local
// settings.

// OfflineRequestsSchema holds captured mutation requests awaiting replay
// and cached read responses for the caching policies.
func OfflineRequestsSchema() Schema {
	return Schema{
		Name:    "offline-requests",
		Version: 1,
		Collections: []CollectionDef{
			{
				Name:   "requests",
				AutoID: true,
				Indexes: []IndexDef{
					{Field: "url"},
					{Field: "timestamp", Numeric: true},
				},
			},
			{
				Name: "responses", // keyed by url
				Indexes: []IndexDef{
					{Field: "cached_at", Numeric: true},
				},
			},
		},
	}
}

// OfflineDataSchema holds cached entities, the pending-change queue and
// the sync log.
func OfflineDataSchema() Schema {
	return Schema{
		Name:    "offline-data",
		Version: 1,
		Collections: []CollectionDef{
			{
				Name: "campaigns", // keyed by entity_id
				Indexes: []IndexDef{
					{Field: "updated_at", Numeric: true},
				},
			},
			{
				Name: "filters", // keyed by entity_id
				Indexes: []IndexDef{
					{Field: "updated_at", Numeric: true},
				},
			},
			{
				Name:   "syncLog",
				AutoID: true,
				Indexes: []IndexDef{
					{Field: "timestamp", Numeric: true},
					{Field: "status"},
				},
			},
			{
				Name:   "pendingChanges",
				AutoID: true,
				Indexes: []IndexDef{
					{Field: "entity_id"},
					{Field: "entity_type"},
					{Field: "operation"},
					{Field: "timestamp", Numeric: true},
					{Field: "status"},
				},
			},
		},
	}
}

// LocalSettingsSchema holds string-keyed settings and user preferences,
// independent of sync.
func LocalSettingsSchema() Schema {
	return Schema{
		Name:    "local-settings",
		Version: 1,
		Collections: []CollectionDef{
			{Name: "settings"},
			{Name: "userPreferences"},
		},
	}
}

// DDL renders the CREATE statements for the schema. All statements use
// IF NOT EXISTS so re-applying after adding a collection is safe.
func (s Schema) DDL() string {
	var b strings.Builder
	for _, c := range s.Collections {
		b.WriteString(c.ddl())
	}
	return b.String()
}

func (c CollectionDef) ddl() string {
	var cols []string
	if c.AutoID {
		cols = append(cols, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	} else {
		cols = append(cols, "key TEXT PRIMARY KEY")
	}
	cols = append(cols, "data TEXT NOT NULL")
	for _, idx := range c.Indexes {
		cols = append(cols, fmt.Sprintf("%s %s", idx.column(), idx.affinity()))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %q (%s);\n", c.Name, strings.Join(cols, ", "))
	for _, idx := range c.Indexes {
		fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS %q ON %q (%s);\n",
			"idx_"+c.Name+"_"+idx.Field, c.Name, idx.column())
	}
	return b.String()
}

// column returns the SQL column name backing the index field.
func (i IndexDef) column() string {
	return `"` + i.Field + `"`
}

func (i IndexDef) affinity() string {
	if i.Numeric {
		return "INTEGER"
	}
	return "TEXT"
}

// indexFor returns the index definition for a field, if declared.
func (c CollectionDef) indexFor(field string) (IndexDef, bool) {
	for _, idx := range c.Indexes {
		if idx.Field == field {
			return idx, true
		}
	}
	return IndexDef{}, false
}
