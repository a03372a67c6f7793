// Package store provides the local persistent store: an embedded,
// transactional key-value layer with secondary indexes, organized into
// independent logical databases.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Database wraps one logical database backed by its own SQLite file.
// Opening is idempotent: missing collections and indexes are created on
// first use from the versioned schema.
type Database struct {
	db     *sql.DB
	schema Schema
}

// OpenDatabase opens (or creates) a logical database under dataDir and
// applies the schema. The database is opened with WAL mode for concurrent
// readers and a single writer connection.
func OpenDatabase(dataDir string, schema Schema) (*Database, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, schema.Name+".db")

	// Open database with modernc.org/sqlite (pure Go, no CGO)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", schema.Name, err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &Database{db: db, schema: schema}

	migrator := NewMigrator(db, schema)
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database %s: %w", schema.Name, err)
	}

	return d, nil
}

// Collection returns a handle to a named collection. The collection must
// be declared in the database schema.
func (d *Database) Collection(name string) (*Collection, error) {
	for i := range d.schema.Collections {
		if d.schema.Collections[i].Name == name {
			return &Collection{db: d.db, def: d.schema.Collections[i]}, nil
		}
	}
	return nil, fmt.Errorf("collection %q not declared in database %q", name, d.schema.Name)
}

// MustCollection returns a collection handle and panics if the collection
// is not declared. Intended for wiring at startup against static schemas.
func (d *Database) MustCollection(name string) *Collection {
	c, err := d.Collection(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	return d.db.Close()
}
