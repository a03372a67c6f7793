package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigratorAppliesSchemaOnce(t *testing.T) {
	dir := t.TempDir()
	schema := OfflineDataSchema()

	db, err := OpenDatabase(dir, schema)
	require.NoError(t, err)

	migrator := NewMigrator(db.db, schema)
	version, err := migrator.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, schema.Version, version)

	applied, err := migrator.GetAppliedMigrations()
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Len(t, applied[0].Checksum, 64)
	assert.NotZero(t, applied[0].AppliedAt)
	require.NoError(t, db.Close())

	// Reopening must not re-apply.
	db, err = OpenDatabase(dir, schema)
	require.NoError(t, err)
	defer db.Close()

	applied, err = NewMigrator(db.db, schema).GetAppliedMigrations()
	require.NoError(t, err)
	assert.Len(t, applied, 1)
}

func TestSchemaDDLIsDeterministic(t *testing.T) {
	a := OfflineRequestsSchema().DDL()
	b := OfflineRequestsSchema().DDL()
	assert.Equal(t, a, b)

	assert.Contains(t, a, "CREATE TABLE IF NOT EXISTS")
	assert.Contains(t, a, "CREATE INDEX IF NOT EXISTS")
}
