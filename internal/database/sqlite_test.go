package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	got := SplitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- note\nALTER TABLE a ADD COLUMN y TEXT;\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "ALTER TABLE a ADD COLUMN y TEXT"}, got)
}

func TestIsAlreadyExistsError(t *testing.T) {
	assert.True(t, IsAlreadyExistsError(errors.New("SQL logic error: duplicate column name: y (1)")))
	assert.True(t, IsAlreadyExistsError(errors.New("table a already exists")))
	assert.False(t, IsAlreadyExistsError(errors.New("no such table: a")))
}

func TestApplyMigrations_ToleratesExistingColumns(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	// legacy table that already carries one of the added columns
	_, err = db.Exec(`CREATE TABLE a (x INT, y TEXT)`)
	require.NoError(t, err)

	migrations := fstest.MapFS{
		"m/001_init.sql":    {Data: []byte("CREATE TABLE IF NOT EXISTS a (x INT);")},
		"m/002_columns.sql": {Data: []byte("ALTER TABLE a ADD COLUMN y TEXT;\nALTER TABLE a ADD COLUMN z TEXT;")},
	}
	require.NoError(t, ApplyMigrations(ctx, db, migrations, "m"))
	// second run is a no-op
	require.NoError(t, ApplyMigrations(ctx, db, migrations, "m"))

	_, err = db.Exec(`INSERT INTO a (x, y, z) VALUES (1, 'y', 'z')`)
	require.NoError(t, err, "column z must have been added after y was skipped")

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}
