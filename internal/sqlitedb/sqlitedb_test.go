package sqlitedb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	migrations := []string{
		`CREATE TABLE things (id TEXT PRIMARY KEY)`,
		`ALTER TABLE things ADD COLUMN name TEXT NOT NULL DEFAULT ''`,
	}

	t.Run("success - applies migrations once", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "test.db")

		db, err := Open(path, migrations)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO things (id, name) VALUES ('a', 'first')`)
		require.NoError(t, err)
		require.NoError(t, db.Close())

		db, err = Open(path, migrations)
		require.NoError(t, err)
		defer db.Close()

		var version, count int
		require.NoError(t, db.QueryRow(`SELECT MAX(version) FROM schema_migrations`).Scan(&version))
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM things`).Scan(&count))
		assert.Equal(t, 2, version)
		assert.Equal(t, 1, count)
	})

	t.Run("error - broken migration", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "bad.db"), []string{"NOT SQL"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run migration 1")
	})
}
