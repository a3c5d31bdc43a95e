package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/pagesum-go/internal/assets"
	"github.com/vrsandeep/pagesum-go/internal/db"
	"github.com/vrsandeep/pagesum-go/internal/testutil"
)

func TestForeignKeyCascadeDelete(t *testing.T) {
	database := testutil.SetupTestDB(t)

	var foreignKeysEnabled int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysEnabled))
	assert.Equal(t, 1, foreignKeysEnabled)

	_, err := database.Exec("INSERT INTO users (username, password_hash, token) VALUES (?, ?, ?)", "alice", "hash", "tok")
	require.NoError(t, err)
	_, err = database.Exec("INSERT INTO history (user_id, url, summary) VALUES (1, 'https://a.example', 's')")
	require.NoError(t, err)
	_, err = database.Exec("INSERT INTO history (user_id, url, summary) VALUES (NULL, 'https://b.example', 's')")
	require.NoError(t, err)

	_, err = database.Exec("DELETE FROM users WHERE id = 1")
	require.NoError(t, err)

	var count int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM history").Scan(&count))
	assert.Equal(t, 1, count, "anonymous history must survive user deletion")
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	database, err := db.InitDB(":memory:")
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, db.RunMigrations(database, assets.MigrationsFS))
	require.NoError(t, db.RunMigrations(database, assets.MigrationsFS))

	_, err = database.Exec("INSERT INTO users (username, password_hash, token) VALUES ('a', 'h', 't1')")
	require.NoError(t, err)
	_, err = database.Exec("INSERT INTO users (username, password_hash, token) VALUES ('a', 'h', 't2')")
	assert.Error(t, err, "usernames are unique")
}
