package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Migrate(conn))
	// A second run is a no-op.
	require.NoError(t, Migrate(conn))

	for _, table := range []string{"protocol_state", "accounts", "ledger_movements", "distribution_jobs", "distribution_job_holders"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}
