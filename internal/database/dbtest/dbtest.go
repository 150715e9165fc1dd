// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/robalyx/sharegate/internal/database"
	"github.com/robalyx/sharegate/internal/setup/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Open creates a migrated SQLite database in the test's temp directory.
// The connection is closed when the test finishes.
func Open(t testing.TB) database.Client {
	t.Helper()

	cfg := &config.Database{
		Driver:       config.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "invites.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
		BusyTimeout:  5000,
	}

	db, err := database.NewConnection(t.Context(), cfg, zap.NewNop(), true)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}
