package sqlite_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalyx/sharegate/internal/export/sqlite"
	"github.com/robalyx/sharegate/internal/export/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	zsqlite "zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// queryRows runs query against the exported database and returns every row as text.
func queryRows(t *testing.T, path, query string) [][]string {
	t.Helper()

	conn, err := zsqlite.OpenConn(path, zsqlite.OpenReadOnly)
	require.NoError(t, err)
	defer conn.Close()

	var rows [][]string
	err = sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *zsqlite.Stmt) error {
			row := make([]string, stmt.ColumnCount())
			for i := range row {
				row[i] = stmt.ColumnText(i)
			}
			rows = append(rows, row)
			return nil
		},
	})
	require.NoError(t, err)

	return rows
}

func TestExporter_Export(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	invites := []*types.InviteRecord{
		{Referrer: "100", ReferrerName: "alice", InviteToken: "https://t.me/+a", Uses: 2, CreatedAt: created},
		{Referrer: "100", ReferrerName: "alice", InviteToken: "https://t.me/+c", Uses: 0, Active: true, CreatedAt: created},
		{Referrer: "200", ReferrerName: "o'brien", InviteToken: "https://t.me/+b", Uses: 1, Active: true, CreatedAt: created},
	}
	referrers := []*types.ReferrerRecord{
		{Referrer: "100", ReferrerName: "alice", Invites: 2, Joins: 2, Unlocked: true},
		{Referrer: "200", ReferrerName: "o'brien", Invites: 1, Joins: 1},
	}

	require.NoError(t, sqlite.New(tempDir).Export(invites, referrers))
	path := filepath.Join(tempDir, sqlite.FileName)

	rows := queryRows(t, path,
		"SELECT referrer, referrer_name, invite_token, uses, active, created_at FROM invites ORDER BY id")
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"100", "alice", "https://t.me/+a", "2", "0", "2025-06-01T12:00:00Z"}, rows[0])
	assert.Equal(t, []string{"200", "o'brien", "https://t.me/+b", "1", "1", "2025-06-01T12:00:00Z"}, rows[2])

	rows = queryRows(t, path, "SELECT referrer, invites, joins, unlocked FROM referrers ORDER BY referrer")
	assert.Equal(t, [][]string{{"100", "2", "2", "1"}, {"200", "1", "1", "0"}}, rows)
}

func TestExporter_DuplicateReferrer(t *testing.T) {
	t.Parallel()

	referrers := []*types.ReferrerRecord{
		{Referrer: "100"},
		{Referrer: "100"},
	}

	require.Error(t, sqlite.New(t.TempDir()).Export(nil, referrers))
}

func TestExporter_ExistingFile(t *testing.T) {
	t.Parallel()
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, sqlite.FileName)

	require.NoError(t, os.WriteFile(path, []byte("invalid sqlite db"), 0o644))

	// Export should overwrite the existing file
	require.NoError(t, sqlite.New(tempDir).Export(nil, []*types.ReferrerRecord{{Referrer: "1"}}))

	rows := queryRows(t, path, "SELECT referrer FROM referrers")
	assert.Equal(t, [][]string{{"1"}}, rows)
}
