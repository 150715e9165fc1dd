package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robalyx/sharegate/internal/export/types"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// FileName is the database written by the exporter.
const FileName = "sharegate_export.db"

const schema = `
CREATE TABLE invites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	referrer TEXT NOT NULL,
	referrer_name TEXT NOT NULL,
	invite_token TEXT NOT NULL,
	uses INTEGER NOT NULL,
	active INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX idx_invites_referrer ON invites (referrer);
CREATE TABLE referrers (
	referrer TEXT PRIMARY KEY,
	referrer_name TEXT NOT NULL,
	invites INTEGER NOT NULL,
	joins INTEGER NOT NULL,
	unlocked INTEGER NOT NULL
);`

// Exporter handles exporting records to a SQLite database.
type Exporter struct {
	outDir string
}

// New creates a new SQLite exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes invite and referrer records into one database with a
// table each, replacing an earlier export.
func (e *Exporter) Export(invites []*types.InviteRecord, referrers []*types.ReferrerRecord) (err error) {
	path := filepath.Join(e.outDir, FileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing file %s: %w", FileName, err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate|sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	defer conn.Close()

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Everything is written in one transaction
	defer sqlitex.Save(conn)(&err)

	for _, record := range invites {
		err := sqlitex.Execute(conn,
			"INSERT INTO invites (referrer, referrer_name, invite_token, uses, active, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{
					record.Referrer, record.ReferrerName, record.InviteToken,
					record.Uses, record.Active, record.CreatedAt.Format(time.RFC3339),
				},
			})
		if err != nil {
			return fmt.Errorf("failed to insert invite: %w", err)
		}
	}

	for _, record := range referrers {
		err := sqlitex.Execute(conn,
			"INSERT INTO referrers (referrer, referrer_name, invites, joins, unlocked) VALUES (?, ?, ?, ?, ?)",
			&sqlitex.ExecOptions{
				Args: []any{record.Referrer, record.ReferrerName, record.Invites, record.Joins, record.Unlocked},
			})
		if err != nil {
			return fmt.Errorf("failed to insert referrer: %w", err)
		}
	}

	return nil
}
