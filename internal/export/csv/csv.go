package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robalyx/sharegate/internal/export/types"
)

// File names written by the exporter.
const (
	InvitesFile   = "invites.csv"
	ReferrersFile = "referrers.csv"
)

// Exporter handles exporting records to csv files.
type Exporter struct {
	outDir string
}

// New creates a new csv exporter instance.
func New(outDir string) *Exporter {
	return &Exporter{outDir: outDir}
}

// Export writes invite and referrer records to separate csv files,
// replacing earlier exports.
func (e *Exporter) Export(invites []*types.InviteRecord, referrers []*types.ReferrerRecord) error {
	inviteRows := make([][]string, len(invites))
	for i, record := range invites {
		inviteRows[i] = []string{
			record.Referrer,
			record.ReferrerName,
			record.InviteToken,
			strconv.Itoa(record.Uses),
			strconv.FormatBool(record.Active),
			record.CreatedAt.Format(time.RFC3339),
		}
	}

	err := e.writeFile(InvitesFile,
		[]string{"referrer", "referrer_name", "invite_token", "uses", "active", "created_at"}, inviteRows)
	if err != nil {
		return fmt.Errorf("failed to export invites: %w", err)
	}

	referrerRows := make([][]string, len(referrers))
	for i, record := range referrers {
		referrerRows[i] = []string{
			record.Referrer,
			record.ReferrerName,
			strconv.Itoa(record.Invites),
			strconv.Itoa(record.Joins),
			strconv.FormatBool(record.Unlocked),
		}
	}

	err = e.writeFile(ReferrersFile,
		[]string{"referrer", "referrer_name", "invites", "joins", "unlocked"}, referrerRows)
	if err != nil {
		return fmt.Errorf("failed to export referrers: %w", err)
	}

	return nil
}

// writeFile writes a header and rows to a csv file.
func (e *Exporter) writeFile(filename string, header []string, rows [][]string) error {
	file, err := os.Create(filepath.Join(e.outDir, filename))
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	return nil
}
