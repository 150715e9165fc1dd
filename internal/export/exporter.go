// Package export writes audit snapshots of the invite store.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	dbTypes "github.com/robalyx/sharegate/internal/database/types"
	"github.com/robalyx/sharegate/internal/export/csv"
	"github.com/robalyx/sharegate/internal/export/sqlite"
	"github.com/robalyx/sharegate/internal/export/types"
	"go.uber.org/zap"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format represents a supported export format.
type Format string

const (
	FormatSQLite Format = "sqlite"
	FormatCSV    Format = "csv"
)

// EngineVersion is bumped on breaking changes to the export layout.
const EngineVersion = "1.0.0"

// Config holds the configuration for exports.
// A non-empty Salt pseudonymizes referrer IDs and drops names and links.
type Config struct {
	Salt        string   `json:"-"`
	HashType    HashType `json:"hashType,omitempty"`
	Iterations  uint32   `json:"iterations,omitempty"`
	Memory      uint32   `json:"memory,omitempty"`
	Concurrency int      `json:"-"`
	Formats     []Format `json:"formats"`
}

// InviteLister reads every invite record.
type InviteLister interface {
	List(ctx context.Context) ([]*dbTypes.Invite, error)
}

// Exporter writes invite and referrer snapshots.
type Exporter struct {
	invites InviteLister
	outDir  string
	config  *Config
	logger  *zap.Logger
}

// New creates a new exporter instance.
func New(invites InviteLister, outDir string, config *Config, logger *zap.Logger) *Exporter {
	return &Exporter{
		invites: invites,
		outDir:  outDir,
		config:  config,
		logger:  logger.Named("export"),
	}
}

// ExportAll writes the snapshot in every configured format plus a config file.
func (e *Exporter) ExportAll(ctx context.Context) error {
	for _, format := range e.config.Formats {
		if format != FormatSQLite && format != FormatCSV {
			return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
		}
	}

	var pseudonymizer *Pseudonymizer
	if e.pseudonymized() {
		var err error
		pseudonymizer, err = NewPseudonymizer(e.config.Salt, e.config.HashType, e.config.Iterations, e.config.Memory)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(e.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	invites, err := e.invites.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load invites: %w", err)
	}

	e.logger.Info("Starting export",
		zap.Int("invites", len(invites)),
		zap.Bool("pseudonymized", e.pseudonymized()),
		zap.String("outDir", e.outDir))

	inviteRecords, referrerRecords := e.buildRecords(invites, pseudonymizer)

	if err := e.writeConfig(len(inviteRecords), len(referrerRecords)); err != nil {
		return err
	}

	for _, format := range e.config.Formats {
		if err := e.export(format, inviteRecords, referrerRecords); err != nil {
			return fmt.Errorf("failed to export %s format: %w", format, err)
		}
		e.logger.Info("Wrote export", zap.String("format", string(format)))
	}

	return nil
}

func (e *Exporter) pseudonymized() bool {
	return e.config.Salt != ""
}

// buildRecords converts invites into export rows and per-referrer aggregates.
// A non-nil pseudonymizer replaces referrer IDs by their hashes.
func (e *Exporter) buildRecords(
	invites []*dbTypes.Invite, pseudonymizer *Pseudonymizer,
) ([]*types.InviteRecord, []*types.ReferrerRecord) {
	referrers := make(map[int64]*types.ReferrerRecord)
	order := make([]int64, 0, len(invites))

	for _, invite := range invites {
		ref, ok := referrers[invite.ReferrerID]
		if !ok {
			ref = &types.ReferrerRecord{ReferrerName: invite.ReferrerName}
			referrers[invite.ReferrerID] = ref
			order = append(order, invite.ReferrerID)
		}

		ref.Invites++
		ref.Joins += invite.Uses
		ref.Unlocked = ref.Unlocked || invite.Unlocked()
	}

	// Resolve display IDs once per referrer
	var ids map[int64]string
	if pseudonymizer != nil {
		ids = pseudonymizer.HashAll(order, e.config.Concurrency)
	} else {
		ids = make(map[int64]string, len(order))
		for _, id := range order {
			ids[id] = strconv.FormatInt(id, 10)
		}
	}

	inviteRecords := make([]*types.InviteRecord, len(invites))
	for i, invite := range invites {
		record := &types.InviteRecord{
			Referrer:     ids[invite.ReferrerID],
			ReferrerName: invite.ReferrerName,
			InviteToken:  invite.InviteToken,
			Uses:         invite.Uses,
			Active:       invite.Active,
			CreatedAt:    invite.CreatedAt.UTC(),
		}
		if e.pseudonymized() {
			record.ReferrerName = ""
			record.InviteToken = ""
		}
		inviteRecords[i] = record
	}

	referrerRecords := make([]*types.ReferrerRecord, len(order))
	for i, id := range order {
		ref := referrers[id]
		ref.Referrer = ids[id]
		if e.pseudonymized() {
			ref.ReferrerName = ""
		}
		referrerRecords[i] = ref
	}

	// Most active referrers first
	sort.SliceStable(referrerRecords, func(i, j int) bool {
		return referrerRecords[i].Joins > referrerRecords[j].Joins
	})

	return inviteRecords, referrerRecords
}

// writeConfig saves the export parameters next to the data.
func (e *Exporter) writeConfig(invites, referrers int) error {
	jsonConfig := struct {
		*Config

		EngineVersion string    `json:"engineVersion"`
		GeneratedAt   time.Time `json:"generatedAt"`
		Pseudonymized bool      `json:"pseudonymized"`
		Invites       int       `json:"invites"`
		Referrers     int       `json:"referrers"`
	}{
		Config:        e.config,
		EngineVersion: EngineVersion,
		GeneratedAt:   time.Now().UTC(),
		Pseudonymized: e.pseudonymized(),
		Invites:       invites,
		Referrers:     referrers,
	}

	configData, err := sonic.MarshalIndent(jsonConfig, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal export config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(e.outDir, "export_config.json"), configData, 0o600); err != nil {
		return fmt.Errorf("failed to write export config: %w", err)
	}

	return nil
}

// export handles exporting data in the specified format.
func (e *Exporter) export(
	format Format, inviteRecords []*types.InviteRecord, referrerRecords []*types.ReferrerRecord,
) error {
	var exporter interface {
		Export(invites []*types.InviteRecord, referrers []*types.ReferrerRecord) error
	}

	switch format {
	case FormatSQLite:
		exporter = sqlite.New(e.outDir)
	case FormatCSV:
		exporter = csv.New(e.outDir)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return exporter.Export(inviteRecords, referrerRecords)
}
