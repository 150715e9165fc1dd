package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robalyx/sharegate/internal/export"
	"github.com/robalyx/sharegate/internal/setup"
	"github.com/robalyx/sharegate/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
)

const (
	// ExportLogDir specifies where export log files are stored.
	ExportLogDir = "logs/export_logs"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "export",
		Usage: "Export invites and referrer totals for auditing",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "exports",
				Usage:   "Base output directory for export files",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "sqlite,csv",
				Usage:   "Comma separated list of formats (sqlite, csv)",
			},
			&cli.StringFlag{
				Name:    "salt",
				Aliases: []string{"s"},
				Usage:   "Salt for hashing referrer IDs; names and links are dropped when set",
			},
			&cli.StringFlag{
				Name:    "hash-type",
				Aliases: []string{"t"},
				Value:   string(export.HashTypeSHA256),
				Usage:   "Hash algorithm to use (argon2id or sha256)",
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"c"},
				Usage:   "Number of concurrent hash operations",
				Value:   1,
			},
			&cli.UintFlag{
				Name:    "iterations",
				Aliases: []string{"i"},
				Usage:   "Number of hash iterations",
			},
			&cli.UintFlag{
				Name:    "memory",
				Aliases: []string{"m"},
				Usage:   "Memory to use for Argon2id in MB",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			config := getExportConfig(c)

			// Initialize application with required dependencies
			app, err := setup.InitializeApp(ctx, telemetry.ServiceExport, ExportLogDir)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Cleanup()

			// Create timestamped output directory
			timestamp := time.Now().UTC().Format("2006-01-02_150405")
			outDir := filepath.Join(c.String("output"), timestamp)

			exporter := export.New(app.DB.Model().Invite(), outDir, config, app.Logger)
			if err := exporter.ExportAll(ctx); err != nil {
				return fmt.Errorf("failed to export data: %w", err)
			}

			log.Printf("Export written to %s", outDir)

			return nil
		},
	}

	return app.Run(context.Background(), os.Args)
}

// getExportConfig builds the export configuration from CLI flags.
// Hash parameters are validated by the exporter.
func getExportConfig(c *cli.Command) *export.Config {
	config := &export.Config{
		Salt:        c.String("salt"),
		HashType:    export.HashType(c.String("hash-type")),
		Concurrency: int(c.Int("concurrency")),
		Iterations:  uint32(c.Uint("iterations")), //nolint:gosec // -
		Memory:      uint32(c.Uint("memory")),     //nolint:gosec // -
	}

	for _, format := range strings.Split(c.String("format"), ",") {
		if format = strings.TrimSpace(format); format != "" {
			config.Formats = append(config.Formats, export.Format(format))
		}
	}

	return config
}
