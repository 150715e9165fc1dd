package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/robalyx/sharegate/internal/database"
	"github.com/robalyx/sharegate/internal/setup"
	"github.com/robalyx/sharegate/internal/setup/config"
	"github.com/robalyx/sharegate/internal/setup/telemetry"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// DBLogDir specifies where schema tool log files are stored.
	DBLogDir = "logs/db_logs"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "db",
		Usage: "Invite store schema tool",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply pending migrations",
				Action: withStore(func(ctx context.Context, db database.Client, logger *zap.Logger) error {
					if err := database.Migrate(ctx, db.DB(), logger); err != nil {
						return err
					}

					logger.Info("Invite store schema is up to date")
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "Report whether migrations are pending",
				Action: withStore(func(ctx context.Context, db database.Client, logger *zap.Logger) error {
					err := setup.CheckMigrations(ctx, db)
					if errors.Is(err, setup.ErrPendingMigrations) {
						logger.Warn("Schema is behind", zap.Error(err))
						return err
					} else if err != nil {
						return err
					}

					logger.Info("No pending migrations")
					return nil
				}),
			},
			{
				Name:  "rollback",
				Usage: "Roll back the last migration group",
				Action: withStore(rollback),
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// withStore opens the invite store with the sharegate config and loggers
// and closes it after the action returns.
func withStore(
	action func(ctx context.Context, db database.Client, logger *zap.Logger) error,
) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		cfg, configDir, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logManager := telemetry.NewManager(telemetry.ServiceAdmin, DBLogDir, &cfg.Debug)

		logger, dbLogger, err := logManager.GetLoggers()
		if err != nil {
			return fmt.Errorf("failed to create loggers: %w", err)
		}
		defer logger.Sync() //nolint:errcheck

		if configDir != "" {
			logger.Info("Loaded config file", zap.String("dir", configDir))
		}

		db, err := database.NewConnection(ctx, &cfg.Database, dbLogger, false)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		return action(ctx, db, logger)
	}
}

func rollback(ctx context.Context, db database.Client, logger *zap.Logger) error {
	migrator := database.NewMigrator(db.DB())
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to lock migrations: %w", err)
	}
	defer migrator.Unlock(ctx) //nolint:errcheck

	group, err := migrator.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}

	if group.IsZero() {
		logger.Info("Nothing to roll back")
		return nil
	}

	logger.Info("Rolled back migration group", zap.String("group", group.String()))
	return nil
}
