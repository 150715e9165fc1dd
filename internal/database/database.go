package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robalyx/sharegate/internal/database/migrations"
	"github.com/robalyx/sharegate/internal/setup/config"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bunotel"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// Client defines the methods that a database client must implement.
type Client interface {
	// Model returns the repository containing all model operations.
	Model() *Repository
	// Close gracefully shuts down the database connection.
	Close() error
	// DB returns the underlying bun.DB instance.
	DB() *bun.DB
}

// clientImpl represents the concrete implementation of the database client.
type clientImpl struct {
	db     *bun.DB
	logger *zap.Logger
	repo   *Repository
}

// NewConnection establishes a new database connection and returns a Client instance.
func NewConnection(ctx context.Context, cfg *config.Database, logger *zap.Logger, autoMigrate bool) (Client, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Add query hooks for monitoring
	db.AddQueryHook(NewHook(logger))
	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName("sharegate")))

	// Run migrations if requested
	if autoMigrate {
		if err := Migrate(ctx, db, logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	client := &clientImpl{
		db:     db,
		logger: logger,
		repo:   NewRepository(db, logger),
	}

	logger.Info("Database connection established", zap.String("driver", cfg.Driver))

	return client, nil
}

// openDB opens the bun.DB for the configured driver.
func openDB(cfg *config.Database) (*bun.DB, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
			cfg.Path, cfg.BusyTimeout)

		sqldb, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}

		setPool(sqldb, cfg)

		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case config.DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(cfg.DSN),
			pgdriver.WithApplicationName("sharegate"),
		))

		setPool(sqldb, cfg)

		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidDriver, cfg.Driver)
	}
}

// setPool applies connection pool settings.
func setPool(sqldb *sql.DB, cfg *config.Database) {
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	sqldb.SetConnMaxIdleTime(5 * time.Minute)
}

// NewMigrator returns a migrator over the registered migrations.
func NewMigrator(db *bun.DB) *migrate.Migrator {
	return migrate.NewMigrator(db, migrations.Migrations)
}

// Migrate initializes the migration tables and applies pending migrations.
func Migrate(ctx context.Context, db *bun.DB, logger *zap.Logger) error {
	migrator := NewMigrator(db)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if !group.IsZero() {
		logger.Info("Automatically ran migrations", zap.String("group", group.String()))
	}

	return nil
}

// Close gracefully shuts down the database connection.
func (c *clientImpl) Close() error {
	err := c.db.Close()
	if err != nil {
		c.logger.Error("Failed to close database connection", zap.Error(err))
		return err
	}

	c.logger.Info("Database connection closed")

	return nil
}

// Model returns the repository containing all model operations.
func (c *clientImpl) Model() *Repository {
	return c.repo
}

// DB returns the underlying bun.DB instance.
func (c *clientImpl) DB() *bun.DB {
	return c.db
}
