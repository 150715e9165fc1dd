package setup

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robalyx/sharegate/internal/database"
	"github.com/robalyx/sharegate/internal/redis"
	"github.com/robalyx/sharegate/internal/referral"
	"github.com/robalyx/sharegate/internal/setup/config"
	"github.com/robalyx/sharegate/internal/setup/telemetry"
	"github.com/robalyx/sharegate/internal/telegram"
	"go.uber.org/zap"
)

// ErrPendingMigrations is returned when the schema is behind and auto-migration is off.
var ErrPendingMigrations = errors.New("database migrations are pending")

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config     // Application configuration
	Logger       *zap.Logger        // Main application logger
	DBLogger     *zap.Logger        // Database-specific logger
	DB           database.Client    // Invite store connection
	Telegram     *telegram.Client   // Bot API client
	RedisManager *redis.Manager     // Redis connection manager, unused unless enabled
	Locker       referral.Locker    // Summary publish lock
	Referral     *referral.Service  // Issuer, correlator and broadcaster
	LogManager   *telemetry.Manager // Log management system
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, serviceType telemetry.ServiceType, logDir string) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	return NewApp(ctx, cfg, serviceType, logDir, configDir)
}

// NewApp builds the application from an already loaded configuration.
func NewApp(
	ctx context.Context, cfg *config.Config, serviceType telemetry.ServiceType, logDir, configDir string,
) (*App, error) {
	// Logging system is initialized next to capture setup issues
	logManager := telemetry.NewManager(serviceType, logDir, &cfg.Debug)

	logger, dbLogger, err := logManager.GetLoggers()
	if err != nil {
		return nil, err
	}

	if configDir != "" {
		logger.Info("Loaded config file", zap.String("dir", configDir))
	}

	db, err := checkAndRunMigrations(ctx, &cfg.Database, dbLogger)
	if err != nil {
		return nil, err
	}

	tg := telegram.NewClient(telegram.Options{
		APIURL:        cfg.Telegram.APIURL,
		Token:         cfg.Telegram.Token,
		Timeout:       serviceType.GetRequestTimeout(cfg),
		MaxRetries:    cfg.Retry.MaxRetries,
		RetryDelay:    time.Duration(cfg.Retry.Delay) * time.Millisecond,
		MaxRetryDelay: time.Duration(cfg.Retry.MaxDelay) * time.Millisecond,
	}, logger)

	// Redis manager is only connected when the shared lock is enabled
	redisManager := redis.NewManager(&cfg.Redis, logger)

	locker, err := newLocker(cfg, redisManager, logger)
	if err != nil {
		redisManager.Close()
		_ = db.Close()
		return nil, err
	}

	svc := referral.New(
		tg,
		db.Model().Invite(),
		db.Model().Meta(),
		locker,
		referral.Settings{
			ChatID:      cfg.Telegram.ChatID,
			PrivateLink: cfg.Telegram.PrivateLink,
		},
		logger,
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger.Named("database"),
		DB:           db,
		Telegram:     tg,
		RedisManager: redisManager,
		Locker:       locker,
		Referral:     svc,
		LogManager:   logManager,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup() {
	// Close database connections
	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	s.RedisManager.Close()

	// Sync buffered logs last so shutdown errors are captured
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}
}

// newLocker returns the Redis-backed lock when Redis is enabled and an
// in-process lock otherwise.
func newLocker(cfg *config.Config, redisManager *redis.Manager, logger *zap.Logger) (referral.Locker, error) {
	if !cfg.Redis.Enabled {
		return referral.NewLocalLocker(), nil
	}

	client, err := redisManager.GetClient()
	if err != nil {
		return nil, err
	}

	logger.Info("Using Redis publish lock",
		zap.String("host", cfg.Redis.Host),
		zap.Int("port", cfg.Redis.Port))

	return redis.NewLock(client, redis.PublishLockKey, time.Duration(cfg.Redis.LockTTL)*time.Millisecond, logger), nil
}

// checkAndRunMigrations opens the database and applies pending migrations
// when auto-migration is enabled. Otherwise pending migrations are an error.
func checkAndRunMigrations(ctx context.Context, cfg *config.Database, dbLogger *zap.Logger) (database.Client, error) {
	db, err := database.NewConnection(ctx, cfg, dbLogger, cfg.AutoMigrate)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		return db, nil
	}

	if err := CheckMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// CheckMigrations returns ErrPendingMigrations when the schema is behind.
func CheckMigrations(ctx context.Context, db database.Client) error {
	migrator := database.NewMigrator(db.DB())
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	ms, err := migrator.MigrationsWithStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to check migration status: %w", err)
	}

	if unapplied := ms.Unapplied(); len(unapplied) > 0 {
		return fmt.Errorf("%w: %d unapplied, run `db migrate`", ErrPendingMigrations, len(unapplied))
	}

	return nil
}
