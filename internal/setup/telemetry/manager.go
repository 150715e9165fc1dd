package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/sharegate/internal/setup/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ServiceType represents the command being initialized.
type ServiceType int

const (
	ServiceServe ServiceType = iota
	ServiceRefresh
	ServiceExport
	ServiceAdmin
)

// String returns the component name used in log paths.
func (s ServiceType) String() string {
	switch s {
	case ServiceServe:
		return "serve"
	case ServiceRefresh:
		return "refresh"
	case ServiceExport:
		return "export"
	case ServiceAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// GetRequestTimeout returns the Bot API request timeout for the service type.
func (s ServiceType) GetRequestTimeout(cfg *config.Config) time.Duration {
	timeout := cfg.Telegram.RequestTimeout
	if s == ServiceAdmin && timeout < 30000 {
		timeout = 30000
	}

	return time.Duration(timeout) * time.Millisecond
}

// Manager handles the creation of session log directories and loggers.
type Manager struct {
	instanceID        string // Unique identifier for this program instance
	componentName     string // Component identifier for this instance
	currentSessionDir string // Path to the current session's log directory
	logDir            string // Base directory for all logs
	level             string // Logging level (debug, info, warn, error)
	maxLogsToKeep     int    // Maximum number of log sessions to retain
	maxLogSize        int    // Maximum size of a log file in megabytes
	console           bool   // Mirror logs to stderr
}

// NewManager creates a new Manager instance.
func NewManager(serviceType ServiceType, logDir string, debugCfg *config.Debug) *Manager {
	return &Manager{
		instanceID:    uuid.New().String(),
		componentName: serviceType.String(),
		logDir:        logDir,
		level:         debugCfg.LogLevel,
		maxLogsToKeep: debugCfg.MaxLogsToKeep,
		maxLogSize:    debugCfg.MaxLogSize,
		console:       debugCfg.Console,
	}
}

// GetLoggers initializes the main and database loggers.
func (lm *Manager) GetLoggers() (*zap.Logger, *zap.Logger, error) {
	if err := lm.setupLogDirectories(); err != nil {
		return nil, nil, err
	}

	mainLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "main.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	dbLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "database.log"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database logger: %w", err)
	}

	fields := []zap.Field{
		zap.String("component", lm.componentName),
		zap.String("instanceID", lm.instanceID),
	}

	return mainLogger.With(fields...), dbLogger.With(fields...), nil
}

// GetCurrentSessionDir returns the current session directory.
func (lm *Manager) GetCurrentSessionDir() string {
	return lm.currentSessionDir
}

// GetInstanceID returns the unique instance identifier for this program run.
func (lm *Manager) GetInstanceID() string {
	return lm.instanceID
}

// setupLogDirectories ensures the base directory exists, prunes old sessions
// and creates a new session directory.
func (lm *Manager) setupLogDirectories() error {
	if err := os.MkdirAll(lm.logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := lm.rotateLogSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	// Create new session directory with timestamp
	lm.currentSessionDir = filepath.Join(lm.logDir,
		fmt.Sprintf("%s_%s", time.Now().Format("2006-01-02_15-04-05"), lm.componentName))
	if err := os.MkdirAll(lm.currentSessionDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	return nil
}

// initLogger creates a zap logger writing to a size-rotated file, optionally
// mirrored to stderr, with errors forwarded to OpenTelemetry.
func (lm *Manager) initLogger(path string) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(lm.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    lm.maxLogSize,
		MaxBackups: 3,
		Compress:   true,
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(rotator), zapLevel),
		NewCore(zapLevel),
	}

	if lm.console {
		consoleConfig := zap.NewDevelopmentEncoderConfig()
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleConfig.EncodeCaller = zapcore.ShortCallerEncoder

		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig),
			zapcore.Lock(os.Stderr),
			zapLevel,
		))
	}

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// rotateLogSessions removes the oldest sessions beyond maxLogsToKeep,
// leaving room for the session about to be created.
func (lm *Manager) rotateLogSessions() error {
	sessions, err := filepath.Glob(filepath.Join(lm.logDir, "*"))
	if err != nil {
		return err
	}

	keep := max(lm.maxLogsToKeep-1, 0)
	if len(sessions) <= keep {
		return nil
	}

	// Sort sessions by modification time (oldest first)
	sort.Slice(sessions, func(i, j int) bool {
		iInfo, iErr := os.Stat(sessions[i])
		jInfo, jErr := os.Stat(sessions[j])
		if iErr != nil || jErr != nil {
			return iErr != nil
		}

		return iInfo.ModTime().Before(jInfo.ModTime())
	})

	toDelete := len(sessions) - keep
	for i := range toDelete {
		if err := os.RemoveAll(sessions[i]); err != nil {
			return err
		}
	}

	return nil
}
