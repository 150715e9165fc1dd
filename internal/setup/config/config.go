package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrMissingRequired   = errors.New("missing required configuration")
	ErrInvalidDriver     = errors.New("unsupported database driver")
	ErrConfigNotReadable = errors.New("config file could not be parsed")
)

// ConfigFileName is the optional TOML file searched in the config paths.
const ConfigFileName = "sharegate.toml"

// EnvPrefix prefixes environment overrides, with "__" separating nested keys.
const EnvPrefix = "SHAREGATE_"

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultMemberUpdates selects chat_member updates as the join source.
// Join service messages from the Bot API do not carry the invite link.
const DefaultMemberUpdates = true

// legacyEnv maps the plain environment names used by earlier deployments.
var legacyEnv = map[string]string{
	"BOT_TOKEN":          "telegram.token",
	"MAIN_CHAT_ID":       "telegram.chat_id",
	"PRIVATE_GROUP_LINK": "telegram.private_link",
	"WEBHOOK_SECRET":     "server.secret",
	"DATABASE_PATH":      "database.path",
	"PORT":               "server.port",
}

// Config represents the entire application configuration.
type Config struct {
	Telegram Telegram `koanf:"telegram"`
	Server   Server   `koanf:"server"`
	Database Database `koanf:"database"`
	Redis    Redis    `koanf:"redis"`
	Debug    Debug    `koanf:"debug"`
	Retry    Retry    `koanf:"retry"`
}

// Telegram contains Bot API and community settings.
type Telegram struct {
	// Bot token issued by BotFather.
	Token string `koanf:"token"`
	// Bot API base URL.
	APIURL string `koanf:"api_url"`
	// Chat ID of the community (negative for groups).
	ChatID int64 `koanf:"chat_id"`
	// Link to the protected resource unlocked by referrals.
	PrivateLink string `koanf:"private_link"`
	// Request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Count joins from chat_member updates. Disabling falls back to join
	// service messages, which only work when they carry the invite link.
	MemberUpdates bool `koanf:"member_updates"`
}

// Server contains HTTP ingress settings.
type Server struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// Shared secret used as webhook path segment and refresh query parameter.
	// Empty disables the check.
	Secret string `koanf:"secret"`
	// Upper bound for handling a single inbound event, in milliseconds.
	HandlerTimeout int `koanf:"handler_timeout"`
	// Read timeout in milliseconds.
	ReadTimeout int `koanf:"read_timeout"`
	// Write timeout in milliseconds.
	WriteTimeout int `koanf:"write_timeout"`
	// Shutdown grace period in milliseconds.
	ShutdownTimeout int `koanf:"shutdown_timeout"`
}

// Database contains store connection configuration.
type Database struct {
	// Driver is either sqlite or postgres.
	Driver string `koanf:"driver"`
	// SQLite database file.
	Path string `koanf:"path"`
	// PostgreSQL connection string.
	DSN string `koanf:"dsn"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// SQLite busy timeout in milliseconds.
	BusyTimeout int `koanf:"busy_timeout"`
	// Apply pending migrations on startup.
	AutoMigrate bool `koanf:"auto_migrate"`
}

// Redis contains optional Redis connection configuration.
// When enabled, the summary publish lock is shared across instances.
type Redis struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	// Publish lock lifetime in milliseconds.
	LockTTL int `koanf:"lock_ttl"`
}

// Debug contains logging configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log session directories to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum size of a log file in megabytes before it is rotated.
	MaxLogSize int `koanf:"max_log_size"`
	// Also write logs to stderr.
	Console bool `koanf:"console"`
}

// Retry contains retry configuration for Bot API calls.
type Retry struct {
	// Maximum retry attempts.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial retry delay in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum retry delay in milliseconds.
	MaxDelay int `koanf:"max_delay"`
}

// defaults holds every optional value.
var defaults = map[string]any{
	"telegram.api_url":         "https://api.telegram.org",
	"telegram.request_timeout": 10000,
	"telegram.member_updates":  DefaultMemberUpdates,
	"server.host":              "0.0.0.0",
	"server.port":              5000,
	"server.secret":            "",
	"server.handler_timeout":   25000,
	"server.read_timeout":      5000,
	"server.write_timeout":     30000,
	"server.shutdown_timeout":  30000,
	"database.driver":          DriverSQLite,
	"database.path":            "invites.db",
	"database.max_open_conns":  4,
	"database.max_idle_conns":  4,
	"database.busy_timeout":    5000,
	"database.auto_migrate":    true,
	"redis.enabled":            false,
	"redis.host":               "localhost",
	"redis.port":               6379,
	"redis.lock_ttl":           15000,
	"debug.log_level":          "info",
	"debug.max_logs_to_keep":   10,
	"debug.max_log_size":       50,
	"debug.console":            true,
	"retry.max_retries":        3,
	"retry.delay":              500,
	"retry.max_delay":          5000,
}

// LoadConfig loads the configuration from defaults, the optional config file
// and the environment. Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".sharegate",
		homeDir + "/.sharegate/config",
		"/etc/sharegate/config",
		"/app/config",
		"config",
		".",
	}

	return Load(configPaths)
}

// Load builds the configuration from the given search paths and the process environment.
func Load(configPaths []string) (*Config, string, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// The first config file found wins
	var usedConfigPath string

	for _, path := range configPaths {
		configPath := path + "/" + ConfigFileName
		if _, err := os.Stat(configPath); err != nil {
			continue
		}

		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, "", fmt.Errorf("%w: %s: %w", ErrConfigNotReadable, configPath, err)
		}

		usedConfigPath = path

		break
	}

	// Legacy plain names are applied before prefixed ones so the latter win
	legacyProvider := env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if mapped, ok := legacyEnv[key]; ok && value != "" {
			return mapped, value
		}
		return "", nil
	})
	if err := k.Load(legacyProvider, nil); err != nil {
		return nil, "", fmt.Errorf("failed to load legacy environment: %w", err)
	}

	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		return strings.ReplaceAll(key, "__", "."), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, "", fmt.Errorf("failed to load environment: %w", err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// Validate checks that required values are present.
func (c *Config) Validate() error {
	var missing []string

	if c.Telegram.Token == "" {
		missing = append(missing, "telegram.token")
	}

	if c.Telegram.ChatID == 0 {
		missing = append(missing, "telegram.chat_id")
	}

	if c.Telegram.PrivateLink == "" {
		missing = append(missing, "telegram.private_link")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			missing = append(missing, "database.path")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			missing = append(missing, "database.dsn")
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDriver, c.Database.Driver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}

	return nil
}
