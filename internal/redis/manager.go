package redis

import (
	"fmt"
	"sync"

	"github.com/redis/rueidis"
	"github.com/robalyx/sharegate/internal/setup/config"
	"go.uber.org/zap"
)

// Manager lazily creates and owns the Redis client for the configured database.
type Manager struct {
	client rueidis.Client
	config *config.Redis
	logger *zap.Logger
	mu     sync.Mutex
}

// NewManager initializes the Redis manager without connecting.
func NewManager(config *config.Redis, logger *zap.Logger) *Manager {
	return &Manager{
		config: config,
		logger: logger.Named("redis"),
	}
}

// GetClient returns the shared client, creating it on first use.
func (m *Manager) GetClient() (rueidis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)},
		Username:     m.config.Username,
		Password:     m.config.Password,
		SelectDB:     m.config.DB,
		ClientName:   "sharegate",
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client for DB %d: %w", m.config.DB, err)
	}

	m.client = client
	m.logger.Info("Created Redis client", zap.Int("dbIndex", m.config.DB))

	return client, nil
}

// Close shuts down the client if one was created.
// Safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return
	}

	m.client.Close()
	m.client = nil
	m.logger.Info("Closed Redis client")
}
