package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/esg-checklist-ui/config"
	"github.com/target/esg-checklist-ui/internal/adapters/filestore"
	"github.com/target/esg-checklist-ui/internal/adapters/memstore"
	redisadapter "github.com/target/esg-checklist-ui/internal/adapters/redis"
	"github.com/target/esg-checklist-ui/internal/ports"
)

// StorageDeps groups dependencies for OpenStorage.
type StorageDeps struct {
	Storage config.StorageConfig
	Redis   config.RedisConfig
	Logger  *slog.Logger
}

// StorageHandle is the selected storage plus the connection it owns, if any.
type StorageHandle struct {
	Storage ports.Storage
	Driver  config.StorageDriver

	redis redis.UniversalClient
}

// Close releases the Redis connection opened for the redis driver.
func (h *StorageHandle) Close() error {
	if h == nil || h.redis == nil {
		return nil
	}
	return h.redis.Close()
}

// OpenStorage builds the key/value store selected by the storage driver.
func OpenStorage(deps StorageDeps) (*StorageHandle, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch deps.Storage.Driver {
	case config.StorageDriverMemory:
		logger.Warn("using in-memory storage; sessions do not survive a restart")
		return &StorageHandle{Storage: memstore.New(), Driver: config.StorageDriverMemory}, nil

	case config.StorageDriverRedis:
		client, err := ConnectRedis(deps.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		store, err := redisadapter.NewStorage(redisadapter.StorageOptions{
			Client:    client,
			Namespace: deps.Storage.Namespace,
			Logger:    logger,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis storage: %w", err)
		}
		return &StorageHandle{Storage: store, Driver: config.StorageDriverRedis, redis: client}, nil

	default:
		store, err := filestore.New(filestore.Options{Path: deps.Storage.Path, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("file storage: %w", err)
		}
		logger.Info("using file storage", "path", deps.Storage.Path)
		return &StorageHandle{Storage: store, Driver: config.StorageDriverFile}, nil
	}
}
