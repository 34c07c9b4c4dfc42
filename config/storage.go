package config

import (
	"os"
	"path/filepath"
	"strings"
)

// StorageDriver selects the key/value store backing credentials and preferences.
type StorageDriver string

const (
	// StorageDriverFile keeps a JSON document on disk, shared by consoles on one host.
	StorageDriverFile StorageDriver = "file"
	// StorageDriverRedis keeps a Redis hash, shared by consoles on any host.
	StorageDriverRedis StorageDriver = "redis"
	// StorageDriverMemory keeps state in process; nothing survives a restart.
	StorageDriverMemory StorageDriver = "memory"
)

// StorageConfig contains storage configuration.
type StorageConfig struct {
	Driver StorageDriver `env:"STORAGE_DRIVER" envDefault:"file"`

	// Path is the file used by the file driver. Defaults to the user config dir.
	Path string `env:"STORAGE_PATH" envDefault:""`

	// Namespace isolates consoles sharing one Redis.
	Namespace string `env:"STORAGE_NAMESPACE" envDefault:"default"`
}

// Sanitize applies guardrails to storage configuration values.
func (s *StorageConfig) Sanitize() {
	switch StorageDriver(strings.ToLower(strings.TrimSpace(string(s.Driver)))) {
	case StorageDriverRedis:
		s.Driver = StorageDriverRedis
	case StorageDriverMemory:
		s.Driver = StorageDriverMemory
	default:
		s.Driver = StorageDriverFile
	}
	s.Namespace = strings.TrimSpace(s.Namespace)
	if s.Namespace == "" {
		s.Namespace = "default"
	}
	s.Path = strings.TrimSpace(s.Path)
	if s.Path == "" {
		s.Path = defaultStoragePath()
	}
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "esg-console", "storage.json")
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
