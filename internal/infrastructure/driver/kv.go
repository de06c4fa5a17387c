package driver

import (
	"context"
	"fmt"
	"time"
)

// KeyValueDB define a key-value storage interface
type KeyValueDB interface {
	SetEX(ctx context.Context, key string, value string, expiration time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping() error
}

// KVConfig key-value storage options
type KVConfig struct {
	Driver   string // memory or redis
	Host     string
	Port     int
	Password string
}

// GetKVConnection create a KeyValueDB from given config
func GetKVConnection(cfg *KVConfig) (KeyValueDB, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedisClient(cfg.Host, cfg.Port, cfg.Password), nil
	case "memory", "":
		return NewMemoryKV(), nil
	}
	return nil, fmt.Errorf("unsupported kv driver: %s", cfg.Driver)
}
