package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"mnemos/internal/config"
	"mnemos/pkg/logger"
)

var (
	client  *redis.Client
	once    sync.Once
	initErr error
)

// GetClient connects to Redis once and returns the shared client.
func GetClient(cfg *config.RedisConfig) (*redis.Client, error) {
	once.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			initErr = fmt.Errorf("cannot connect to Redis: %w", err)
			return
		}

		logger.New("redis-client", "", "").Info("connected to Redis")
		client = rdb
	})

	return client, initErr
}

// Close closes the shared client.
func Close() error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// HealthCheck pings the server.
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return client.Ping(ctx).Err()
}
