package mongo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mnemos/internal/config"
	"mnemos/pkg/logger"
)

var (
	client  *mongo.Client
	once    sync.Once
	initErr error
)

// GetClient connects to MongoDB once and returns the shared client.
func GetClient(cfg *config.MongoConfig) (*mongo.Client, error) {
	once.Do(func() {
		clientOptions := options.Client().ApplyURI(cfg.Address)
		if cfg.Username != "" && cfg.Password != "" {
			clientOptions.SetAuth(options.Credential{
				Username: cfg.Username,
				Password: cfg.Password,
			})
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		c, err := mongo.Connect(ctx, clientOptions)
		if err != nil {
			initErr = fmt.Errorf("cannot connect to MongoDB: %w", err)
			return
		}
		if err = c.Ping(ctx, nil); err != nil {
			initErr = fmt.Errorf("cannot ping MongoDB: %w", err)
			return
		}

		logger.New("mongo-client", "", "").Info("connected to MongoDB")
		client = c
	})

	return client, initErr
}

// Close disconnects the shared client.
func Close(ctx context.Context) error {
	if client != nil {
		return client.Disconnect(ctx)
	}
	return nil
}

// HealthCheck pings the server.
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("mongodb client is not initialized")
	}
	return client.Ping(ctx, nil)
}
