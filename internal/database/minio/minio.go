package minio

import (
	"context"
	"fmt"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mnemos/internal/config"
	"mnemos/pkg/logger"
)

var (
	client  *minio.Client
	once    sync.Once
	initErr error
)

// GetClient connects to MinIO once and returns the shared client.
func GetClient(cfg *config.MinIOConfig) (*minio.Client, error) {
	once.Do(func() {
		c, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.Secure,
		})
		if err != nil {
			initErr = fmt.Errorf("cannot create MinIO client: %w", err)
			return
		}

		if _, err = c.ListBuckets(context.Background()); err != nil {
			initErr = fmt.Errorf("MinIO initial health check failed: %w", err)
			return
		}

		logger.New("minio-client", "", "").Info("connected to MinIO")
		client = c
	})

	return client, initErr
}

// HealthCheck lists buckets to verify connectivity and credentials.
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("minio client is not initialized")
	}
	if _, err := client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("minio health check failed: %w", err)
	}
	return nil
}
