package episodic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"

	"mnemos/internal/models"
	"mnemos/pkg/logger"
)

// Archiver snapshots a user's event log to object storage before erasure,
// so an accidental deletion request can still be recovered during the
// retention window of the bucket.
type Archiver struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewArchiver creates an archiver writing to the given bucket, creating the
// bucket when it does not exist.
func NewArchiver(ctx context.Context, client *minio.Client, bucket string) (*Archiver, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check archive bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create archive bucket: %w", err)
		}
	}
	return &Archiver{
		client: client,
		bucket: bucket,
		log:    logger.New("episodic-archiver", "", ""),
	}, nil
}

// Archive writes the events as one JSON object keyed by user and timestamp
// and returns the object name.
func (a *Archiver) Archive(ctx context.Context, userID string, events []models.EpisodicEvent) (string, error) {
	if len(events) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive: %w", err)
	}

	objectName := fmt.Sprintf("%s/%s.json", userID, time.Now().UTC().Format("20060102T150405Z"))
	_, err = a.client.PutObject(ctx, a.bucket, objectName,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive: %w", err)
	}

	a.log.WithPayload(map[string]interface{}{
		"object": objectName,
		"events": len(events),
	}).Info("archived user event log")
	return objectName, nil
}
