package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"mnemos/internal/database/kafka"
	"mnemos/internal/memory/manager"
	"mnemos/internal/models"
	"mnemos/pkg/logger"
	"mnemos/pkg/util"
)

// KafkaConsumer drains the extraction topic and runs each job through the
// memory manager. Offsets are committed only after the job's facts are
// stored, giving at-least-once processing; the dedup filter absorbs the
// resulting replays.
type KafkaConsumer struct {
	kafkaClient *kafka.KafkaClient
	mgr         *manager.Manager
	seen        *util.ScalableBloomFilter
	logger      *logger.Logger
}

// NewKafkaConsumer creates a consumer over the shared client.
func NewKafkaConsumer(kafkaClient *kafka.KafkaClient, mgr *manager.Manager) (*KafkaConsumer, error) {
	seen, err := util.NewScalableBloomFilter(util.SBFConfig{
		InitialCapacity:      10000,
		ErrorRate:            0.001,
		GrowthFactor:         2,
		ErrorTighteningRatio: 0.5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup filter: %w", err)
	}
	return &KafkaConsumer{
		kafkaClient: kafkaClient,
		mgr:         mgr,
		seen:        seen,
		logger:      logger.New("extraction-consumer", "", ""),
	}, nil
}

// Start launches the consume loop. It stops when ctx is cancelled.
func (c *KafkaConsumer) Start(ctx context.Context) {
	go func() {
		for {
			msg, err := c.kafkaClient.Reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to fetch message")
				continue
			}

			var job models.ExtractionJob
			if err := json.Unmarshal(msg.Value, &job); err != nil {
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to unmarshal extraction job")
				// A poison message will never parse; commit it away.
				c.kafkaClient.Reader.CommitMessages(ctx, msg)
				continue
			}

			key := jobKey(job)
			if c.seen.Test(key) {
				c.kafkaClient.Reader.CommitMessages(ctx, msg)
				continue
			}

			if err := c.mgr.ProcessJob(ctx, job); err != nil {
				// Leave the offset uncommitted so the job is retried.
				c.logger.WithField("session_id", job.SessionID).
					WithError(models.ErrorInfo{Message: err.Error()}).
					Error("failed to process extraction job")
				continue
			}
			c.seen.Add(key)

			if err := c.kafkaClient.Reader.CommitMessages(ctx, msg); err != nil {
				c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to commit message")
			}
		}
	}()
}

// jobKey identifies one job for dedup purposes. Session and enqueue time
// together are unique per trigger.
func jobKey(job models.ExtractionJob) []byte {
	return []byte(fmt.Sprintf("%s|%s|%d", job.UserID, job.SessionID, job.EnqueuedAt.UnixNano()))
}
