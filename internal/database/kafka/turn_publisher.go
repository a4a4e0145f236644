package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"mnemos/internal/models"
)

// JobPublisher enqueues extraction jobs on the extraction topic. Messages
// are keyed by session ID so jobs of one session land on one partition and
// stay ordered.
type JobPublisher struct {
	client *KafkaClient
}

// NewJobPublisher creates a publisher over the shared client.
func NewJobPublisher(client *KafkaClient) *JobPublisher {
	return &JobPublisher{client: client}
}

// Publish writes one job to the extraction topic.
func (p *JobPublisher) Publish(ctx context.Context, job models.ExtractionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal extraction job: %w", err)
	}

	err = p.client.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.SessionID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to publish extraction job: %w", err)
	}
	return nil
}
