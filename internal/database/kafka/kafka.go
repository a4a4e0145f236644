package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"mnemos/internal/config"
	"mnemos/pkg/logger"
)

// KafkaClient holds the shared writer and reader for the extraction topic.
type KafkaClient struct {
	Writer *kafka.Writer
	Reader *kafka.Reader
	Conn   *kafka.Conn // admin connection
	Config *config.KafkaConfig
}

var (
	client  *KafkaClient
	once    sync.Once
	initErr error
)

// GetClient connects to Kafka once and returns the shared client. The
// extraction topic is created when it does not exist yet.
func GetClient(cfg *config.KafkaConfig) (*KafkaClient, error) {
	once.Do(func() {
		if len(cfg.Brokers) == 0 {
			initErr = fmt.Errorf("no Kafka brokers configured")
			return
		}
		if cfg.ExtractionTopic == "" {
			initErr = fmt.Errorf("no Kafka extraction topic configured")
			return
		}

		conn, err := kafka.Dial("tcp", cfg.Brokers[0])
		if err != nil {
			initErr = fmt.Errorf("cannot dial Kafka: %w", err)
			return
		}

		partitions, err := conn.ReadPartitions()
		if err != nil {
			initErr = fmt.Errorf("cannot read Kafka partitions: %w", err)
			conn.Close()
			return
		}
		topicExists := false
		for _, p := range partitions {
			if p.Topic == cfg.ExtractionTopic {
				topicExists = true
				break
			}
		}
		if !topicExists {
			err = conn.CreateTopics(kafka.TopicConfig{
				Topic:             cfg.ExtractionTopic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			})
			if err != nil {
				initErr = fmt.Errorf("cannot create Kafka topic '%s': %w", cfg.ExtractionTopic, err)
				conn.Close()
				return
			}
		}

		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.ExtractionTopic,
			Balancer:     &kafka.Hash{}, // keyed by session so one session stays in order
			BatchTimeout: 10 * time.Millisecond,
			BatchSize:    100,
		}

		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       cfg.ExtractionTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    10e3, // 10KB
			MaxBytes:    10e6, // 10MB
			MaxAttempts: 10,
			Dialer: &kafka.Dialer{
				Timeout: 10 * time.Second,
			},
		})

		logger.New("kafka-client", "", "").Info("initialized Kafka client")
		client = &KafkaClient{Writer: writer, Reader: reader, Conn: conn, Config: cfg}
	})

	return client, initErr
}

// Close closes the writer, reader and admin connection.
func (c *KafkaClient) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Writer != nil {
		if err := c.Writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka writer: %w", err))
		}
	}
	if c.Reader != nil {
		if err := c.Reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka reader: %w", err))
		}
	}
	if c.Conn != nil {
		if err := c.Conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka admin connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing Kafka client: %v", errs)
	}
	return nil
}

// HealthCheck verifies the admin connection can reach the controller.
func (c *KafkaClient) HealthCheck(ctx context.Context) error {
	if c == nil || c.Conn == nil {
		return fmt.Errorf("kafka client is not initialized")
	}
	_, err := c.Conn.Controller()
	return err
}

// GetControllerInfo returns the address of the Kafka controller.
func (c *KafkaClient) GetControllerInfo() (string, error) {
	if c == nil || c.Conn == nil {
		return "", fmt.Errorf("kafka client is not initialized")
	}
	controller, err := c.Conn.Controller()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)), nil
}
