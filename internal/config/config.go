package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FieldConfig describes one field of the Milvus fact collection.
type FieldConfig struct {
	Name         string `yaml:"name"`                // field name
	DataType     string `yaml:"dataType"`            // e.g. "Int64", "VarChar", "Float", "FloatVector"
	IsPrimaryKey bool   `yaml:"isPrimaryKey"`        // whether this field is the primary key
	IsAutoID     bool   `yaml:"isAutoID"`            // whether the ID is generated by Milvus
	Dim          int    `yaml:"dim,omitempty"`       // vector dimension (vector fields only)
	MaxLength    int    `yaml:"maxLength,omitempty"` // max length (VarChar fields only)
}

// IndexConfig describes the vector index of the fact collection.
type IndexConfig struct {
	FieldName  string                 `yaml:"fieldName"`  // field to index
	IndexType  string                 `yaml:"indexType"`  // e.g. "IVF_FLAT", "HNSW", "AUTOINDEX"
	MetricType string                 `yaml:"metricType"` // e.g. "IP", "COSINE", "L2"
	Params     map[string]interface{} `yaml:"params"`     // index build parameters, e.g. {"nlist": 128}
}

// SchemaConfig describes the Milvus collection holding semantic facts.
type SchemaConfig struct {
	CollectionName string        `yaml:"collectionName"`
	Description    string        `yaml:"description"`
	VectorField    string        `yaml:"vectorField"`
	Fields         []FieldConfig `yaml:"fields"`
	Index          IndexConfig   `yaml:"index"`
}

// MilvusConfig holds the Milvus connection and schema configuration.
type MilvusConfig struct {
	Address string       `yaml:"address"`
	Schema  SchemaConfig `yaml:"schema"`
}

// RedisConfig holds the Redis connection configuration.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MongoConfig holds the MongoDB connection configuration.
type MongoConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// Neo4jConfig holds the Neo4j connection configuration for the entity graph.
type Neo4jConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Uri      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// MinIOConfig holds the MinIO connection configuration used by the
// erasure archiver.
type MinIOConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// KafkaConfig holds the Kafka connection configuration. When no brokers are
// configured, fact extraction runs in-process instead of through the queue.
type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	ExtractionTopic string   `yaml:"extractionTopic"` // topic carrying extraction jobs
	ConsumerGroup   string   `yaml:"consumerGroup"`
}

// EtcdConfig holds the etcd service-registration configuration.
type EtcdConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Endpoints []string `yaml:"endpoints"`
}

// DatabaseConfigs groups all store configurations.
type DatabaseConfigs struct {
	Milvus  MilvusConfig `yaml:"milvus"`
	MongoDB MongoConfig  `yaml:"mongodb"`
	Redis   RedisConfig  `yaml:"redis"`
	Kafka   KafkaConfig  `yaml:"kafka"`
	Neo4j   Neo4jConfig  `yaml:"neo4j"`
	MinIO   MinIOConfig  `yaml:"minio"`
	Etcd    EtcdConfig   `yaml:"etcd"`
}

// ProviderConfig identifies one model of one provider.
type ProviderConfig struct {
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"baseURL,omitempty"`
}

// LLMConfig selects the text-generation provider.
type LLMConfig struct {
	Provider string         `yaml:"provider"` // "gemini", "openai" or "ollama"
	Gemini   ProviderConfig `yaml:"gemini"`
	OpenAI   ProviderConfig `yaml:"openai"`
	Ollama   ProviderConfig `yaml:"ollama"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider    string         `yaml:"provider"` // "gemini", "openai", "ollama" or "huggingface"
	Gemini      ProviderConfig `yaml:"gemini"`
	OpenAI      ProviderConfig `yaml:"openai"`
	Ollama      ProviderConfig `yaml:"ollama"`
	HuggingFace ProviderConfig `yaml:"huggingface"`
	CacheSize   int            `yaml:"cacheSize"` // LRU entries for query embeddings; 0 disables the cache
}

// MemoryConfig tunes the memory subsystem.
type MemoryConfig struct {
	WindowMaxMessages   int     `yaml:"windowMaxMessages"`   // short-term buffer cap per session
	WindowTokenBudget   int     `yaml:"windowTokenBudget"`   // approximate token budget per session window
	ExtractEveryTurns   int     `yaml:"extractEveryTurns"`   // K: run fact extraction every K turns
	SemanticTopK        int     `yaml:"semanticTopK"`        // facts fused into one context
	EpisodicLimit       int     `yaml:"episodicLimit"`       // events fused into one context
	ProceduralLimit     int     `yaml:"proceduralLimit"`     // patterns fused into one context
	SimilarityThreshold float64 `yaml:"similarityThreshold"` // minimum similarity score for recalled facts
	ExternalCallTimeout string  `yaml:"externalCallTimeout"` // per-call timeout for stores/providers, e.g. "3s"
	ExtractionTimeout   string  `yaml:"extractionTimeout"`   // timeout for one LLM extraction call, e.g. "30s"
	ExtractionRate      float64 `yaml:"extractionRate"`      // extraction LLM calls per second (token bucket)
	ExtractionBurst     int     `yaml:"extractionBurst"`
	SessionTTL          string  `yaml:"sessionTTL"` // idle TTL for session records in Redis, e.g. "24h"
}

// ExternalTimeout parses ExternalCallTimeout with a safe default.
func (m MemoryConfig) ExternalTimeout() time.Duration {
	return parseDurationOr(m.ExternalCallTimeout, 3*time.Second)
}

// ExtractTimeout parses ExtractionTimeout with a safe default.
func (m MemoryConfig) ExtractTimeout() time.Duration {
	return parseDurationOr(m.ExtractionTimeout, 30*time.Second)
}

// SessionIdleTTL parses SessionTTL with a safe default.
func (m MemoryConfig) SessionIdleTTL() time.Duration {
	return parseDurationOr(m.SessionTTL, 24*time.Hour)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// TokenBucketConfig configures the token bucket algorithm.
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // tokens per second
	Capacity int     `yaml:"capacity"`
}

// SlidingCounterConfig configures the sliding window counter algorithm.
type SlidingCounterConfig struct {
	Limit      int    `yaml:"limit"`
	Window     string `yaml:"window"` // e.g. "1m", "30s"
	NumBuckets int    `yaml:"numBuckets"`
}

// RateLimiterConfig configures the HTTP rate limiter.
type RateLimiterConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	Algorithm      string               `yaml:"algorithm"` // "tokenBucket" or "slidingCounter"
	TokenBucket    TokenBucketConfig    `yaml:"tokenBucket"`
	SlidingCounter SlidingCounterConfig `yaml:"slidingCounter"`
}

// CircuitBreakerConfig configures the breaker guarding provider calls.
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // e.g. "30s"
}

// MiddlewareConfig groups middleware configuration.
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// AppInfo holds basic application metadata.
type AppInfo struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"` // e.g. "development", "production"
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Memory     MemoryConfig     `yaml:"memory"`
	Databases  DatabaseConfigs  `yaml:"databases"`
	Middleware MiddlewareConfig `yaml:"middleware"`
}

// LoadConfig reads and parses the YAML configuration file at path.
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file '%s': %w", path, err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file '%s': %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills the memory tuning section so that a sparse config file
// still yields a working subsystem.
func applyDefaults(cfg *AppConfig) {
	m := &cfg.Memory
	if m.WindowMaxMessages <= 0 {
		m.WindowMaxMessages = 40
	}
	if m.WindowTokenBudget <= 0 {
		m.WindowTokenBudget = 4000
	}
	if m.ExtractEveryTurns <= 0 {
		m.ExtractEveryTurns = 5
	}
	if m.SemanticTopK <= 0 {
		m.SemanticTopK = 5
	}
	if m.EpisodicLimit <= 0 {
		m.EpisodicLimit = 10
	}
	if m.ProceduralLimit <= 0 {
		m.ProceduralLimit = 5
	}
	if m.SimilarityThreshold <= 0 {
		m.SimilarityThreshold = 0.75
	}
	if m.ExtractionRate <= 0 {
		m.ExtractionRate = 1
	}
	if m.ExtractionBurst <= 0 {
		m.ExtractionBurst = 3
	}
}
