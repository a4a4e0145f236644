package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"mnemos/internal/config"
	"mnemos/internal/database/kafka"
	"mnemos/internal/database/milvus"
	"mnemos/internal/database/mongo"
	"mnemos/internal/database/neo4j"
	"mnemos/internal/database/redis"
	"mnemos/internal/embedding"
	"mnemos/internal/llm"
	"mnemos/internal/memory/consumer"
	"mnemos/internal/memory/episodic"
	"mnemos/internal/memory/extractor"
	"mnemos/internal/memory/manager"
	"mnemos/internal/memory/procedural"
	"mnemos/internal/memory/semantic"
	"mnemos/internal/memory/shortterm"
	"mnemos/internal/session"
	"mnemos/pkg/circuitbreaker"
	"mnemos/pkg/logger"
	"mnemos/pkg/ratelimiter"
)

// memoryd drains the extraction topic and turns queued conversation
// windows into stored facts. It runs beside agentd so extraction load
// never competes with the serving path.
func main() {
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("memoryd", "", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database clients
	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer milvusClient.Close()
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		appLogger.Fatal(err.Error())
	}
	milvusClient.StartAutoFlush(30 * time.Second)

	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer mongo.Close(ctx)

	redisClient, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer redis.Close()

	kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer kafkaClient.Close()

	// Providers
	embedder, err := embedding.NewFromConfig(cfg.Embedding)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// Stores
	semStore := semantic.NewMilvusStore(milvusClient, embedder)
	db := mongoClient.Database(cfg.Databases.MongoDB.Database)
	epiStore, err := episodic.NewMongoStore(ctx, db)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	procStore, err := procedural.NewMongoStore(ctx, db)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	opts := manager.Options{}
	if cfg.Databases.Neo4j.Enabled {
		neo4jClient, err := neo4j.GetClient(ctx, &cfg.Databases.Neo4j)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer neo4jClient.Close(ctx)
		opts.Relations = semantic.NewNeo4jRelationStore(neo4jClient)
	}

	// Extraction pipeline
	breaker := circuitbreaker.New(3, 2, 30*time.Second)
	limiter := ratelimiter.NewTokenBucket(cfg.Memory.ExtractionRate, cfg.Memory.ExtractionBurst)
	factExtractor := extractor.NewLLMExtractor(llmClient, breaker, limiter, cfg.Memory.ExtractTimeout())

	// The consumer daemon shares the manager implementation with agentd;
	// here only ProcessJob and the stores behind it are exercised.
	buffer := shortterm.New(cfg.Memory.WindowMaxMessages, cfg.Memory.WindowTokenBudget)
	registry := session.NewRegistry(redisClient, cfg.Memory.SessionIdleTTL())
	mgr := manager.New(cfg.Memory, buffer, semStore, epiStore, procStore, factExtractor, registry, opts)
	defer mgr.Close()

	kafkaConsumer, err := consumer.NewKafkaConsumer(kafkaClient, mgr)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	kafkaConsumer.Start(ctx)

	appLogger.Info("memory service started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("memory service stopped")
}
