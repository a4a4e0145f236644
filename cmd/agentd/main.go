package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"mnemos/internal/agent"
	"mnemos/internal/api"
	"mnemos/internal/config"
	"mnemos/internal/database/kafka"
	"mnemos/internal/database/milvus"
	"mnemos/internal/database/minio"
	"mnemos/internal/database/mongo"
	"mnemos/internal/database/neo4j"
	"mnemos/internal/database/redis"
	"mnemos/internal/discovery/etcd"
	"mnemos/internal/embedding"
	"mnemos/internal/llm"
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
	appLogger := logger.New("agentd", "", "")

	ctx := context.Background()

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
	if cfg.Databases.MinIO.Enabled {
		minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		archiver, err := episodic.NewArchiver(ctx, minioClient, cfg.Databases.MinIO.Bucket)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		opts.Archiver = archiver
	}
	if len(cfg.Databases.Kafka.Brokers) > 0 {
		kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer kafkaClient.Close()
		opts.Queue = kafka.NewJobPublisher(kafkaClient)
	}

	// Extraction pipeline
	breaker := circuitbreaker.New(3, 2, 30*time.Second)
	limiter := ratelimiter.NewTokenBucket(cfg.Memory.ExtractionRate, cfg.Memory.ExtractionBurst)
	factExtractor := extractor.NewLLMExtractor(llmClient, breaker, limiter, cfg.Memory.ExtractTimeout())

	// Memory manager and agent
	buffer := shortterm.New(cfg.Memory.WindowMaxMessages, cfg.Memory.WindowTokenBudget)
	registry := session.NewRegistry(redisClient, cfg.Memory.SessionIdleTTL())
	mgr := manager.New(cfg.Memory, buffer, semStore, epiStore, procStore, factExtractor, registry, opts)
	defer mgr.Close()

	chatAgent := agent.New(mgr, llmClient)

	// HTTP surface
	handler := api.NewHandler(chatAgent, mgr, registry)
	router, err := api.SetupRouter(handler, cfg.Middleware)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	server := &http.Server{Addr: cfg.Server.Address, Handler: router}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err.Error())
		}
	}()

	if cfg.Databases.Etcd.Enabled {
		sd, err := etcd.NewServiceDiscovery(cfg.Databases.Etcd.Endpoints)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer sd.Close()
		stop, err := sd.Register("agentd", cfg.Server.Address, 10)
		if err != nil {
			appLogger.Fatal(err.Error())
		}
		defer close(stop)
	}

	appLogger.Info("agent service started on " + cfg.Server.Address)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("server shutdown: " + err.Error())
	}

	appLogger.Info("agent service stopped")
}
