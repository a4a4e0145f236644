package milvus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"mnemos/internal/config"
	"mnemos/pkg/logger"
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
)

// MilvusClient wraps the Milvus SDK client together with the fact
// collection configuration.
type MilvusClient struct {
	Client client.Client
	Config *config.MilvusConfig

	log             *logger.Logger
	cancelAutoFlush context.CancelFunc
}

// GetClient connects to Milvus once and returns the shared instance.
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("cannot connect to Milvus: %w", err)
			return
		}
		instance = &MilvusClient{
			Client: c,
			Config: cfg,
			log:    logger.New("milvus-client", "", ""),
		}
		instance.log.Info("connected to Milvus")
	})
	return instance, initErr
}

// Close flushes outstanding writes and closes the connection.
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.StopAutoFlush(context.Background())
		c.Client.Close()
	}
}

// HealthCheck verifies the connection by listing collections.
func (c *MilvusClient) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}

// Insert writes fact rows into the collection. All slices must have the
// same length.
func (c *MilvusClient) Insert(ctx context.Context, ids, userIDs, contents, entities, sessionIDs []string, confidences []float32, createdAt []int64, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("mismatch between number of ids (%d) and vectors (%d)", len(ids), len(vectors))
	}

	collName := c.Config.Schema.CollectionName
	dim := len(vectors[0])

	idCol := entity.NewColumnVarChar("fact_id", ids)
	userCol := entity.NewColumnVarChar("user_id", userIDs)
	contentCol := entity.NewColumnVarChar("content", contents)
	entitiesCol := entity.NewColumnVarChar("entities", entities)
	sessionCol := entity.NewColumnVarChar("session_id", sessionIDs)
	confidenceCol := entity.NewColumnFloat("confidence", confidences)
	createdCol := entity.NewColumnInt64("created_at", createdAt)
	vectorCol := entity.NewColumnFloatVector(c.Config.Schema.VectorField, dim, vectors)

	_, err := c.Client.Insert(ctx, collName, "", idCol, userCol, contentCol, entitiesCol, sessionCol, confidenceCol, createdCol, vectorCol)
	if err != nil {
		return fmt.Errorf("failed to insert facts into Milvus: %w", err)
	}
	return nil
}

// Search runs a vector similarity search restricted by expr, returning the
// requested output fields.
func (c *MilvusClient) Search(ctx context.Context, expr string, topK int, vector []float32, outputFields []string) ([]client.SearchResult, error) {
	collName := c.Config.Schema.CollectionName

	if err := c.Client.LoadCollection(ctx, collName, false); err != nil {
		return nil, fmt.Errorf("failed to load collection '%s': %w", collName, err)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(10)
	searchVectors := []entity.Vector{entity.FloatVector(vector)}

	results, err := c.Client.Search(
		ctx,
		collName,
		nil,
		expr,
		outputFields,
		searchVectors,
		c.Config.Schema.VectorField,
		entity.MetricType(c.Config.Schema.Index.MetricType),
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	return results, nil
}

// DeleteByExpr removes every row matching expr.
func (c *MilvusClient) DeleteByExpr(ctx context.Context, expr string) error {
	collName := c.Config.Schema.CollectionName
	if err := c.Client.Delete(ctx, collName, "", expr); err != nil {
		return fmt.Errorf("failed to delete from Milvus: %w", err)
	}
	return nil
}

// FlushCollection persists buffered writes to disk.
func (c *MilvusClient) FlushCollection(ctx context.Context) error {
	collName := c.Config.Schema.CollectionName
	if err := c.Client.Flush(ctx, collName, false); err != nil {
		return fmt.Errorf("failed to flush collection '%s': %w", collName, err)
	}
	return nil
}

// StartAutoFlush flushes the collection periodically in the background.
func (c *MilvusClient) StartAutoFlush(interval time.Duration) {
	if c.cancelAutoFlush != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelAutoFlush = cancel
	collName := c.Config.Schema.CollectionName

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := c.Client.Flush(flushCtx, collName, false); err != nil {
					c.log.WithField("collection", collName).Warn(fmt.Sprintf("auto flush failed: %v", err))
				}
				flushCancel()
			}
		}
	}()
}

// StopAutoFlush stops the background flusher and runs one final flush.
func (c *MilvusClient) StopAutoFlush(ctx context.Context) {
	if c.cancelAutoFlush != nil {
		c.cancelAutoFlush()
		c.cancelAutoFlush = nil

		if err := c.FlushCollection(ctx); err != nil {
			c.log.Warn(fmt.Sprintf("final flush failed: %v", err))
		}
	}
}

// EnsureCollection creates the fact collection, its index and loads it. It
// is a no-op for the schema when the collection already exists.
func (c *MilvusClient) EnsureCollection(ctx context.Context) error {
	collName := c.Config.Schema.CollectionName
	exists, err := c.Client.HasCollection(ctx, collName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		schemaFields := make([]*entity.Field, 0, len(c.Config.Schema.Fields))
		for _, fieldCfg := range c.Config.Schema.Fields {
			field := entity.NewField().WithName(fieldCfg.Name)

			if fieldCfg.IsPrimaryKey {
				field = field.WithIsPrimaryKey(true)
			}
			if fieldCfg.IsAutoID {
				field = field.WithIsAutoID(true)
			}

			switch fieldCfg.DataType {
			case "Int64":
				field = field.WithDataType(entity.FieldTypeInt64)
			case "VarChar":
				field = field.WithDataType(entity.FieldTypeVarChar).WithMaxLength(int64(fieldCfg.MaxLength))
			case "FloatVector":
				field = field.WithDataType(entity.FieldTypeFloatVector).WithDim(int64(fieldCfg.Dim))
			case "Float":
				field = field.WithDataType(entity.FieldTypeFloat)
			case "Double":
				field = field.WithDataType(entity.FieldTypeDouble)
			case "Bool":
				field = field.WithDataType(entity.FieldTypeBool)
			default:
				return fmt.Errorf("unsupported field data type: %s", fieldCfg.DataType)
			}

			schemaFields = append(schemaFields, field)
		}

		schema := entity.NewSchema().
			WithName(collName).
			WithDescription(c.Config.Schema.Description)
		for _, field := range schemaFields {
			schema = schema.WithField(field)
		}

		if err := c.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		idx, err := c.buildIndexFromConfig()
		if err != nil {
			return err
		}
		if err := c.Client.CreateIndex(ctx, collName, c.Config.Schema.Index.FieldName, idx, false); err != nil {
			return fmt.Errorf("failed to create index on '%s': %w", c.Config.Schema.Index.FieldName, err)
		}
	}

	if err := c.Client.LoadCollection(ctx, collName, false); err != nil {
		return fmt.Errorf("failed to load collection '%s': %w", collName, err)
	}
	return nil
}

func (c *MilvusClient) buildIndexFromConfig() (entity.Index, error) {
	indexCfg := c.Config.Schema.Index
	metricType := entity.MetricType(indexCfg.MetricType)

	switch indexCfg.IndexType {
	case "IVF_FLAT":
		nlist, ok := indexCfg.Params["nlist"].(int)
		if !ok {
			nlist = 128
		}
		return entity.NewIndexIvfFlat(metricType, nlist)
	case "HNSW":
		m, ok := indexCfg.Params["M"].(int)
		if !ok {
			m = 8
		}
		efConstruction, ok := indexCfg.Params["efConstruction"].(int)
		if !ok {
			efConstruction = 96
		}
		return entity.NewIndexHNSW(metricType, m, efConstruction)
	case "AUTOINDEX":
		return entity.NewIndexAUTOINDEX(metricType)
	default:
		return nil, fmt.Errorf("unsupported index type: %s", indexCfg.IndexType)
	}
}
