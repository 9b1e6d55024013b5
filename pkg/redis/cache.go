package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/redis/go-redis/v9"
)

// BoardCache caches assembled pipeline views. Stage and deal mutations
// invalidate the pipeline's entry so the next read rebuilds it from Postgres.
type BoardCache struct {
	client *Client
	ttl    time.Duration
	logger ectologger.Logger
}

// NewBoardCache creates a new board cache
func NewBoardCache(client *Client, ttl time.Duration, logger ectologger.Logger) *BoardCache {
	return &BoardCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func pipelineKey(tenantID, pipelineID string) string {
	return fmt.Sprintf("board:pipeline:%s:%s", tenantID, pipelineID)
}

// GetPipeline returns the cached pipeline view, or nil on a miss
func (c *BoardCache) GetPipeline(ctx context.Context, tenantID, pipelineID string) (*models.Pipeline, error) {
	raw, err := c.client.Get(ctx, pipelineKey(tenantID, pipelineID))
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var pipeline models.Pipeline
	if err := json.Unmarshal([]byte(raw), &pipeline); err != nil {
		// A corrupt entry is treated as a miss and replaced on the next set.
		c.logger.WithContext(ctx).WithError(err).Warn("Dropping unreadable cached pipeline")
		return nil, nil
	}

	return &pipeline, nil
}

// SetPipeline caches a pipeline view
func (c *BoardCache) SetPipeline(ctx context.Context, pipeline *models.Pipeline) error {
	data, err := json.Marshal(pipeline)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, pipelineKey(pipeline.TenantID, pipeline.ID), data, c.ttl)
}

// InvalidatePipeline drops the cached view of a pipeline
func (c *BoardCache) InvalidatePipeline(ctx context.Context, tenantID, pipelineID string) error {
	return c.client.Del(ctx, pipelineKey(tenantID, pipelineID))
}
