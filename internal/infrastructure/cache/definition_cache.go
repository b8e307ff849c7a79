// Package cache holds the redis-backed read-through cache for published
// workflow definitions.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/approvalflow/engine/internal/application/port"
	"github.com/approvalflow/engine/internal/domain/workflow"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL bounds memory growth; published definitions are immutable so the
// TTL is a housekeeping concern, not a staleness one.
const DefaultTTL = 12 * time.Hour

// DefinitionCache implements port.DefinitionCache on redis
type DefinitionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDefinitionCache creates a new definition cache
func NewDefinitionCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) port.DefinitionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DefinitionCache{client: client, ttl: ttl, logger: logger}
}

func definitionKey(tenantID, id string) string {
	return fmt.Sprintf("wf:def:%s:%s", tenantID, id)
}

// Get returns the cached definition, or nil on a miss
func (c *DefinitionCache) Get(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
	data, err := c.client.Get(ctx, definitionKey(tenantID, id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var def workflow.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		// A corrupt entry behaves like a miss; the repo is authoritative.
		c.logger.Warn("Dropping unreadable cache entry", zap.String("id", id), zap.Error(err))
		c.client.Del(ctx, definitionKey(tenantID, id))
		return nil, nil
	}
	if def.Graph != nil {
		def.Graph = workflow.NewGraph(def.Graph.Steps, def.Graph.Transitions)
	}
	return &def, nil
}

// Set stores a definition
func (c *DefinitionCache) Set(ctx context.Context, def *workflow.Definition) error {
	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, definitionKey(def.TenantID, def.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate removes a definition, e.g. on archive
func (c *DefinitionCache) Invalidate(ctx context.Context, tenantID, id string) error {
	if err := c.client.Del(ctx, definitionKey(tenantID, id)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

var _ port.DefinitionCache = (*DefinitionCache)(nil)
