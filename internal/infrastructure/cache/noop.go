package cache

import (
	"context"

	"github.com/approvalflow/engine/internal/application/port"
	"github.com/approvalflow/engine/internal/domain/workflow"
)

// noopCache satisfies port.DefinitionCache when no Redis backend is
// configured. Every lookup is a miss, so callers fall through to the
// database.
type noopCache struct{}

// NewNoopCache creates a cache that never stores anything.
func NewNoopCache() port.DefinitionCache {
	return noopCache{}
}

func (noopCache) Get(ctx context.Context, tenantID, id string) (*workflow.Definition, error) {
	return nil, nil
}

func (noopCache) Set(ctx context.Context, def *workflow.Definition) error {
	return nil
}

func (noopCache) Invalidate(ctx context.Context, tenantID, id string) error {
	return nil
}

var _ port.DefinitionCache = noopCache{}
