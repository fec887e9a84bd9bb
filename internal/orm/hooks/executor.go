package hooks

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

// Executor runs the registered hooks. A nil Executor runs nothing.
type Executor struct {
	registry *Registry
	logger   *zap.Logger
}

// NewExecutor creates an executor with an empty registry
func NewExecutor(logger *zap.Logger) *Executor {
	return NewExecutorWithRegistry(NewRegistry(), logger)
}

// NewExecutorWithRegistry creates an executor over an existing registry
func NewExecutorWithRegistry(registry *Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{registry: registry, logger: logger}
}

// Register registers a hook
func (x *Executor) Register(entityType string, event Event, fn HookFunc) {
	x.registry.Register(entityType, event, fn)
}

// Dispatch runs the hooks for e in order. A failing pre hook stops the
// chain and its error is returned. Post hooks all run; failures are logged
// and the first one is returned.
func (x *Executor) Dispatch(ctx context.Context, db *sql.DB, meta *metadata.EntityMetadata, event Event, e entity.Entity) error {
	if x == nil {
		return nil
	}
	hooks := x.registry.GetHooks(meta.Name, event)
	if len(hooks) == 0 {
		return nil
	}

	hookCtx := NewContext(ctx, db, meta, event)
	var first error
	for _, fn := range hooks {
		err := fn(hookCtx, e)
		if err == nil {
			continue
		}
		err = fmt.Errorf("hook %s failed for %s: %w", event, meta.Name, err)
		if event.IsPre() {
			return err
		}
		x.logger.Warn("post hook failed", zap.String("entity", meta.Name), zap.Stringer("event", event), zap.Error(err))
		if first == nil {
			first = err
		}
	}
	return first
}

// HasHooks returns true if any hook would run for the entity type and event
func (x *Executor) HasHooks(entityType string, event Event) bool {
	return x != nil && x.registry.HasHooks(entityType, event)
}
