// Package crud implements the entity manager: relation-aware insert,
// update and delete of mapped entities.
package crud

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/dialect"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/hooks"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/query"
)

// ConnectionProvider hands out the database handle and its dialect
type ConnectionProvider interface {
	GetConnection(ctx context.Context) (*sql.DB, error)
	Dialect() dialect.Dialect
}

// SchemaInspector reports the live columns of a table. ok is false when
// the table is unknown.
type SchemaInspector interface {
	Columns(ctx context.Context, table string) (columns []string, ok bool, err error)
}

// EntityManager persists, updates and removes one entity at a time. Each
// top-level call runs as its own sequence of statements.
type EntityManager struct {
	store  *metadata.Store
	conn   ConnectionProvider
	schema SchemaInspector
	hooks  *hooks.Executor
	logger *zap.Logger

	mu       sync.Mutex
	inserted map[entity.Entity]bool
}

// NewEntityManager creates an entity manager. schema may be nil, in which
// case no column filtering happens.
func NewEntityManager(store *metadata.Store, conn ConnectionProvider, schema SchemaInspector, logger *zap.Logger) *EntityManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntityManager{
		store:    store,
		conn:     conn,
		schema:   schema,
		logger:   logger,
		inserted: make(map[entity.Entity]bool),
	}
}

// wasInserted reports whether this manager inserted e
func (m *EntityManager) wasInserted(e entity.Entity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserted[e]
}

func (m *EntityManager) markInserted(e entity.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserted[e] = true
}

// forget drops the given instances, or every instance of typeName when
// entities is empty, so a later persist inserts them again
func (m *EntityManager) forget(typeName string, entities ...entity.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(entities) == 0 {
		for e := range m.inserted {
			if e.EntityType() == typeName {
				delete(m.inserted, e)
			}
		}
		return
	}
	for _, e := range entities {
		delete(m.inserted, e)
	}
}

// SetHooks installs the lifecycle hooks run around every write
func (m *EntityManager) SetHooks(h *hooks.Executor) {
	m.hooks = h
}

// dispatch runs the hooks registered for event
func (m *EntityManager) dispatch(ctx context.Context, meta *metadata.EntityMetadata, event hooks.Event, e entity.Entity) error {
	if !m.hooks.HasHooks(meta.Name, event) {
		return nil
	}
	db, err := m.conn.GetConnection(ctx)
	if err != nil {
		return err
	}
	return m.hooks.Dispatch(ctx, db, meta, event, e)
}

// GetConnection returns the shared database handle
func (m *EntityManager) GetConnection(ctx context.Context) (*sql.DB, error) {
	return m.conn.GetConnection(ctx)
}

// GetClassMetaData resolves metadata from an entity or an entity name
func (m *EntityManager) GetClassMetaData(v interface{}) (*metadata.EntityMetadata, error) {
	switch t := v.(type) {
	case entity.Entity:
		return m.store.Of(t)
	case string:
		return m.store.Get(t)
	case []entity.Entity:
		return m.store.OfSlice(t)
	default:
		return nil, &metadata.MetadataError{Reason: fmt.Sprintf("cannot resolve metadata of %T", v)}
	}
}

// operation is the state of one top-level call tree
type operation struct {
	persisted map[entity.Entity]bool
	updated   map[entity.Entity]bool
	columns   map[string]map[string]bool
}

func newOperation() *operation {
	return &operation{
		persisted: make(map[entity.Entity]bool),
		updated:   make(map[entity.Entity]bool),
		columns:   make(map[string]map[string]bool),
	}
}

func (m *EntityManager) builder(ctx context.Context) (*query.Builder, error) {
	db, err := m.conn.GetConnection(ctx)
	if err != nil {
		return nil, err
	}
	return query.New(db, m.conn.Dialect(), m.logger), nil
}

// liveColumns returns the set of columns of table, or nil when every
// column is accepted
func (m *EntityManager) liveColumns(ctx context.Context, op *operation, table string) (map[string]bool, error) {
	if m.schema == nil {
		return nil, nil
	}
	if set, ok := op.columns[table]; ok {
		return set, nil
	}

	columns, ok, err := m.schema.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	var set map[string]bool
	if ok {
		set = make(map[string]bool, len(columns))
		for _, c := range columns {
			set[c] = true
		}
	}
	op.columns[table] = set
	return set, nil
}

// writableColumns collects column -> value for every mapped scalar and
// owning join column present in the live table. The primary key is left
// out when skipKey is set.
func (m *EntityManager) writableColumns(
	ctx context.Context,
	op *operation,
	meta *metadata.EntityMetadata,
	e entity.Entity,
	skipKey bool,
) ([]string, map[string]interface{}, error) {
	live, err := m.liveColumns(ctx, op, meta.Table)
	if err != nil {
		return nil, nil, err
	}
	accept := func(column string) bool {
		return live == nil || live[column]
	}

	props := m.store.Properties(meta)
	columns := make([]string, 0, len(props.Columns))
	values := make(map[string]interface{}, len(props.Columns))

	for _, pair := range props.Columns {
		if skipKey && pair.Attribute == meta.PrimaryKey {
			continue
		}
		if !accept(pair.Column) {
			continue
		}
		columns = append(columns, pair.Column)
		values[pair.Column] = e.Get(pair.Attribute)
	}

	for _, rel := range props.JoinColumns() {
		if !accept(rel.JoinColumn) {
			continue
		}
		var value interface{}
		if target := entity.First(e, rel.Attribute); target != nil {
			value = m.identifier(target)
		}
		columns = append(columns, rel.JoinColumn)
		values[rel.JoinColumn] = value
	}

	return columns, values, nil
}

// identifier returns the primary key value of e, or nil
func (m *EntityManager) identifier(e entity.Entity) interface{} {
	meta, err := m.store.Of(e)
	if err != nil {
		return nil
	}
	id := e.Get(meta.PrimaryKey)
	if isZero(id) {
		return nil
	}
	return id
}

// hasGeneratedKey reports whether meta's primary key is assigned by the
// database
func hasGeneratedKey(meta *metadata.EntityMetadata) bool {
	pk := meta.PrimaryKeyField()
	return pk != nil && pk.Type.IsInteger()
}

func isZero(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case int:
		return t == 0
	case int8:
		return t == 0
	case int16:
		return t == 0
	case int32:
		return t == 0
	case int64:
		return t == 0
	case uint:
		return t == 0
	case uint8:
		return t == 0
	case uint16:
		return t == 0
	case uint32:
		return t == 0
	case uint64:
		return t == 0
	case float32:
		return t == 0
	case float64:
		return t == 0
	case string:
		return t == ""
	case []byte:
		return len(t) == 0
	default:
		return false
	}
}
