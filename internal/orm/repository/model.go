// Package repository provides per-entity lookups that hydrate relations
// through the relation walker
package repository

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/query"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/relationships"
)

// ErrNotFound is returned by MustFind when no row matches
var ErrNotFound = errors.New("record not found")

// SearchMode selects between a single result and every result
type SearchMode int

const (
	// SearchOne limits the query to one row
	SearchOne SearchMode = iota
	// SearchAll returns every matching row
	SearchAll
)

// String returns the string representation of the mode
func (m SearchMode) String() string {
	if m == SearchOne {
		return "one"
	}
	return "all"
}

// Model runs lookups for one entity type
type Model struct {
	meta   *metadata.EntityMetadata
	store  *metadata.Store
	conn   relationships.ConnectionProvider
	walker *relationships.Walker
	logger *zap.Logger
}

// NewModel creates the repository of typeName
func NewModel(typeName string, store *metadata.Store, conn relationships.ConnectionProvider, logger *zap.Logger) (*Model, error) {
	meta, err := store.Get(typeName)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Model{
		meta:   meta,
		store:  store,
		conn:   conn,
		walker: relationships.NewWalker(store, conn, logger),
		logger: logger,
	}, nil
}

// Metadata returns the metadata of the model's entity type
func (m *Model) Metadata() *metadata.EntityMetadata {
	return m.meta
}

// Find returns the entity with primary key id, or nil
func (m *Model) Find(ctx context.Context, id interface{}) (entity.Entity, error) {
	return m.FindOneBy(ctx, Where(m.meta.PrimaryKey, id))
}

// MustFind is Find but fails with ErrNotFound when nothing matches
func (m *Model) MustFind(ctx context.Context, id interface{}) (entity.Entity, error) {
	e, err := m.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: %s %v", ErrNotFound, m.meta.Name, id)
	}
	return e, nil
}

// FindOneBy returns the first entity matching criteria, or nil
func (m *Model) FindOneBy(ctx context.Context, criteria *Criteria) (entity.Entity, error) {
	result, err := m.FindByCriteria(ctx, criteria, SearchOne, false)
	if err != nil || len(result) == 0 {
		return nil, err
	}
	return result[0], nil
}

// FindBy returns every entity matching criteria
func (m *Model) FindBy(ctx context.Context, criteria *Criteria) ([]entity.Entity, error) {
	return m.FindByCriteria(ctx, criteria, SearchAll, false)
}

// FindAll returns every entity of the type
func (m *Model) FindAll(ctx context.Context) ([]entity.Entity, error) {
	return m.FindByCriteria(ctx, nil, SearchAll, false)
}

// FindByCriteria runs the lookup every other finder routes through. The
// result is never nil. Unless hydrated is set, relations of the returned
// entities are populated before returning.
func (m *Model) FindByCriteria(ctx context.Context, criteria *Criteria, mode SearchMode, hydrated bool) ([]entity.Entity, error) {
	b, err := m.builder(ctx)
	if err != nil {
		return nil, err
	}
	b.Select(m.meta.QualifiedColumns("t")...).From(m.meta.Table + " t")
	if err := m.applyCriteria(b, criteria); err != nil {
		return nil, err
	}
	b.OrderBy("t." + m.meta.PrimaryKeyColumn())
	if mode == SearchOne {
		b.SetMaxResults(1)
	}

	result, err := b.FetchAllAsEntities(ctx, func(row map[string]interface{}) entity.Entity {
		return m.store.Hydrate(m.meta, row)
	})
	if err != nil {
		return nil, err
	}

	if len(result) > 0 && m.meta.HasRelations() && !hydrated {
		if err := m.walker.PopulateAll(ctx, result); err != nil {
			return nil, err
		}
	}

	m.logger.Debug("lookup completed",
		zap.String("entity", m.meta.Name),
		zap.Stringer("mode", mode),
		zap.Int("results", len(result)))
	return result, nil
}

// Count returns the number of rows matching criteria
func (m *Model) Count(ctx context.Context, criteria *Criteria) (int64, error) {
	b, err := m.builder(ctx)
	if err != nil {
		return 0, err
	}
	b.Select("COUNT(*)").From(m.meta.Table + " t")
	if err := m.applyCriteria(b, criteria); err != nil {
		return 0, err
	}

	values, err := b.FetchColumn(ctx)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	return toInt64(values[0])
}

// applyCriteria translates criteria keys into column predicates
func (m *Model) applyCriteria(b *query.Builder, criteria *Criteria) error {
	props := m.store.Properties(m.meta)

	for i, key := range criteria.Keys() {
		column, value, err := m.resolve(props, key, criteria.Value(key))
		if err != nil {
			return err
		}

		param := fmt.Sprintf("p%d", i)
		clause := fmt.Sprintf("t.%s = :%s", column, param)
		if value == nil {
			clause = fmt.Sprintf("t.%s IS NULL", column)
		} else {
			b.SetParameter(param, value)
		}

		if i == 0 {
			b.Where(clause)
		} else {
			b.AndWhere(clause)
		}
	}
	return nil
}

// resolve maps a criteria key to a column of the entity's table. Relation
// attributes become their join column and entity values their key.
func (m *Model) resolve(props *metadata.Properties, key string, value interface{}) (string, interface{}, error) {
	if e, ok := value.(entity.Entity); ok {
		target, err := m.store.Of(e)
		if err != nil {
			return "", nil, err
		}
		value = e.Get(target.PrimaryKey)
	}

	if column, ok := m.meta.ColumnFor(key); ok {
		return column, value, nil
	}
	for _, rel := range props.JoinColumns() {
		if rel.Attribute == key || rel.JoinColumn == key {
			return rel.JoinColumn, value, nil
		}
	}
	if _, ok := m.meta.AttributeFor(key); ok {
		return key, value, nil
	}
	return "", nil, &metadata.MetadataError{
		Entity: m.meta.Name,
		Reason: fmt.Sprintf("criteria key %q is neither a column nor a join column", key),
	}
}

func (m *Model) builder(ctx context.Context) (*query.Builder, error) {
	db, err := m.conn.GetConnection(ctx)
	if err != nil {
		return nil, err
	}
	return query.New(db, m.conn.Dialect(), m.logger), nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		var out int64
		_, err := fmt.Sscan(string(n), &out)
		return out, err
	case string:
		var out int64
		_, err := fmt.Sscan(n, &out)
		return out, err
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
