package crud

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/hooks"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

// Remove deletes e by primary key together with its dependent rows:
// one-to-many children, every many-to-many join row and inverse one-to-one
// targets flagged for remove. Other inverse one-to-one targets are
// detached. Many-to-one owners are never deleted.
func (m *EntityManager) Remove(ctx context.Context, e entity.Entity) error {
	meta, err := m.store.Of(e)
	if err != nil {
		return err
	}
	id := e.Get(meta.PrimaryKey)
	if isZero(id) {
		return fmt.Errorf("%w: %s", ErrMissingIdentifier, meta.Name)
	}

	pk := meta.PrimaryKeyColumn()
	scope := rowScope{
		where:  fmt.Sprintf("%s = :id", pk),
		params: map[string]interface{}{"id": id},
	}
	if err := m.dispatch(ctx, meta, hooks.PreRemove, e); err != nil {
		return err
	}
	if err := m.removeRows(ctx, meta, scope, newRemoval()); err != nil {
		return err
	}
	m.forget(meta.Name, e)

	m.logger.Debug("entity removed", zap.String("entity", meta.Name), zap.Any("id", id))
	return m.dispatch(ctx, meta, hooks.PostRemove, e)
}

// RemoveAll deletes every row of the entity's table, and the rows that
// depend on them
func (m *EntityManager) RemoveAll(ctx context.Context, typeName string) error {
	meta, err := m.store.Get(typeName)
	if err != nil {
		return err
	}
	if err := m.removeRows(ctx, meta, rowScope{}, newRemoval()); err != nil {
		return err
	}
	m.forget(meta.Name)
	return nil
}

// RemoveCollection deletes every row of the table of the collection's
// entity type; the collection's members only name the type
func (m *EntityManager) RemoveCollection(ctx context.Context, entities []entity.Entity) error {
	meta, err := m.store.OfSlice(entities)
	if err != nil {
		return err
	}
	for _, e := range entities {
		if err := m.dispatch(ctx, meta, hooks.PreRemove, e); err != nil {
			return err
		}
	}
	if err := m.removeRows(ctx, meta, rowScope{}, newRemoval()); err != nil {
		return err
	}
	m.forget(meta.Name)
	for _, e := range entities {
		if err := m.dispatch(ctx, meta, hooks.PostRemove, e); err != nil {
			return err
		}
	}
	return nil
}

// rowScope selects rows of one table; an empty where selects every row
type rowScope struct {
	where  string
	params map[string]interface{}
}

// keys returns a subquery selecting the primary keys in scope
func (s rowScope) keys(meta *metadata.EntityMetadata) string {
	sub := fmt.Sprintf("SELECT %s FROM %s", meta.PrimaryKeyColumn(), meta.Table)
	if s.where != "" {
		sub += " WHERE " + s.where
	}
	return sub
}

// removal tracks one delete cascade: the tables being removed up the call
// chain and the self-referencing keys already scheduled
type removal struct {
	path map[string]bool
	seen map[string]bool
}

func newRemoval() *removal {
	return &removal{path: make(map[string]bool), seen: make(map[string]bool)}
}

// keyScope selects the rows of meta whose primary key is one of ids
func keyScope(meta *metadata.EntityMetadata, ids []interface{}) rowScope {
	markers := make([]string, len(ids))
	params := make(map[string]interface{}, len(ids))
	for i, id := range ids {
		name := fmt.Sprintf("k%d", i)
		markers[i] = ":" + name
		params[name] = id
	}
	return rowScope{
		where:  fmt.Sprintf("%s IN (%s)", meta.PrimaryKeyColumn(), strings.Join(markers, ", ")),
		params: params,
	}
}

// removeRows deletes dependents of the scoped rows, then the rows
// themselves. A relation back into a table already on the path is only
// followed when it references the same table: its child keys are resolved
// first and removed by key, which ends once no unseen child is left.
func (m *EntityManager) removeRows(ctx context.Context, meta *metadata.EntityMetadata, scope rowScope, r *removal) error {
	if !r.path[meta.Table] {
		r.path[meta.Table] = true
		defer delete(r.path, meta.Table)
	}

	keys := scope.keys(meta)

	for _, rel := range m.store.Properties(meta).Relations {
		switch {
		case rel.Kind == metadata.ManyToMany:
			b, err := m.builder(ctx)
			if err != nil {
				return err
			}
			_, err = b.Delete().From(rel.JoinTable).
				Where(fmt.Sprintf("%s IN (%s)", rel.OwnJoinColumn, keys)).
				SetParameters(scope.params).
				Execute(ctx)
			if err != nil {
				return err
			}

		case rel.HoldsForeignKey():
			// the owner side is never removed

		case rel.Kind == metadata.OneToMany || rel.CascadeRemove:
			target, err := m.store.Get(rel.TargetEntity)
			if err != nil {
				return err
			}
			child := rowScope{
				where:  fmt.Sprintf("%s IN (%s)", rel.JoinColumn, keys),
				params: scope.params,
			}
			if target.Table == meta.Table {
				ids, err := m.childKeys(ctx, target, child, r)
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					continue
				}
				child = keyScope(target, ids)
			} else if r.path[target.Table] {
				continue
			}
			if err := m.removeRows(ctx, target, child, r); err != nil {
				return err
			}

		default:
			// inverse one-to-one without remove: detach the target
			b, err := m.builder(ctx)
			if err != nil {
				return err
			}
			_, err = b.Update(rel.TargetTable).
				Set(rel.JoinColumn).
				Where(fmt.Sprintf("%s IN (%s)", rel.JoinColumn, keys)).
				SetParameters(scope.params).
				SetParameter(rel.JoinColumn, nil).
				Execute(ctx)
			if err != nil {
				return err
			}
		}
	}

	b, err := m.builder(ctx)
	if err != nil {
		return err
	}
	b.Delete().From(meta.Table).SetParameters(scope.params)
	if scope.where != "" {
		b.Where(scope.where)
	}
	_, err = b.Execute(ctx)
	return constraintError(meta, err)
}

// childKeys returns the primary keys in scope not yet scheduled by r
func (m *EntityManager) childKeys(ctx context.Context, meta *metadata.EntityMetadata, scope rowScope, r *removal) ([]interface{}, error) {
	b, err := m.builder(ctx)
	if err != nil {
		return nil, err
	}
	values, err := b.Select(meta.PrimaryKeyColumn()).From(meta.Table).
		Where(scope.where).
		SetParameters(scope.params).
		FetchColumn(ctx)
	if err != nil {
		return nil, err
	}

	var ids []interface{}
	for _, v := range values {
		key := fmt.Sprintf("%s#%v", meta.Table, v)
		if r.seen[key] {
			continue
		}
		r.seen[key] = true
		ids = append(ids, v)
	}
	return ids, nil
}
