package crud

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/hooks"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

// Persist inserts e and cascades to the relations flagged for persist.
// An instance is inserted at most once in the manager's lifetime; an
// instance whose generated key is already set is treated as persisted.
func (m *EntityManager) Persist(ctx context.Context, e entity.Entity) error {
	return m.persist(ctx, newOperation(), e)
}

// PersistAll persists every entity within one call tree
func (m *EntityManager) PersistAll(ctx context.Context, entities []entity.Entity) error {
	op := newOperation()
	for _, e := range entities {
		if err := m.persist(ctx, op, e); err != nil {
			return err
		}
	}
	return nil
}

func (m *EntityManager) persist(ctx context.Context, op *operation, e entity.Entity) error {
	if e == nil || op.persisted[e] {
		return nil
	}
	meta, err := m.store.Of(e)
	if err != nil {
		return err
	}
	op.persisted[e] = true

	if m.wasInserted(e) || hasGeneratedKey(meta) && !isZero(e.Get(meta.PrimaryKey)) {
		return nil
	}

	// owning single-valued targets first so their keys can be written
	props := m.store.Properties(meta)
	for _, rel := range props.JoinColumns() {
		if !rel.CascadePersist {
			continue
		}
		if err := m.persist(ctx, op, entity.First(e, rel.Attribute)); err != nil {
			return err
		}
	}

	if err := m.dispatch(ctx, meta, hooks.PrePersist, e); err != nil {
		return err
	}
	if err := m.insert(ctx, op, meta, e); err != nil {
		return err
	}
	if err := m.cascadeAfterWrite(ctx, op, meta, e, true); err != nil {
		return err
	}
	return m.dispatch(ctx, meta, hooks.PostPersist, e)
}

func (m *EntityManager) insert(ctx context.Context, op *operation, meta *metadata.EntityMetadata, e entity.Entity) error {
	generated := hasGeneratedKey(meta)
	if pk := meta.PrimaryKeyField(); pk != nil && pk.Type == metadata.TypeUUID && isZero(e.Get(meta.PrimaryKey)) {
		e.Set(meta.PrimaryKey, uuid.New().String())
	}

	columns, values, err := m.writableColumns(ctx, op, meta, e, generated)
	if err != nil {
		return err
	}

	b, err := m.builder(ctx)
	if err != nil {
		return err
	}
	b.InsertInto(meta.Table, columns...).SetParameters(values)

	if !generated {
		if _, err := b.Execute(ctx); err != nil {
			return constraintError(meta, err)
		}
		m.markInserted(e)
		return nil
	}

	id, err := b.Returning(meta.PrimaryKeyColumn()).ExecuteInsert(ctx)
	if err != nil {
		return constraintError(meta, err)
	}
	e.Set(meta.PrimaryKey, id)
	m.markInserted(e)

	m.logger.Debug("entity persisted",
		zap.String("entity", meta.Name),
		zap.Int64("id", id))
	return nil
}

// cascadeAfterWrite links and persists collection and inverse targets,
// then writes the many-to-many join rows owned by e. inserted means e has
// no join rows yet.
func (m *EntityManager) cascadeAfterWrite(
	ctx context.Context,
	op *operation,
	meta *metadata.EntityMetadata,
	e entity.Entity,
	inserted bool,
) error {
	for _, rel := range m.store.Properties(meta).Relations {
		if rel.HoldsForeignKey() {
			continue
		}

		targets := e.Related(rel.Attribute)
		for _, target := range targets {
			if rel.Inverse != "" {
				backLink(target, e, rel)
			}
			if rel.CascadePersist {
				if err := m.persist(ctx, op, target); err != nil {
					return err
				}
			}
		}

		if rel.Kind == metadata.ManyToMany && rel.Owning {
			if err := m.syncJoinRows(ctx, meta, e, rel, targets, inserted); err != nil {
				return err
			}
		}
	}
	return nil
}

// backLink points target back at owner through the inverse attribute
func backLink(target, owner entity.Entity, rel *metadata.RelationProperty) {
	switch rel.Kind {
	case metadata.ManyToMany:
		target.AddRelated(rel.Inverse, owner)
	default:
		target.SetRelated(rel.Inverse, owner)
	}
}
