package crud

import (
	"context"
	"errors"
	"fmt"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/hooks"
)

// ErrMissingIdentifier is returned when an operation needs a primary key
// the entity does not carry
var ErrMissingIdentifier = errors.New("entity has no identifier")

// Update writes every mapped scalar and owning join column of e keyed by
// its primary key, cascades persist to flagged relations and reconciles
// the many-to-many join rows e owns
func (m *EntityManager) Update(ctx context.Context, e entity.Entity) error {
	return m.update(ctx, newOperation(), e)
}

func (m *EntityManager) update(ctx context.Context, op *operation, e entity.Entity) error {
	if op.updated[e] {
		return nil
	}
	meta, err := m.store.Of(e)
	if err != nil {
		return err
	}
	id := e.Get(meta.PrimaryKey)
	if isZero(id) {
		return fmt.Errorf("%w: %s", ErrMissingIdentifier, meta.Name)
	}
	op.updated[e] = true
	op.persisted[e] = true

	for _, rel := range m.store.Properties(meta).JoinColumns() {
		if !rel.CascadePersist {
			continue
		}
		if err := m.persist(ctx, op, entity.First(e, rel.Attribute)); err != nil {
			return err
		}
	}

	if err := m.dispatch(ctx, meta, hooks.PreUpdate, e); err != nil {
		return err
	}

	columns, values, err := m.writableColumns(ctx, op, meta, e, true)
	if err != nil {
		return err
	}
	if len(columns) > 0 {
		pk := meta.PrimaryKeyColumn()
		b, err := m.builder(ctx)
		if err != nil {
			return err
		}
		_, err = b.Update(meta.Table).
			Set(columns...).
			Where(fmt.Sprintf("%s = :%s", pk, pk)).
			SetParameters(values).
			SetParameter(pk, id).
			Execute(ctx)
		if err != nil {
			return constraintError(meta, err)
		}
	}
	m.markInserted(e)

	if err := m.cascadeAfterWrite(ctx, op, meta, e, false); err != nil {
		return err
	}
	return m.dispatch(ctx, meta, hooks.PostUpdate, e)
}
