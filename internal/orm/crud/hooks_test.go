package crud_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/hooks"
)

func TestHooks_LifecycleOrder(t *testing.T) {
	ctx := context.Background()
	em, env := newManager(t)

	var events []string
	x := hooks.NewExecutor(nil)
	for _, event := range []hooks.Event{
		hooks.PrePersist, hooks.PostPersist,
		hooks.PreUpdate, hooks.PostUpdate,
		hooks.PreRemove, hooks.PostRemove,
	} {
		x.Register("Tag", event, func(hc *hooks.Context, e entity.Entity) error {
			events = append(events, hc.Event().String())
			if hc.Event() == hooks.PostPersist {
				assert.NotNil(t, e.Get("id"))
			}
			return nil
		})
	}
	em.SetHooks(x)

	tag := record("Tag", map[string]interface{}{"label": "go"})
	require.NoError(t, em.Persist(ctx, tag))
	tag.Set("label", "golang")
	require.NoError(t, em.Update(ctx, tag))
	require.NoError(t, em.Remove(ctx, tag))

	assert.Equal(t, []string{
		"prePersist", "postPersist",
		"preUpdate", "postUpdate",
		"preRemove", "postRemove",
	}, events)
	assert.Equal(t, 0, env.Count(t, "tag"))
}

func TestHooks_PrePersistCanModify(t *testing.T) {
	ctx := context.Background()
	em, env := newManager(t)

	x := hooks.NewExecutor(nil)
	x.Register(hooks.AllEntities, hooks.PrePersist, func(_ *hooks.Context, e entity.Entity) error {
		if e.EntityType() == "Tag" {
			e.Set("label", "normalized")
		}
		return nil
	})
	em.SetHooks(x)

	require.NoError(t, em.Persist(ctx, record("Tag", map[string]interface{}{"label": "Raw"})))

	db, err := env.Factory.GetConnection(ctx)
	require.NoError(t, err)
	var label string
	require.NoError(t, db.QueryRow("SELECT label FROM tag").Scan(&label))
	assert.Equal(t, "normalized", label)
}

func TestHooks_PreRemoveVetoes(t *testing.T) {
	ctx := context.Background()
	em, env := newManager(t)

	tag := record("Tag", map[string]interface{}{"label": "keep"})
	require.NoError(t, em.Persist(ctx, tag))

	veto := errors.New("tag is protected")
	x := hooks.NewExecutor(nil)
	x.Register("Tag", hooks.PreRemove, func(*hooks.Context, entity.Entity) error { return veto })
	em.SetHooks(x)

	assert.ErrorIs(t, em.Remove(ctx, tag), veto)
	assert.Equal(t, 1, env.Count(t, "tag"))
}
