package crud

import (
	"context"
	"fmt"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

// syncJoinRows makes the join table of an owning many-to-many relation
// match the current collection: missing links are inserted and stale
// ones deleted. Targets without a key are skipped. A freshly inserted
// owner has no links to read.
func (m *EntityManager) syncJoinRows(
	ctx context.Context,
	meta *metadata.EntityMetadata,
	e entity.Entity,
	rel *metadata.RelationProperty,
	targets []entity.Entity,
	inserted bool,
) error {
	ownID := e.Get(meta.PrimaryKey)

	existing := map[string]interface{}{}
	if !inserted {
		var err error
		if existing, err = m.linkedKeys(ctx, rel, ownID); err != nil {
			return err
		}
	}

	wanted := make(map[string]bool, len(targets))
	for _, target := range targets {
		targetID := m.identifier(target)
		if targetID == nil {
			continue
		}
		key := fmt.Sprint(targetID)
		if wanted[key] {
			continue
		}
		wanted[key] = true
		if _, ok := existing[key]; ok {
			continue
		}

		b, err := m.builder(ctx)
		if err != nil {
			return err
		}
		_, err = b.InsertInto(rel.JoinTable, rel.OwnJoinColumn, rel.TargetJoinColumn).
			SetParameter(rel.OwnJoinColumn, ownID).
			SetParameter(rel.TargetJoinColumn, targetID).
			Execute(ctx)
		if err != nil {
			return err
		}
	}

	for key, targetID := range existing {
		if wanted[key] {
			continue
		}
		b, err := m.builder(ctx)
		if err != nil {
			return err
		}
		_, err = b.Delete().From(rel.JoinTable).
			Where(fmt.Sprintf("%s = :own", rel.OwnJoinColumn)).
			AndWhere(fmt.Sprintf("%s = :target", rel.TargetJoinColumn)).
			SetParameter("own", ownID).
			SetParameter("target", targetID).
			Execute(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// linkedKeys returns the target keys currently linked to ownID, keyed by
// their string form
func (m *EntityManager) linkedKeys(ctx context.Context, rel *metadata.RelationProperty, ownID interface{}) (map[string]interface{}, error) {
	b, err := m.builder(ctx)
	if err != nil {
		return nil, err
	}
	values, err := b.Select(rel.TargetJoinColumn).
		From(rel.JoinTable).
		Where(fmt.Sprintf("%s = :id", rel.OwnJoinColumn)).
		SetParameter("id", ownID).
		FetchColumn(ctx)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]interface{}, len(values))
	for _, v := range values {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		keys[fmt.Sprint(v)] = v
	}
	return keys, nil
}
