// Package relationships populates the relation attributes of loaded
// entities by walking the mapped relation graph.
package relationships

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/dialect"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/query"
)

// ConnectionProvider hands out the database handle and its dialect
type ConnectionProvider interface {
	GetConnection(ctx context.Context) (*sql.DB, error)
	Dialect() dialect.Dialect
}

// Walker loads related entities depth-first. Every edge of the relation
// graph is walked at most once per pass, and the descent into a target
// skips the inverse of the edge it came through, so bidirectional mappings
// terminate.
type Walker struct {
	store  *metadata.Store
	conn   ConnectionProvider
	logger *zap.Logger
}

// NewWalker creates a relation walker
func NewWalker(store *metadata.Store, conn ConnectionProvider, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{store: store, conn: conn, logger: logger}
}

// Populate fills every relation reachable from root
func (w *Walker) Populate(ctx context.Context, root entity.Entity) error {
	return w.PopulateAll(ctx, []entity.Entity{root})
}

// PopulateAll fills every relation reachable from roots, which must share
// one entity type. Instances are shared across roots within the pass.
func (w *Walker) PopulateAll(ctx context.Context, roots []entity.Entity) error {
	if len(roots) == 0 {
		return nil
	}
	meta, err := w.store.OfSlice(roots)
	if err != nil {
		return err
	}

	pass := NewPass()
	for _, root := range roots {
		pass.Track(meta.Name, root.Get(meta.PrimaryKey), root)
	}
	return w.Walk(ctx, meta, roots, pass)
}

// Walk populates the relations of entities (all of type meta) not yet
// visited in pass, then recurses into the newly materialized targets
func (w *Walker) Walk(ctx context.Context, meta *metadata.EntityMetadata, entities []entity.Entity, pass *Pass) error {
	return w.walk(ctx, meta, entities, pass, "")
}

// walk is Walk with one relation of meta excluded: the inverse of the edge
// that led here, already linked by loadRelation. The exclusion is local to
// this descent so a self-referencing type still walks it for its roots.
func (w *Walker) walk(ctx context.Context, meta *metadata.EntityMetadata, entities []entity.Entity, pass *Pass, exclude string) error {
	props := w.store.Properties(meta)

	for _, rel := range props.Relations {
		if rel.Attribute == exclude {
			continue
		}
		if !pass.MarkVisited(meta.Name, rel.Attribute) {
			continue
		}

		target, err := w.store.Get(rel.TargetEntity)
		if err != nil {
			return err
		}

		var fresh []entity.Entity
		for _, root := range entities {
			loaded, err := w.loadRelation(ctx, meta, root, target, rel, pass)
			if err != nil {
				return fmt.Errorf("failed to load relation %s.%s: %w", meta.Name, rel.Attribute, err)
			}
			fresh = append(fresh, loaded...)
		}

		w.logger.Debug("relation populated",
			zap.String("entity", meta.Name),
			zap.String("relation", rel.Attribute),
			zap.Int("materialized", len(fresh)))

		if len(fresh) > 0 {
			if err := w.walk(ctx, target, fresh, pass, rel.Inverse); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadRelation populates a single relation attribute of root without
// following the graph further
func (w *Walker) LoadRelation(ctx context.Context, root entity.Entity, attr string) error {
	meta, err := w.store.Of(root)
	if err != nil {
		return err
	}
	rel, ok := w.store.Properties(meta).Relation(attr)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownRelationship, meta.Name, attr)
	}
	target, err := w.store.Get(rel.TargetEntity)
	if err != nil {
		return err
	}

	pass := NewPass()
	pass.Track(meta.Name, root.Get(meta.PrimaryKey), root)
	_, err = w.loadRelation(ctx, meta, root, target, rel, pass)
	return err
}

// loadRelation queries the targets of one root and links both directions.
// It returns the instances first materialized by this call.
func (w *Walker) loadRelation(
	ctx context.Context,
	meta *metadata.EntityMetadata,
	root entity.Entity,
	target *metadata.EntityMetadata,
	rel *metadata.RelationProperty,
	pass *Pass,
) ([]entity.Entity, error) {
	id := root.Get(meta.PrimaryKey)
	if id == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingIdentifier, meta.Name)
	}

	b, err := w.builder(ctx)
	if err != nil {
		return nil, err
	}
	b.Select(target.QualifiedColumns("t")...).
		From(target.Table+" t").
		SetParameter("id", id)

	switch {
	case rel.Kind == metadata.ManyToMany:
		b.Join(rel.JoinTable+" jt", query.InnerJoin, fmt.Sprintf("jt.%s = t.%s", rel.TargetJoinColumn, rel.TargetPrimaryKey)).
			Where(fmt.Sprintf("jt.%s = :id", rel.OwnJoinColumn))

	case rel.HoldsForeignKey():
		b.Join(meta.Table+" o", query.InnerJoin, fmt.Sprintf("o.%s = t.%s", rel.JoinColumn, rel.TargetPrimaryKey)).
			Where(fmt.Sprintf("o.%s = :id", meta.PrimaryKeyColumn()))

	default:
		b.Where(fmt.Sprintf("t.%s = :id", rel.JoinColumn))
	}
	b.OrderBy("t." + target.PrimaryKeyColumn())

	rows, err := b.FetchMaps(ctx)
	if err != nil {
		return nil, err
	}

	var fresh []entity.Entity
	for _, row := range rows {
		candidate := w.store.Hydrate(target, row)
		instance, created := pass.Track(target.Name, candidate.Get(target.PrimaryKey), candidate)
		if created {
			fresh = append(fresh, instance)
		}
		link(root, instance, rel)
	}
	return fresh, nil
}

// link sets the relation on root and the inverse attribute on related
func link(root, related entity.Entity, rel *metadata.RelationProperty) {
	if rel.Kind.IsCollection() {
		root.AddRelated(rel.Attribute, related)
	} else {
		root.SetRelated(rel.Attribute, related)
	}

	if rel.Inverse == "" {
		return
	}
	switch rel.Kind {
	case metadata.ManyToOne, metadata.ManyToMany:
		// inverse side is a collection
		related.AddRelated(rel.Inverse, root)
	default:
		related.SetRelated(rel.Inverse, root)
	}
}

func (w *Walker) builder(ctx context.Context) (*query.Builder, error) {
	db, err := w.conn.GetConnection(ctx)
	if err != nil {
		return nil, err
	}
	return query.New(db, w.conn.Dialect(), w.logger), nil
}
