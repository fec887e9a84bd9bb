package metadata

import "fmt"

// ColumnPair maps one attribute to its column
type ColumnPair struct {
	Attribute string
	Column    string
}

// RelationProperty is a relation with every default resolved
type RelationProperty struct {
	Kind      RelationKind
	Attribute string

	TargetEntity     string
	TargetTable      string
	TargetPrimaryKey string // column

	// JoinColumn is the foreign-key column. For owning one-to-one and
	// many-to-one it lives on the own table; for one-to-many and inverse
	// one-to-one it lives on the target table.
	JoinColumn string

	// Many-to-many join table and its two foreign-key columns
	JoinTable        string
	OwnJoinColumn    string
	TargetJoinColumn string

	MappedBy   string
	InversedBy string
	// Inverse is the attribute on the target pointing back, if any
	Inverse string

	Owning         bool
	CascadePersist bool
	CascadeRemove  bool
}

// HoldsForeignKey reports whether the own table carries the join column
func (p *RelationProperty) HoldsForeignKey() bool {
	return p.Owning && (p.Kind == ManyToOne || p.Kind == OneToOne)
}

// Properties is the derived attribute/column view of an entity
type Properties struct {
	Columns   []ColumnPair
	Relations []*RelationProperty
}

// Relation returns the derived relation for attr
func (p *Properties) Relation(attr string) (*RelationProperty, bool) {
	for _, r := range p.Relations {
		if r.Attribute == attr {
			return r, true
		}
	}
	return nil, false
}

// JoinColumns returns the derived relations whose join column lives on the
// entity's own table
func (p *Properties) JoinColumns() []*RelationProperty {
	var result []*RelationProperty
	for _, r := range p.Relations {
		if r.HoldsForeignKey() {
			result = append(result, r)
		}
	}
	return result
}

// Properties returns the derived view for meta, computing it on first use.
// Validate must have succeeded before this is called.
func (s *Store) Properties(meta *EntityMetadata) *Properties {
	meta.propsOnce.Do(func() {
		meta.props = s.deriveProperties(meta)
	})
	return meta.props
}

func (s *Store) deriveProperties(meta *EntityMetadata) *Properties {
	props := &Properties{
		Columns: make([]ColumnPair, 0, len(meta.Fields)),
	}
	for _, f := range meta.Fields {
		props.Columns = append(props.Columns, ColumnPair{Attribute: f.Name, Column: f.ColumnName()})
	}

	for _, rel := range meta.AllRelations() {
		target, err := s.Get(rel.Target)
		if err != nil {
			// unreachable after Validate; keep the relation out of the view
			s.logger.Sugar().Warnf("skipping relation %s.%s: %v", meta.Name, rel.Attribute, err)
			continue
		}
		props.Relations = append(props.Relations, deriveRelation(meta, target, rel))
	}
	return props
}

func deriveRelation(meta, target *EntityMetadata, rel *Relation) *RelationProperty {
	p := &RelationProperty{
		Kind:             rel.Kind,
		Attribute:        rel.Attribute,
		TargetEntity:     target.Name,
		TargetTable:      target.Table,
		TargetPrimaryKey: target.PrimaryKeyColumn(),
		MappedBy:         rel.MappedBy,
		InversedBy:       rel.InversedBy,
		Inverse:          rel.Inverse(),
		Owning:           rel.IsOwningSide(),
		CascadePersist:   rel.Cascade.Persist,
		CascadeRemove:    rel.Cascade.Remove,
	}

	// the inverse descriptor on the target, when the relation is bidirectional
	var counterpart *Relation
	if p.Inverse != "" {
		counterpart, _ = target.Relation(p.Inverse)
	}

	switch {
	case rel.Kind == ManyToMany:
		p.JoinTable = rel.JoinTable
		if p.JoinTable == "" && counterpart != nil && counterpart.JoinTable != "" {
			p.JoinTable = counterpart.JoinTable
		}
		if p.JoinTable == "" {
			if p.Owning {
				p.JoinTable = fmt.Sprintf("%s_%s", target.Table, meta.Table)
			} else {
				p.JoinTable = fmt.Sprintf("%s_%s", meta.Table, target.Table)
			}
		}
		p.OwnJoinColumn = DefaultJoinColumn(meta.Table)
		p.TargetJoinColumn = DefaultJoinColumn(target.Table)

	case p.HoldsForeignKey():
		p.JoinColumn = rel.JoinColumn
		if p.JoinColumn == "" {
			p.JoinColumn = DefaultJoinColumn(target.Table)
		}

	default:
		// one-to-many or inverse one-to-one: the key is on the target table
		switch {
		case rel.JoinColumn != "":
			p.JoinColumn = rel.JoinColumn
		case counterpart != nil && counterpart.JoinColumn != "":
			p.JoinColumn = counterpart.JoinColumn
		default:
			p.JoinColumn = DefaultJoinColumn(meta.Table)
		}
	}

	return p
}
