// Package metadata holds the mapping metadata for every entity type: tables,
// columns, primary keys and relation descriptors. Metadata is loaded once
// from YAML descriptors and is read-only afterwards.
package metadata

import (
	"fmt"
	"sync"
)

// FieldType is the declared type of a mapped attribute
type FieldType int

const (
	TypeString FieldType = iota
	TypeText
	TypeInteger
	TypeSmallInt
	TypeBigInt
	TypeFloat
	TypeDecimal
	TypeBoolean
	TypeDate
	TypeDateTime
	TypeTime
	TypeJSON
	TypeUUID
)

// String returns the descriptor spelling of the field type
func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeInteger:
		return "integer"
	case TypeSmallInt:
		return "smallint"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeDateTime:
		return "datetime"
	case TypeTime:
		return "time"
	case TypeJSON:
		return "json"
	case TypeUUID:
		return "uuid"
	default:
		return "unknown"
	}
}

// IsInteger reports whether values of this type are whole numbers
func (t FieldType) IsInteger() bool {
	return t == TypeInteger || t == TypeSmallInt || t == TypeBigInt
}

// ParseFieldType converts a descriptor type name to a FieldType
func ParseFieldType(s string) (FieldType, error) {
	switch s {
	case "string", "varchar":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "integer", "int":
		return TypeInteger, nil
	case "smallint":
		return TypeSmallInt, nil
	case "bigint":
		return TypeBigInt, nil
	case "float", "double":
		return TypeFloat, nil
	case "decimal":
		return TypeDecimal, nil
	case "boolean", "bool":
		return TypeBoolean, nil
	case "date":
		return TypeDate, nil
	case "datetime", "timestamp":
		return TypeDateTime, nil
	case "time":
		return TypeTime, nil
	case "json":
		return TypeJSON, nil
	case "uuid":
		return TypeUUID, nil
	default:
		return 0, fmt.Errorf("unknown field type: %s", s)
	}
}

// RelationKind is one of the four association kinds
type RelationKind int

const (
	OneToOne RelationKind = iota
	OneToMany
	ManyToOne
	ManyToMany
)

// RelationKinds lists every kind in descriptor order
var RelationKinds = []RelationKind{OneToOne, OneToMany, ManyToOne, ManyToMany}

// String returns the descriptor block name of the relation kind
func (k RelationKind) String() string {
	switch k {
	case OneToOne:
		return "OneToOne"
	case OneToMany:
		return "OneToMany"
	case ManyToOne:
		return "ManyToOne"
	case ManyToMany:
		return "ManyToMany"
	default:
		return "unknown"
	}
}

// IsCollection reports whether the relation holds many entities
func (k RelationKind) IsCollection() bool {
	return k == OneToMany || k == ManyToMany
}

// Field describes one mapped attribute
type Field struct {
	Name     string
	Type     FieldType
	Column   string // explicit column name, empty when derived
	Length   *int
	Nullable bool
	Primary  bool
}

// ColumnName returns the explicit column or the snake-cased attribute name
func (f *Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return ToColumnName(f.Name)
}

// Cascade holds the cascade flags of a relation
type Cascade struct {
	Persist bool
	Remove  bool
}

// Relation is a relation descriptor as declared in a mapping file
type Relation struct {
	Kind       RelationKind
	Attribute  string
	Target     string
	JoinColumn string
	JoinTable  string
	MappedBy   string
	InversedBy string
	Cascade    Cascade
}

// IsOwningSide reports whether this end holds the foreign key or the
// join-table authority
func (r *Relation) IsOwningSide() bool {
	switch r.Kind {
	case ManyToOne:
		return true
	case OneToMany:
		return false
	default:
		if r.InversedBy != "" {
			return true
		}
		return r.MappedBy == ""
	}
}

// Inverse returns the attribute on the target that points back, if any
func (r *Relation) Inverse() string {
	if r.MappedBy != "" {
		return r.MappedBy
	}
	return r.InversedBy
}

// EntityMetadata is the parsed mapping of one entity type
type EntityMetadata struct {
	Name          string
	QualifiedType string
	Table         string
	Model         string
	SourceFile    string

	// Fields in declaration order
	Fields     []*Field
	PrimaryKey string

	Relations map[RelationKind]map[string]*Relation

	propsOnce sync.Once
	props     *Properties
}

// NewEntityMetadata creates metadata with empty field and relation sets
func NewEntityMetadata(name, table, model string) *EntityMetadata {
	return &EntityMetadata{
		Name:          name,
		QualifiedType: name,
		Table:         table,
		Model:         model,
		Fields:        make([]*Field, 0),
		Relations:     make(map[RelationKind]map[string]*Relation),
	}
}

// AddField appends a field
func (m *EntityMetadata) AddField(f *Field) *EntityMetadata {
	m.Fields = append(m.Fields, f)
	return m
}

// AddRelation registers a relation descriptor under its kind
func (m *EntityMetadata) AddRelation(r *Relation) *EntityMetadata {
	if m.Relations[r.Kind] == nil {
		m.Relations[r.Kind] = make(map[string]*Relation)
	}
	m.Relations[r.Kind][r.Attribute] = r
	return m
}

// Field returns the field with the given attribute name
func (m *EntityMetadata) Field(name string) (*Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// PrimaryKeyField returns the resolved primary key field
func (m *EntityMetadata) PrimaryKeyField() *Field {
	f, _ := m.Field(m.PrimaryKey)
	return f
}

// PrimaryKeyColumn returns the column backing the primary key
func (m *EntityMetadata) PrimaryKeyColumn() string {
	if f := m.PrimaryKeyField(); f != nil {
		return f.ColumnName()
	}
	return ToColumnName(m.PrimaryKey)
}

// Columns returns every scalar column in field order
func (m *EntityMetadata) Columns() []string {
	columns := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		columns[i] = f.ColumnName()
	}
	return columns
}

// ColumnFor maps an attribute to its column
func (m *EntityMetadata) ColumnFor(attr string) (string, bool) {
	if f, ok := m.Field(attr); ok {
		return f.ColumnName(), true
	}
	return "", false
}

// AttributeFor maps a column back to its attribute
func (m *EntityMetadata) AttributeFor(column string) (string, bool) {
	for _, f := range m.Fields {
		if f.ColumnName() == column {
			return f.Name, true
		}
	}
	return "", false
}

// Relation finds a relation by attribute across all kinds
func (m *EntityMetadata) Relation(attr string) (*Relation, bool) {
	for _, kind := range RelationKinds {
		if r, ok := m.Relations[kind][attr]; ok {
			return r, true
		}
	}
	return nil, false
}

// AllRelations returns every relation ordered by kind then attribute
func (m *EntityMetadata) AllRelations() []*Relation {
	var result []*Relation
	for _, kind := range RelationKinds {
		for _, attr := range sortedKeys(m.Relations[kind]) {
			result = append(result, m.Relations[kind][attr])
		}
	}
	return result
}

// HasRelations reports whether any relation is declared
func (m *EntityMetadata) HasRelations() bool {
	for _, rels := range m.Relations {
		if len(rels) > 0 {
			return true
		}
	}
	return false
}

// TargetEntityFor returns the target entity type bound to a relation attribute
func (m *EntityMetadata) TargetEntityFor(attr string) (string, bool) {
	if r, ok := m.Relation(attr); ok {
		return r.Target, true
	}
	return "", false
}

// IsOwningSide reports whether the entity owns the relation named attr
func (m *EntityMetadata) IsOwningSide(attr string) bool {
	r, ok := m.Relation(attr)
	return ok && r.IsOwningSide()
}

// HasCascadePersist reports whether attr cascades persist operations
func (m *EntityMetadata) HasCascadePersist(attr string) bool {
	r, ok := m.Relation(attr)
	return ok && r.Cascade.Persist
}

// HasCascadeRemove reports whether attr cascades remove operations
func (m *EntityMetadata) HasCascadeRemove(attr string) bool {
	r, ok := m.Relation(attr)
	return ok && r.Cascade.Remove
}

// resolvePrimaryKey picks the explicitly marked field, else the first one
func (m *EntityMetadata) resolvePrimaryKey() error {
	if len(m.Fields) == 0 {
		return newMetadataError(m.Name, "no fields declared, cannot resolve primary key")
	}
	for _, f := range m.Fields {
		if f.Primary {
			m.PrimaryKey = f.Name
			return nil
		}
	}
	m.Fields[0].Primary = true
	m.PrimaryKey = m.Fields[0].Name
	return nil
}

// validate checks the descriptor-local requirements
func (m *EntityMetadata) validate() error {
	if m.Table == "" {
		return newMetadataError(m.Name, "missing table")
	}
	if m.Model == "" {
		return newMetadataError(m.Name, "missing model")
	}
	if m.PrimaryKey == "" {
		return m.resolvePrimaryKey()
	}
	if _, ok := m.Field(m.PrimaryKey); !ok {
		return newMetadataError(m.Name, fmt.Sprintf("primary key %s is not a declared field", m.PrimaryKey))
	}
	return nil
}
