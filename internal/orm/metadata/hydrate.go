package metadata

import (
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
)

// Hydrate builds an instance of meta from a result row keyed by column
// name. Columns that map to no field are applied under their own name.
func (s *Store) Hydrate(meta *EntityMetadata, row map[string]interface{}) entity.Entity {
	e := s.Factory(meta.Name)()
	for column, value := range row {
		if attr, ok := meta.AttributeFor(column); ok {
			e.Set(attr, value)
			continue
		}
		e.Set(column, value)
	}
	return e
}

// QualifiedColumns returns the field columns of meta prefixed with alias
func (m *EntityMetadata) QualifiedColumns(alias string) []string {
	columns := m.Columns()
	for i, c := range columns {
		columns[i] = alias + "." + c
	}
	return columns
}
