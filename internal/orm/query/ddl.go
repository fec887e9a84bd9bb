package query

import (
	"fmt"
	"strings"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

type columnDefinition struct {
	name      string
	typ       string
	length    int
	nullable  *bool
	increment string
}

func (c *columnDefinition) render() string {
	var sb strings.Builder
	sb.WriteString(c.name)
	sb.WriteString(" ")
	sb.WriteString(c.typ)
	if c.length > 0 {
		fmt.Fprintf(&sb, "(%d)", c.length)
	}
	if c.nullable != nil {
		if *c.nullable {
			sb.WriteString(" NULL")
		} else {
			sb.WriteString(" NOT NULL")
		}
	}
	if c.increment != "" {
		sb.WriteString(" ")
		sb.WriteString(c.increment)
	}
	return sb.String()
}

type foreignKey struct {
	column, refTable, refColumn string
}

type tableDefinition struct {
	name        string
	columns     []*columnDefinition
	primaryKeys []string
	foreignKeys []foreignKey
	ended       bool
}

// render emits column clauses first, then key clauses
func (t *tableDefinition) render() string {
	clauses := make([]string, 0, len(t.columns)+len(t.foreignKeys)+1)
	for _, c := range t.columns {
		clauses = append(clauses, c.render())
	}
	if len(t.primaryKeys) > 0 {
		clauses = append(clauses, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(t.primaryKeys, ", ")))
	}
	for _, fk := range t.foreignKeys {
		clauses = append(clauses, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			fk.column, fk.refTable, fk.refColumn))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.name, strings.Join(clauses, ", "))
}

// CreateTable switches the builder to table-definition mode
func (b *Builder) CreateTable(name string) *Builder {
	b.kind = kindCreateTable
	b.ddl = &tableDefinition{name: name}
	return b
}

// AddColumn starts a column; the following Add* calls apply to it
func (b *Builder) AddColumn(name string) *Builder {
	b.ddl.columns = append(b.ddl.columns, &columnDefinition{name: name})
	return b
}

// AddType sets the type of the current column
func (b *Builder) AddType(t metadata.FieldType) *Builder {
	if c := b.currentColumn(); c != nil {
		c.typ = b.dialect.ColumnType(t)
	}
	return b
}

// AddLength sets the length of the current column
func (b *Builder) AddLength(n int) *Builder {
	if c := b.currentColumn(); c != nil {
		c.length = n
	}
	return b
}

// AddAutoIncrement makes the current column a generated key
func (b *Builder) AddAutoIncrement() *Builder {
	if c := b.currentColumn(); c != nil {
		c.typ, c.increment = b.dialect.AutoIncrement(c.typ)
		c.length = 0
	}
	return b
}

// AddNullable sets the nullability of the current column
func (b *Builder) AddNullable(nullable bool) *Builder {
	if c := b.currentColumn(); c != nil {
		c.nullable = &nullable
	}
	return b
}

// AddJoinColumn adds a nullable foreign-key column of type t
func (b *Builder) AddJoinColumn(name string, t metadata.FieldType) *Builder {
	return b.AddColumn(name).AddType(t).AddNullable(true)
}

// AddPrimaryKey adds column to the PRIMARY KEY clause
func (b *Builder) AddPrimaryKey(column string) *Builder {
	b.ddl.primaryKeys = append(b.ddl.primaryKeys, column)
	return b
}

// AddForeignKey adds a FOREIGN KEY clause
func (b *Builder) AddForeignKey(column, refTable, refColumn string) *Builder {
	b.ddl.foreignKeys = append(b.ddl.foreignKeys, foreignKey{column, refTable, refColumn})
	return b
}

// EndTableCreation closes the definition; further Add* calls are ignored
func (b *Builder) EndTableCreation() *Builder {
	b.ddl.ended = true
	return b
}

func (b *Builder) currentColumn() *columnDefinition {
	if b.ddl == nil || b.ddl.ended || len(b.ddl.columns) == 0 {
		return nil
	}
	return b.ddl.columns[len(b.ddl.columns)-1]
}
