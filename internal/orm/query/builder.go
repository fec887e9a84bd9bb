// Package query provides the fluent statement builder used by the entity
// manager, repositories, relation walker and schema generator.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/dialect"
)

// Executor is satisfied by *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// JoinType represents the type of SQL join
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
)

// String returns the string representation of the join type
func (j JoinType) String() string {
	switch j {
	case LeftJoin:
		return "LEFT"
	case RightJoin:
		return "RIGHT"
	default:
		return "INNER"
	}
}

type statementKind int

const (
	kindSelect statementKind = iota
	kindInsert
	kindUpdate
	kindDelete
	kindCreateTable
)

type join struct {
	Type      JoinType
	Table     string
	Condition string
}

type predicate struct {
	or     bool
	clause string
}

// Builder assembles one SQL statement. Clauses are raw SQL fragments that
// may reference named parameters as :name.
type Builder struct {
	db      Executor
	dialect dialect.Dialect
	logger  *zap.Logger

	kind      statementKind
	fields    []string
	table     string
	columns   []string
	joins     []join
	where     []predicate
	orderBy   []string
	limit     int
	returning string

	params

	ddl *tableDefinition
}

// New creates a builder bound to an executor and dialect
func New(db Executor, d dialect.Dialect, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		db:      db,
		dialect: d,
		logger:  logger,
		params:  newParams(),
	}
}

// Select starts a SELECT of the given expressions
func (b *Builder) Select(fields ...string) *Builder {
	b.kind = kindSelect
	b.fields = append(b.fields, fields...)
	return b
}

// InsertInto starts an INSERT. Each column is bound to the parameter of
// the same name.
func (b *Builder) InsertInto(table string, columns ...string) *Builder {
	b.kind = kindInsert
	b.table = table
	b.columns = append(b.columns, columns...)
	return b
}

// Update starts an UPDATE of table
func (b *Builder) Update(table string) *Builder {
	b.kind = kindUpdate
	b.table = table
	return b
}

// Set adds columns to the SET list of an UPDATE, each bound to the
// parameter of the same name
func (b *Builder) Set(columns ...string) *Builder {
	b.columns = append(b.columns, columns...)
	return b
}

// Delete starts a DELETE; the table is given with From
func (b *Builder) Delete() *Builder {
	b.kind = kindDelete
	return b
}

// From sets the table of a SELECT or DELETE. An alias may follow the name.
func (b *Builder) From(table string) *Builder {
	b.table = table
	return b
}

// Join adds a JOIN clause
func (b *Builder) Join(table string, joinType JoinType, condition string) *Builder {
	b.joins = append(b.joins, join{Type: joinType, Table: table, Condition: condition})
	return b
}

// Where replaces the predicate list with clause
func (b *Builder) Where(clause string) *Builder {
	b.where = []predicate{{clause: clause}}
	return b
}

// AndWhere appends a predicate joined with AND
func (b *Builder) AndWhere(clause string) *Builder {
	b.where = append(b.where, predicate{clause: clause})
	return b
}

// OrWhere appends a predicate joined with OR
func (b *Builder) OrWhere(clause string) *Builder {
	b.where = append(b.where, predicate{or: true, clause: clause})
	return b
}

// OrderBy appends an ORDER BY expression
func (b *Builder) OrderBy(clause string) *Builder {
	b.orderBy = append(b.orderBy, clause)
	return b
}

// SetMaxResults limits a SELECT to n rows; zero removes the limit
func (b *Builder) SetMaxResults(n int) *Builder {
	b.limit = n
	return b
}

// Returning names the generated column read back by ExecuteInsert
func (b *Builder) Returning(column string) *Builder {
	b.returning = column
	return b
}

// SQL renders the statement with its :name markers in place
func (b *Builder) SQL() string {
	var sb strings.Builder

	switch b.kind {
	case kindInsert:
		markers := make([]string, len(b.columns))
		for i, col := range b.columns {
			markers[i] = ":" + col
		}
		fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)",
			b.table, strings.Join(b.columns, ", "), strings.Join(markers, ", "))
		if b.returning != "" && b.dialect.SupportsReturning() {
			fmt.Fprintf(&sb, " RETURNING %s", b.returning)
		}
		return sb.String()

	case kindUpdate:
		assignments := make([]string, len(b.columns))
		for i, col := range b.columns {
			assignments[i] = fmt.Sprintf("%s = :%s", col, col)
		}
		fmt.Fprintf(&sb, "UPDATE %s SET %s", b.table, strings.Join(assignments, ", "))

	case kindDelete:
		fmt.Fprintf(&sb, "DELETE FROM %s", b.table)

	case kindCreateTable:
		return b.ddl.render()

	default:
		fields := "*"
		if len(b.fields) > 0 {
			fields = strings.Join(b.fields, ", ")
		}
		fmt.Fprintf(&sb, "SELECT %s FROM %s", fields, b.table)
		for _, j := range b.joins {
			fmt.Fprintf(&sb, " %s JOIN %s ON %s", j.Type, j.Table, j.Condition)
		}
	}

	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		for i, p := range b.where {
			if i > 0 {
				if p.or {
					sb.WriteString(" OR ")
				} else {
					sb.WriteString(" AND ")
				}
			}
			sb.WriteString(p.clause)
		}
	}

	if b.kind == kindSelect {
		if len(b.orderBy) > 0 {
			sb.WriteString(" ORDER BY ")
			sb.WriteString(strings.Join(b.orderBy, ", "))
		}
		if b.limit > 0 {
			fmt.Fprintf(&sb, " LIMIT %d", b.limit)
		}
	}

	return sb.String()
}

// Compile returns the statement with positional placeholders in the
// dialect's format and its bound arguments
func (b *Builder) Compile() (string, []interface{}, error) {
	raw := b.SQL()
	positional, args, err := b.bind(raw)
	if err != nil {
		return "", nil, &StatementError{Query: raw, Err: err}
	}
	query, err := b.dialect.Placeholder().ReplacePlaceholders(positional)
	if err != nil {
		return "", nil, &StatementError{Query: raw, Err: err}
	}
	return query, args, nil
}

// Execute runs a statement that returns no rows
func (b *Builder) Execute(ctx context.Context) (sql.Result, error) {
	query, args, err := b.Compile()
	if err != nil {
		return nil, err
	}
	b.log(query, args)

	result, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, &StatementError{Query: query, Err: err}
	}
	return result, nil
}

// ExecuteInsert runs an INSERT and returns the generated key
func (b *Builder) ExecuteInsert(ctx context.Context) (int64, error) {
	if b.returning != "" && b.dialect.SupportsReturning() {
		query, args, err := b.Compile()
		if err != nil {
			return 0, err
		}
		b.log(query, args)

		var id int64
		if err := b.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, &StatementError{Query: query, Err: err}
		}
		return id, nil
	}

	result, err := b.Execute(ctx)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, &StatementError{Query: b.SQL(), Err: err}
	}
	return id, nil
}

func (b *Builder) log(query string, args []interface{}) {
	b.logger.Debug("executing statement",
		zap.String("query", query),
		zap.Int("args", len(args)))
}
