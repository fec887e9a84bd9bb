// Package codegen generates and applies the DDL for every mapped entity
package codegen

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/dialect"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/query"
)

// defaultStringLength applies to string fields declared without a length
const defaultStringLength = 255

// ConnectionProvider hands out the database handle and its dialect
type ConnectionProvider interface {
	GetConnection(ctx context.Context) (*sql.DB, error)
	Dialect() dialect.Dialect
}

// Invalidator drops cached schema information after the schema changes
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// DDLGenerator creates the tables of every loaded entity
type DDLGenerator struct {
	store  *metadata.Store
	conn   ConnectionProvider
	cache  Invalidator
	logger *zap.Logger
}

// NewDDLGenerator creates a generator. cache may be nil.
func NewDDLGenerator(store *metadata.Store, conn ConnectionProvider, cache Invalidator, logger *zap.Logger) *DDLGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DDLGenerator{store: store, conn: conn, cache: cache, logger: logger}
}

// Generate returns the CREATE TABLE statements in dependency order:
// entity tables first, then many-to-many join tables
func (g *DDLGenerator) Generate() ([]string, error) {
	order, err := g.store.DependencyOrder()
	if err != nil {
		return nil, err
	}

	d := g.conn.Dialect()
	statements := make([]string, 0, len(order))
	var joinTables []string
	seen := make(map[string]bool)

	for _, name := range order {
		meta, err := g.store.Get(name)
		if err != nil {
			return nil, err
		}
		statements = append(statements, g.entityTable(d, meta))

		for _, rel := range g.store.Properties(meta).Relations {
			if rel.Kind != metadata.ManyToMany || !rel.Owning || seen[rel.JoinTable] {
				continue
			}
			seen[rel.JoinTable] = true
			joinTables = append(joinTables, g.joinTable(d, meta, rel))
		}
	}

	return append(statements, joinTables...), nil
}

// DropStatements returns DROP TABLE statements in reverse dependency order
func (g *DDLGenerator) DropStatements() ([]string, error) {
	order, err := g.store.DependencyOrder()
	if err != nil {
		return nil, err
	}

	var statements []string
	seen := make(map[string]bool)
	for _, name := range order {
		meta, err := g.store.Get(name)
		if err != nil {
			return nil, err
		}
		for _, rel := range g.store.Properties(meta).Relations {
			if rel.Kind == metadata.ManyToMany && rel.Owning && !seen[rel.JoinTable] {
				seen[rel.JoinTable] = true
				statements = append(statements, dropTable(rel.JoinTable))
			}
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		meta, _ := g.store.Get(order[i])
		statements = append(statements, dropTable(meta.Table))
	}
	return statements, nil
}

// Execute runs the generated statements in one transaction and invalidates
// the schema cache afterwards
func (g *DDLGenerator) Execute(ctx context.Context) error {
	statements, err := g.Generate()
	if err != nil {
		return err
	}
	return g.run(ctx, statements)
}

// Drop removes every mapped table
func (g *DDLGenerator) Drop(ctx context.Context) error {
	statements, err := g.DropStatements()
	if err != nil {
		return err
	}
	return g.run(ctx, statements)
}

func (g *DDLGenerator) run(ctx context.Context, statements []string) error {
	db, err := g.conn.GetConnection(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range statements {
		g.logger.Debug("executing statement", zap.String("query", stmt))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &query.StatementError{Query: stmt, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}

	g.logger.Info("schema applied", zap.Int("statements", len(statements)))

	if g.cache != nil {
		if err := g.cache.Invalidate(ctx); err != nil {
			g.logger.Warn("failed to invalidate schema cache", zap.Error(err))
		}
	}
	return nil
}

func (g *DDLGenerator) entityTable(d dialect.Dialect, meta *metadata.EntityMetadata) string {
	b := query.New(nil, d, g.logger).CreateTable(meta.Table)

	for _, f := range meta.Fields {
		b.AddColumn(f.ColumnName()).AddType(f.Type)
		if length := fieldLength(f); length > 0 {
			b.AddLength(length)
		}
		if f.Primary && f.Type.IsInteger() {
			b.AddAutoIncrement()
		} else {
			b.AddNullable(f.Nullable && !f.Primary)
		}
	}

	props := g.store.Properties(meta)
	joinColumns := props.JoinColumns()
	for _, rel := range joinColumns {
		b.AddJoinColumn(rel.JoinColumn, g.primaryKeyType(rel.TargetEntity))
	}

	b.AddPrimaryKey(meta.PrimaryKeyColumn())
	for _, rel := range joinColumns {
		b.AddForeignKey(rel.JoinColumn, rel.TargetTable, rel.TargetPrimaryKey)
	}
	return b.EndTableCreation().SQL()
}

func (g *DDLGenerator) joinTable(d dialect.Dialect, meta *metadata.EntityMetadata, rel *metadata.RelationProperty) string {
	ownType := meta.PrimaryKeyField().Type
	targetType := g.primaryKeyType(rel.TargetEntity)

	return query.New(nil, d, g.logger).
		CreateTable(rel.JoinTable).
		AddColumn(rel.OwnJoinColumn).AddType(ownType).AddNullable(false).
		AddColumn(rel.TargetJoinColumn).AddType(targetType).AddNullable(false).
		AddPrimaryKey(rel.OwnJoinColumn).
		AddPrimaryKey(rel.TargetJoinColumn).
		AddForeignKey(rel.OwnJoinColumn, meta.Table, meta.PrimaryKeyColumn()).
		AddForeignKey(rel.TargetJoinColumn, rel.TargetTable, rel.TargetPrimaryKey).
		EndTableCreation().
		SQL()
}

func (g *DDLGenerator) primaryKeyType(entityName string) metadata.FieldType {
	target, err := g.store.Get(entityName)
	if err != nil {
		return metadata.TypeInteger
	}
	return target.PrimaryKeyField().Type
}

func fieldLength(f *metadata.Field) int {
	if f.Length != nil {
		return *f.Length
	}
	if f.Type == metadata.TypeString {
		return defaultStringLength
	}
	return 0
}

func dropTable(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}
