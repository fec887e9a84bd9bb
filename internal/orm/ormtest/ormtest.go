// Package ormtest provides mapping fixtures and an in-memory SQLite
// environment for package tests
package ormtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FLORENTA/MiniFramework-sub000/internal/cache"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/codegen"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/connection"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/introspect"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

// Dummy and Image share a bidirectional one-to-one; Image owns the key
const Dummy = `
entity: Dummy
table: dummy
model: DummyModel
fields:
  id: { type: integer, primary: true }
  title: { type: string, length: 255 }
OneToOne:
  image: { target: Image, mappedBy: dummy, cascade: [persist, remove] }
`

const Image = `
entity: Image
table: image
model: ImageModel
fields:
  id: integer
  src: { type: string, length: 120 }
OneToOne:
  dummy: { target: Dummy, inversedBy: image }
`

// Author has many Books; each Book has many Tags
const Author = `
entity: Author
table: author
model: AuthorModel
fields:
  id: { type: integer, primary: true }
  name: string
OneToMany:
  books: { target: Book, mappedBy: author, cascade: [persist] }
`

const Book = `
entity: Book
table: book
model: BookModel
fields:
  id: { type: integer, primary: true }
  title: string
  publishedAt: { type: string, nullable: true }
ManyToOne:
  author: { target: Author, inversedBy: books, cascade: [persist] }
ManyToMany:
  tags: { target: Tag, inversedBy: books, cascade: [persist] }
`

const Tag = `
entity: Tag
table: tag
model: TagModel
fields:
  id: { type: integer, primary: true }
  label: string
ManyToMany:
  books: { target: Book, mappedBy: tags }
`

// Category references itself: children point at their parent row
const Category = `
entity: Category
table: category
model: CategoryModel
fields:
  id: { type: integer, primary: true }
  name: string
ManyToOne:
  parent: { target: Category, inversedBy: children }
OneToMany:
  children: { target: Category, mappedBy: parent, cascade: [remove] }
`

// Token is keyed by a caller-assigned uuid
const Token = `
entity: Token
table: token
model: TokenModel
fields:
  id: { type: uuid, primary: true }
  value: string
`

// All is every fixture descriptor
var All = []string{Dummy, Image, Author, Book, Tag}

// Env is a migrated in-memory database with its metadata
type Env struct {
	Store   *metadata.Store
	Factory *connection.Factory
	Schema  *introspect.SchemaCache
}

// NewStore parses and validates descriptors
func NewStore(t testing.TB, docs ...string) *metadata.Store {
	t.Helper()
	store := metadata.NewStore(nil)
	for _, doc := range docs {
		meta, err := metadata.Parse("", []byte(doc))
		require.NoError(t, err)
		require.NoError(t, store.Register(meta))
	}
	require.NoError(t, store.Validate())
	return store
}

// OpenSQLite opens a single-connection in-memory database with foreign
// keys enforced
func OpenSQLite(t testing.TB) *connection.Factory {
	t.Helper()
	factory, err := connection.NewFactory(connection.Config{
		Driver:       "sqlite3",
		DSN:          ":memory:?_foreign_keys=on",
		MaxOpenConns: 1,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { factory.Close() })
	return factory
}

// Setup creates the tables for docs (All when empty)
func Setup(t testing.TB, docs ...string) *Env {
	t.Helper()
	if len(docs) == 0 {
		docs = All
	}

	env := &Env{
		Store:   NewStore(t, docs...),
		Factory: OpenSQLite(t),
	}
	env.Schema = introspect.NewSchemaCache(env.Factory, cache.NewMemoryCache(cache.DefaultConfig()), 0, nil)

	generator := codegen.NewDDLGenerator(env.Store, env.Factory, env.Schema, nil)
	require.NoError(t, generator.Execute(context.Background()))
	return env
}

// Count returns the number of rows of table
func (e *Env) Count(t testing.TB, table string) int {
	t.Helper()
	db, err := e.Factory.GetConnection(context.Background())
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// Exec runs a raw statement
func (e *Env) Exec(t testing.TB, stmt string, args ...interface{}) {
	t.Helper()
	db, err := e.Factory.GetConnection(context.Background())
	require.NoError(t, err)
	_, err = db.Exec(stmt, args...)
	require.NoError(t, err)
}

// WriteMapping writes docs (All when empty) as descriptor files into a
// temporary directory and returns it
func WriteMapping(t testing.TB, docs ...string) string {
	t.Helper()
	if len(docs) == 0 {
		docs = All
	}

	dir := t.TempDir()
	for i, doc := range docs {
		path := filepath.Join(dir, fmt.Sprintf("%02d.yml", i))
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	}
	return dir
}
