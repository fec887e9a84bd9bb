package crud_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/connection"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/crud"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/dialect"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/ormtest"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/query"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/relationships"
)

type stubSchema map[string][]string

func (s stubSchema) Columns(_ context.Context, table string) ([]string, bool, error) {
	columns, ok := s[table]
	return columns, ok, nil
}

func newMockManager(t *testing.T, d dialect.Dialect, schema crud.SchemaInspector, docs ...string) (*crud.EntityManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := ormtest.NewStore(t, docs...)
	return crud.NewEntityManager(store, connection.FromDB(db, d), schema, nil), mock
}

func newManager(t *testing.T) (*crud.EntityManager, *ormtest.Env) {
	t.Helper()
	env := ormtest.Setup(t)
	return crud.NewEntityManager(env.Store, env.Factory, env.Schema, nil), env
}

func record(typeName string, values map[string]interface{}) *entity.Record {
	r := entity.NewRecord(typeName)
	for k, v := range values {
		r.Set(k, v)
	}
	return r
}

func TestPersist_IdempotentUnderIdentity(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite{}, nil, ormtest.Dummy, ormtest.Image)
	mock.ExpectExec("INSERT INTO dummy (title) VALUES (?)").
		WithArgs("demo").
		WillReturnResult(sqlmock.NewResult(5, 1))

	dummy := record("Dummy", map[string]interface{}{"title": "demo"})
	require.NoError(t, em.Persist(context.Background(), dummy))
	require.NoError(t, em.Persist(context.Background(), dummy))

	assert.Equal(t, int64(5), dummy.Get("id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_ReturningOnPostgres(t *testing.T) {
	em, mock := newMockManager(t, dialect.Postgres{}, nil, ormtest.Dummy, ormtest.Image)
	mock.ExpectQuery("INSERT INTO dummy (title) VALUES ($1) RETURNING id").
		WithArgs("demo").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))

	dummy := record("Dummy", map[string]interface{}{"title": "demo"})
	require.NoError(t, em.Persist(context.Background(), dummy))
	assert.Equal(t, int64(8), dummy.Get("id"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_FiltersColumnsMissingFromTable(t *testing.T) {
	schema := stubSchema{"book": {"id", "title"}}
	em, mock := newMockManager(t, dialect.SQLite{}, schema, ormtest.Author, ormtest.Book, ormtest.Tag)
	mock.ExpectExec("INSERT INTO book (title) VALUES (?)").
		WithArgs("dune").
		WillReturnResult(sqlmock.NewResult(1, 1))

	book := record("Book", map[string]interface{}{"title": "dune", "publishedAt": "1965"})
	require.NoError(t, em.Persist(context.Background(), book))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_UnknownTableKeepsEveryColumn(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite{}, stubSchema{}, ormtest.Dummy, ormtest.Image)
	mock.ExpectExec("INSERT INTO dummy (title) VALUES (?)").
		WithArgs("x").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, em.Persist(context.Background(), record("Dummy", map[string]interface{}{"title": "x"})))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_GeneratesUUIDKeys(t *testing.T) {
	em, mock := newMockManager(t, dialect.Postgres{}, nil, ormtest.Token)
	mock.ExpectExec("INSERT INTO token (id, value) VALUES ($1, $2)").
		WithArgs(sqlmock.AnyArg(), "secret").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tok := record("Token", map[string]interface{}{"value": "secret"})
	require.NoError(t, em.Persist(context.Background(), tok))

	id, ok := tok.Get("id").(string)
	require.True(t, ok)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_UUIDKeyInsertedOnce(t *testing.T) {
	em, mock := newMockManager(t, dialect.Postgres{}, nil, ormtest.Token)
	mock.ExpectExec("INSERT INTO token (id, value) VALUES ($1, $2)").
		WithArgs(sqlmock.AnyArg(), "secret").
		WillReturnResult(sqlmock.NewResult(0, 1))

	tok := record("Token", map[string]interface{}{"value": "secret"})
	require.NoError(t, em.Persist(context.Background(), tok))
	require.NoError(t, em.Persist(context.Background(), tok))
	require.NoError(t, em.PersistAll(context.Background(), []entity.Entity{tok}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_AfterRemoveInsertsAgain(t *testing.T) {
	em, mock := newMockManager(t, dialect.Postgres{}, nil, ormtest.Token)
	tok := record("Token", map[string]interface{}{"id": "3f1c9a52-0c2e-4d7b-9a51-2b8f3c4d5e6f", "value": "secret"})

	mock.ExpectExec("INSERT INTO token (id, value) VALUES ($1, $2)").
		WithArgs(tok.Get("id"), "secret").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM token WHERE id = $1").
		WithArgs(tok.Get("id")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO token (id, value) VALUES ($1, $2)").
		WithArgs(tok.Get("id"), "secret").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, em.Persist(ctx, tok))
	require.NoError(t, em.Remove(ctx, tok))
	require.NoError(t, em.Persist(ctx, tok))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_StatementErrorLeavesNoKey(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite{}, nil, ormtest.Dummy, ormtest.Image)
	mock.ExpectExec("INSERT INTO dummy (title) VALUES (?)").WillReturnError(assert.AnError)

	dummy := record("Dummy", map[string]interface{}{"title": "demo"})
	err := em.Persist(context.Background(), dummy)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, dummy.Get("id"))
}

func TestPersist_ConstraintViolations(t *testing.T) {
	env := ormtest.Setup(t)
	em := crud.NewEntityManager(env.Store, env.Factory, env.Schema, nil)
	ctx := context.Background()

	book := record("Book", map[string]interface{}{"title": "orphan"})
	book.SetRelated("author", record("Author", map[string]interface{}{"id": int64(99)}))
	err := em.Persist(ctx, book)
	assert.ErrorIs(t, err, crud.ErrBrokenReference)
	assert.True(t, query.IsStatementError(err))
	assert.Equal(t, 0, env.Count(t, "book"))

	ann := record("Author", map[string]interface{}{"name": "ann"})
	owned := record("Book", map[string]interface{}{"title": "owned"})
	owned.SetRelated("author", ann)
	require.NoError(t, em.Persist(ctx, owned))

	env.Exec(t, "CREATE TABLE pin (book_id INTEGER REFERENCES book (id))")
	env.Exec(t, "INSERT INTO pin (book_id) VALUES (?)", owned.Get("id"))
	err = em.Remove(ctx, owned)
	assert.ErrorIs(t, err, crud.ErrBrokenReference, "a row still referenced elsewhere")
}

func TestPersist_DuplicateKey(t *testing.T) {
	env := ormtest.Setup(t, ormtest.Token)
	em := crud.NewEntityManager(env.Store, env.Factory, env.Schema, nil)
	ctx := context.Background()

	const id = "3f1c9a52-0c2e-4d7b-9a51-2b8f3c4d5e6f"
	require.NoError(t, em.Persist(ctx, record("Token", map[string]interface{}{"id": id, "value": "a"})))

	err := em.Persist(ctx, record("Token", map[string]interface{}{"id": id, "value": "b"}))
	assert.ErrorIs(t, err, crud.ErrDuplicateEntity)
	assert.False(t, errors.Is(err, crud.ErrBrokenReference))
	assert.Equal(t, 1, env.Count(t, "token"))
}

func TestPersist_UnknownType(t *testing.T) {
	em, _ := newMockManager(t, dialect.SQLite{}, nil, ormtest.Dummy, ormtest.Image)
	err := em.Persist(context.Background(), entity.NewRecord("Ghost"))
	assert.True(t, metadata.IsMetadataError(err))
}

func TestPersist_DummyImageScenario(t *testing.T) {
	em, env := newManager(t)
	ctx := context.Background()

	dummy := record("Dummy", map[string]interface{}{"title": "demo"})
	require.NoError(t, em.Persist(ctx, dummy))

	image := record("Image", map[string]interface{}{"src": "a.png"})
	image.SetRelated("dummy", dummy)
	require.NoError(t, em.Persist(ctx, image))

	loaded := record("Dummy", map[string]interface{}{"id": dummy.Get("id")})
	require.NoError(t, relationships.NewWalker(env.Store, env.Factory, nil).Populate(ctx, loaded))
	require.NotNil(t, entity.First(loaded, "image"))
	assert.Equal(t, "a.png", entity.First(loaded, "image").Get("src"))
}

func TestPersist_CascadeInverseOneToOne(t *testing.T) {
	em, env := newManager(t)

	dummy := record("Dummy", map[string]interface{}{"title": "demo"})
	image := record("Image", map[string]interface{}{"src": "b.png"})
	dummy.SetRelated("image", image)

	require.NoError(t, em.Persist(context.Background(), dummy))
	assert.Same(t, dummy, entity.First(image, "dummy"), "back-reference is set before the cascade")
	assert.NotNil(t, image.Get("id"))
	assert.Equal(t, 1, env.Count(t, "image"))
}

func TestPersist_CascadeOneToMany(t *testing.T) {
	em, env := newManager(t)

	author := record("Author", map[string]interface{}{"name": "ann"})
	first := record("Book", map[string]interface{}{"title": "first"})
	second := record("Book", map[string]interface{}{"title": "second"})
	author.AddRelated("books", first)
	author.AddRelated("books", second)

	require.NoError(t, em.Persist(context.Background(), author))
	assert.Equal(t, 2, env.Count(t, "book"))

	db, err := em.GetConnection(context.Background())
	require.NoError(t, err)
	var linked int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM book WHERE author_id = ?", author.Get("id")).Scan(&linked))
	assert.Equal(t, 2, linked)
}

func TestPersist_ManyToOneCascadesFirst(t *testing.T) {
	em, env := newManager(t)

	author := record("Author", map[string]interface{}{"name": "bob"})
	book := record("Book", map[string]interface{}{"title": "solo"})
	book.SetRelated("author", author)
	author.AddRelated("books", book)

	require.NoError(t, em.Persist(context.Background(), book))
	assert.Equal(t, 1, env.Count(t, "author"))
	assert.Equal(t, 1, env.Count(t, "book"), "the back-reference does not insert the book twice")

	db, _ := em.GetConnection(context.Background())
	var authorID int64
	require.NoError(t, db.QueryRow("SELECT author_id FROM book WHERE id = ?", book.Get("id")).Scan(&authorID))
	assert.Equal(t, author.Get("id"), authorID)
}

func TestPersist_ManyToManyJoinRows(t *testing.T) {
	em, env := newManager(t)

	book := record("Book", map[string]interface{}{"title": "tagged"})
	book.AddRelated("tags", record("Tag", map[string]interface{}{"label": "go"}))
	book.AddRelated("tags", record("Tag", map[string]interface{}{"label": "sql"}))

	require.NoError(t, em.Persist(context.Background(), book))
	assert.Equal(t, 2, env.Count(t, "tag"))
	assert.Equal(t, 2, env.Count(t, "tag_book"))

	loaded := record("Book", map[string]interface{}{"id": book.Get("id")})
	require.NoError(t, relationships.NewWalker(env.Store, env.Factory, nil).Populate(context.Background(), loaded))
	require.Len(t, loaded.Related("tags"), 2)
	for _, tag := range loaded.Related("tags") {
		assert.True(t, entity.Contains(tag, "books", loaded))
	}
}

func TestPersistAll(t *testing.T) {
	em, env := newManager(t)
	tag := record("Tag", map[string]interface{}{"label": "shared"})
	a := record("Book", map[string]interface{}{"title": "a"})
	b := record("Book", map[string]interface{}{"title": "b"})
	a.AddRelated("tags", tag)
	b.AddRelated("tags", tag)

	require.NoError(t, em.PersistAll(context.Background(), []entity.Entity{a, b}))
	assert.Equal(t, 1, env.Count(t, "tag"))
	assert.Equal(t, 2, env.Count(t, "tag_book"))
}

func TestUpdate_WritesColumnsAndReconcilesJoinRows(t *testing.T) {
	em, env := newManager(t)
	ctx := context.Background()

	t1 := record("Tag", map[string]interface{}{"label": "one"})
	t2 := record("Tag", map[string]interface{}{"label": "two"})
	book := record("Book", map[string]interface{}{"title": "draft"})
	book.AddRelated("tags", t1)
	book.AddRelated("tags", t2)
	require.NoError(t, em.Persist(ctx, book))

	t3 := record("Tag", map[string]interface{}{"label": "three"})
	book.Set("title", "final")
	book.SetRelated("tags", nil)
	book.AddRelated("tags", t2)
	book.AddRelated("tags", t3)

	require.NoError(t, em.Update(ctx, book))
	require.NoError(t, em.Update(ctx, book))

	db, _ := em.GetConnection(ctx)
	var title string
	require.NoError(t, db.QueryRow("SELECT title FROM book WHERE id = ?", book.Get("id")).Scan(&title))
	assert.Equal(t, "final", title)

	assert.Equal(t, 3, env.Count(t, "tag"), "new tag was cascaded")
	assert.Equal(t, 2, env.Count(t, "tag_book"), "stale link removed, no duplicates")

	var linked int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tag_book WHERE tag_id = ?", t1.Get("id")).Scan(&linked))
	assert.Zero(t, linked)
}

func TestUpdate_MissingIdentifier(t *testing.T) {
	em, _ := newMockManager(t, dialect.SQLite{}, nil, ormtest.Dummy, ormtest.Image)
	err := em.Update(context.Background(), record("Dummy", map[string]interface{}{"title": "x"}))
	assert.True(t, errors.Is(err, crud.ErrMissingIdentifier))
}

func seedLibrary(t *testing.T, em *crud.EntityManager) (ann, bob *entity.Record) {
	t.Helper()
	tag := record("Tag", map[string]interface{}{"label": "classic"})

	ann = record("Author", map[string]interface{}{"name": "ann"})
	for _, title := range []string{"a1", "a2"} {
		book := record("Book", map[string]interface{}{"title": title})
		book.AddRelated("tags", tag)
		ann.AddRelated("books", book)
	}
	bob = record("Author", map[string]interface{}{"name": "bob"})
	bobBook := record("Book", map[string]interface{}{"title": "b1"})
	bobBook.AddRelated("tags", tag)
	bob.AddRelated("books", bobBook)

	require.NoError(t, em.PersistAll(context.Background(), []entity.Entity{ann, bob}))
	return ann, bob
}

func TestRemove_DeletesOneToManyChildren(t *testing.T) {
	em, env := newManager(t)
	ann, _ := seedLibrary(t, em)
	require.Equal(t, 3, env.Count(t, "tag_book"))

	require.NoError(t, em.Remove(context.Background(), ann))

	assert.Equal(t, 1, env.Count(t, "author"))
	assert.Equal(t, 1, env.Count(t, "book"), "only bob's book is left")
	assert.Equal(t, 1, env.Count(t, "tag_book"))
	assert.Equal(t, 1, env.Count(t, "tag"), "tags are not dependents")
}

func TestRemove_KeepsManyToOneOwner(t *testing.T) {
	em, env := newManager(t)
	_, bob := seedLibrary(t, em)

	book := entity.First(bob, "books")
	require.NoError(t, em.Remove(context.Background(), book))

	assert.Equal(t, 2, env.Count(t, "author"))
	assert.Equal(t, 2, env.Count(t, "book"))
	assert.Equal(t, 2, env.Count(t, "tag_book"))
}

func TestRemove_InverseOneToOne(t *testing.T) {
	em, env := newManager(t)
	ctx := context.Background()

	dummy := record("Dummy", map[string]interface{}{"title": "demo"})
	dummy.SetRelated("image", record("Image", map[string]interface{}{"src": "c.png"}))
	require.NoError(t, em.Persist(ctx, dummy))

	require.NoError(t, em.Remove(ctx, dummy))
	assert.Equal(t, 0, env.Count(t, "dummy"))
	assert.Equal(t, 0, env.Count(t, "image"), "cascade remove deletes the image")
}

func TestRemove_SelfReferencingChildren(t *testing.T) {
	env := ormtest.Setup(t, ormtest.Category)
	em := crud.NewEntityManager(env.Store, env.Factory, env.Schema, nil)
	ctx := context.Background()

	root := record("Category", map[string]interface{}{"name": "root"})
	require.NoError(t, em.Persist(ctx, root))
	var leaves []entity.Entity
	for _, name := range []string{"a", "b"} {
		child := record("Category", map[string]interface{}{"name": name})
		child.SetRelated("parent", root)
		require.NoError(t, em.Persist(ctx, child))

		leaf := record("Category", map[string]interface{}{"name": name + "1"})
		leaf.SetRelated("parent", child)
		require.NoError(t, em.Persist(ctx, leaf))
		leaves = append(leaves, leaf)
	}
	other := record("Category", map[string]interface{}{"name": "other"})
	require.NoError(t, em.Persist(ctx, other))
	require.Equal(t, 6, env.Count(t, "category"))

	require.NoError(t, em.Remove(ctx, root))
	assert.Equal(t, 1, env.Count(t, "category"), "every descendant is removed")

	require.NoError(t, em.Remove(ctx, leaves[0]), "removing a row that is already gone is not an error")
	require.NoError(t, em.RemoveAll(ctx, "Category"))
	assert.Equal(t, 0, env.Count(t, "category"))
}

func TestRemove_MissingIdentifier(t *testing.T) {
	em, _ := newMockManager(t, dialect.SQLite{}, nil, ormtest.Dummy, ormtest.Image)
	err := em.Remove(context.Background(), entity.NewRecord("Dummy"))
	assert.True(t, errors.Is(err, crud.ErrMissingIdentifier))
}

func TestRemoveAll(t *testing.T) {
	em, env := newManager(t)
	seedLibrary(t, em)

	require.NoError(t, em.RemoveAll(context.Background(), "Author"))
	assert.Equal(t, 0, env.Count(t, "author"))
	assert.Equal(t, 0, env.Count(t, "book"))
	assert.Equal(t, 0, env.Count(t, "tag_book"))
	assert.Equal(t, 1, env.Count(t, "tag"))
}

func TestRemoveCollection(t *testing.T) {
	em, env := newManager(t)
	seedLibrary(t, em)

	require.NoError(t, em.RemoveCollection(context.Background(), []entity.Entity{entity.NewRecord("Tag")}))
	assert.Equal(t, 0, env.Count(t, "tag"))
	assert.Equal(t, 0, env.Count(t, "tag_book"))
	assert.Equal(t, 3, env.Count(t, "book"))

	err := em.RemoveCollection(context.Background(), nil)
	assert.True(t, metadata.IsMetadataError(err))
}

func TestRemove_StatementSequence(t *testing.T) {
	em, mock := newMockManager(t, dialect.SQLite{}, nil, ormtest.Author, ormtest.Book, ormtest.Tag)
	mock.ExpectExec("DELETE FROM tag_book WHERE book_id IN (SELECT id FROM book WHERE author_id IN (SELECT id FROM author WHERE id = ?))").
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM book WHERE author_id IN (SELECT id FROM author WHERE id = ?)").
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM author WHERE id = ?").
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	author := record("Author", map[string]interface{}{"id": int64(4)})
	require.NoError(t, em.Remove(context.Background(), author))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetClassMetaData(t *testing.T) {
	em, _ := newMockManager(t, dialect.SQLite{}, nil, ormtest.Dummy, ormtest.Image)

	meta, err := em.GetClassMetaData("Dummy")
	require.NoError(t, err)
	assert.Equal(t, "dummy", meta.Table)

	meta, err = em.GetClassMetaData(entity.NewRecord("Image"))
	require.NoError(t, err)
	assert.Equal(t, "image", meta.Table)

	_, err = em.GetClassMetaData(42)
	assert.True(t, metadata.IsMetadataError(err))
}
