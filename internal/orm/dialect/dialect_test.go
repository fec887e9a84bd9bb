package dialect

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

func TestForDriver(t *testing.T) {
	tests := []struct {
		driver string
		want   string
	}{
		{"pgx", "postgres"},
		{"postgres", "postgres"},
		{"mysql", "mysql"},
		{"sqlite3", "sqlite"},
		{"SQLite", "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := ForDriver(tt.driver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}

	_, err := ForDriver("oracle")
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	sql, err := Postgres{}.Placeholder().ReplacePlaceholders("a = ? AND b = ?")
	require.NoError(t, err)
	assert.Equal(t, "a = $1 AND b = $2", sql)

	assert.Equal(t, squirrel.Question, MySQL{}.Placeholder())
	assert.Equal(t, squirrel.Question, SQLite{}.Placeholder())
}

func TestColumnTypes(t *testing.T) {
	assert.Equal(t, "VARCHAR", Postgres{}.ColumnType(metadata.TypeString))
	assert.Equal(t, "TIMESTAMP", Postgres{}.ColumnType(metadata.TypeDateTime))
	assert.Equal(t, "JSONB", Postgres{}.ColumnType(metadata.TypeJSON))
	assert.Equal(t, "INT", MySQL{}.ColumnType(metadata.TypeInteger))
	assert.Equal(t, "TINYINT(1)", MySQL{}.ColumnType(metadata.TypeBoolean))
	assert.Equal(t, "INTEGER", SQLite{}.ColumnType(metadata.TypeBigInt))
	assert.Equal(t, "TEXT", SQLite{}.ColumnType(metadata.TypeUUID))
}

func TestAutoIncrement(t *testing.T) {
	typ, suffix := Postgres{}.AutoIncrement("BIGINT")
	assert.Equal(t, "BIGSERIAL", typ)
	assert.Empty(t, suffix)

	typ, suffix = MySQL{}.AutoIncrement("INT")
	assert.Equal(t, "INT", typ)
	assert.Equal(t, "AUTO_INCREMENT", suffix)

	typ, _ = SQLite{}.AutoIncrement("INTEGER")
	assert.Equal(t, "INTEGER", typ)

	assert.True(t, Postgres{}.SupportsReturning())
	assert.False(t, SQLite{}.SupportsReturning())
}
