// Package dialect captures the differences between the supported SQL
// databases: placeholder style, column types, auto-increment syntax, key
// read-back and schema introspection.
package dialect

import (
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

// Dialect describes one SQL flavour
type Dialect interface {
	// Name returns the dialect identifier (postgres, mysql, sqlite)
	Name() string

	// Placeholder returns the positional placeholder format
	Placeholder() squirrel.PlaceholderFormat

	// ColumnType maps a field type to a column type without length
	ColumnType(t metadata.FieldType) string

	// AutoIncrement rewrites an integer column type for generated keys and
	// returns an optional trailing clause
	AutoIncrement(columnType string) (string, string)

	// SupportsReturning reports whether INSERT ... RETURNING is available
	SupportsReturning() bool

	// ColumnsQuery lists (table, column) pairs of the current schema
	ColumnsQuery() string
}

// ForDriver returns the dialect for a database/sql driver name
func ForDriver(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return Postgres{}, nil
	case "mysql":
		return MySQL{}, nil
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// Postgres is the PostgreSQL dialect
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder() squirrel.PlaceholderFormat { return squirrel.Dollar }

func (Postgres) ColumnType(t metadata.FieldType) string {
	switch t {
	case metadata.TypeString:
		return "VARCHAR"
	case metadata.TypeText:
		return "TEXT"
	case metadata.TypeInteger:
		return "INTEGER"
	case metadata.TypeSmallInt:
		return "SMALLINT"
	case metadata.TypeBigInt:
		return "BIGINT"
	case metadata.TypeFloat:
		return "DOUBLE PRECISION"
	case metadata.TypeDecimal:
		return "NUMERIC"
	case metadata.TypeBoolean:
		return "BOOLEAN"
	case metadata.TypeDate:
		return "DATE"
	case metadata.TypeDateTime:
		return "TIMESTAMP"
	case metadata.TypeTime:
		return "TIME"
	case metadata.TypeJSON:
		return "JSONB"
	case metadata.TypeUUID:
		return "UUID"
	default:
		return "TEXT"
	}
}

func (Postgres) AutoIncrement(columnType string) (string, string) {
	switch columnType {
	case "BIGINT":
		return "BIGSERIAL", ""
	case "SMALLINT":
		return "SMALLSERIAL", ""
	default:
		return "SERIAL", ""
	}
}

func (Postgres) SupportsReturning() bool { return true }

func (Postgres) ColumnsQuery() string {
	return `SELECT table_name, column_name FROM information_schema.columns ` +
		`WHERE table_schema = current_schema() ORDER BY table_name, ordinal_position`
}

// MySQL is the MySQL/MariaDB dialect
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Placeholder() squirrel.PlaceholderFormat { return squirrel.Question }

func (MySQL) ColumnType(t metadata.FieldType) string {
	switch t {
	case metadata.TypeString:
		return "VARCHAR"
	case metadata.TypeText:
		return "TEXT"
	case metadata.TypeInteger:
		return "INT"
	case metadata.TypeSmallInt:
		return "SMALLINT"
	case metadata.TypeBigInt:
		return "BIGINT"
	case metadata.TypeFloat:
		return "DOUBLE"
	case metadata.TypeDecimal:
		return "DECIMAL(10,2)"
	case metadata.TypeBoolean:
		return "TINYINT(1)"
	case metadata.TypeDate:
		return "DATE"
	case metadata.TypeDateTime:
		return "DATETIME"
	case metadata.TypeTime:
		return "TIME"
	case metadata.TypeJSON:
		return "JSON"
	case metadata.TypeUUID:
		return "CHAR(36)"
	default:
		return "TEXT"
	}
}

func (MySQL) AutoIncrement(columnType string) (string, string) {
	return columnType, "AUTO_INCREMENT"
}

func (MySQL) SupportsReturning() bool { return false }

func (MySQL) ColumnsQuery() string {
	return `SELECT table_name, column_name FROM information_schema.columns ` +
		`WHERE table_schema = DATABASE() ORDER BY table_name, ordinal_position`
}

// SQLite is the SQLite dialect
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder() squirrel.PlaceholderFormat { return squirrel.Question }

func (SQLite) ColumnType(t metadata.FieldType) string {
	switch t {
	case metadata.TypeString:
		return "VARCHAR"
	case metadata.TypeInteger, metadata.TypeSmallInt, metadata.TypeBigInt:
		return "INTEGER"
	case metadata.TypeFloat:
		return "REAL"
	case metadata.TypeDecimal:
		return "NUMERIC"
	case metadata.TypeBoolean:
		return "BOOLEAN"
	case metadata.TypeDate:
		return "DATE"
	case metadata.TypeDateTime:
		return "DATETIME"
	case metadata.TypeTime:
		return "TIME"
	default:
		return "TEXT"
	}
}

// AutoIncrement relies on INTEGER PRIMARY KEY aliasing the rowid
func (SQLite) AutoIncrement(string) (string, string) {
	return "INTEGER", ""
}

func (SQLite) SupportsReturning() bool { return false }

func (SQLite) ColumnsQuery() string {
	return `SELECT m.name, p.name FROM sqlite_master m JOIN pragma_table_info(m.name) p ` +
		`WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' ORDER BY m.name, p.cid`
}
