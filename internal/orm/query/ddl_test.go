package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/dialect"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

func imageTable(d dialect.Dialect) *Builder {
	return New(nil, d, nil).
		CreateTable("image").
		AddColumn("id").AddType(metadata.TypeInteger).AddNullable(false).AddAutoIncrement().
		AddPrimaryKey("id").
		AddColumn("src").AddType(metadata.TypeString).AddLength(120).AddNullable(false).
		AddJoinColumn("dummy_id", metadata.TypeInteger).
		AddForeignKey("dummy_id", "dummy", "id").
		EndTableCreation()
}

func TestDDL_KeyClausesLast(t *testing.T) {
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS image (id SERIAL NOT NULL, src VARCHAR(120) NOT NULL, dummy_id INTEGER NULL, "+
			"PRIMARY KEY (id), FOREIGN KEY (dummy_id) REFERENCES dummy (id))",
		imageTable(dialect.Postgres{}).SQL())

	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS image (id INT NOT NULL AUTO_INCREMENT, src VARCHAR(120) NOT NULL, dummy_id INT NULL, "+
			"PRIMARY KEY (id), FOREIGN KEY (dummy_id) REFERENCES dummy (id))",
		imageTable(dialect.MySQL{}).SQL())
}

func TestDDL_AddAfterEndIgnored(t *testing.T) {
	b := New(nil, dialect.SQLite{}, nil).
		CreateTable("t").
		AddColumn("a").AddType(metadata.TypeText).
		EndTableCreation().
		AddLength(10)

	assert.Equal(t, "CREATE TABLE IF NOT EXISTS t (a TEXT)", b.SQL())
}
