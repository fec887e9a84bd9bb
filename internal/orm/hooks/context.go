package hooks

import (
	"context"
	"database/sql"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

// Context wraps the standard context with the write being performed
type Context struct {
	context.Context
	db    *sql.DB
	meta  *metadata.EntityMetadata
	event Event
}

// NewContext creates a new hook context
func NewContext(ctx context.Context, db *sql.DB, meta *metadata.EntityMetadata, event Event) *Context {
	return &Context{Context: ctx, db: db, meta: meta, event: event}
}

// DB returns the database connection
func (c *Context) DB() *sql.DB {
	return c.db
}

// Metadata returns the metadata of the entity being written
func (c *Context) Metadata() *metadata.EntityMetadata {
	return c.meta
}

// Event returns the lifecycle event
func (c *Context) Event() Event {
	return c.event
}
