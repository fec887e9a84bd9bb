// Package hooks runs application callbacks around entity manager writes.
package hooks

import (
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
)

// Event is a point in an entity's write lifecycle
type Event int

const (
	PrePersist Event = iota
	PostPersist
	PreUpdate
	PostUpdate
	PreRemove
	PostRemove
)

func (e Event) String() string {
	switch e {
	case PrePersist:
		return "prePersist"
	case PostPersist:
		return "postPersist"
	case PreUpdate:
		return "preUpdate"
	case PostUpdate:
		return "postUpdate"
	case PreRemove:
		return "preRemove"
	case PostRemove:
		return "postRemove"
	default:
		return "unknown"
	}
}

// IsPre reports whether the event fires before the statement; an error
// from a pre hook aborts the write
func (e Event) IsPre() bool {
	return e == PrePersist || e == PreUpdate || e == PreRemove
}

// HookFunc is a lifecycle callback
type HookFunc func(ctx *Context, e entity.Entity) error

// AllEntities registers a hook for every entity type
const AllEntities = "*"

type key struct {
	entity string
	event  Event
}

// Registry holds the hooks per entity type and event, in registration order
type Registry struct {
	hooks map[key][]HookFunc
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[key][]HookFunc)}
}

// Register adds fn for the entity type (or AllEntities) and event
func (r *Registry) Register(entityType string, event Event, fn HookFunc) {
	k := key{entityType, event}
	r.hooks[k] = append(r.hooks[k], fn)
}

// GetHooks returns the hooks for an entity type and event: the ones
// registered for every entity first
func (r *Registry) GetHooks(entityType string, event Event) []HookFunc {
	all := r.hooks[key{AllEntities, event}]
	own := r.hooks[key{entityType, event}]
	if len(all) == 0 {
		return own
	}
	hooks := make([]HookFunc, 0, len(all)+len(own))
	hooks = append(hooks, all...)
	return append(hooks, own...)
}

// HasHooks returns true if any hook would run for the entity type and event
func (r *Registry) HasHooks(entityType string, event Event) bool {
	return len(r.hooks[key{AllEntities, event}]) > 0 || len(r.hooks[key{entityType, event}]) > 0
}
