package relationships

import (
	"fmt"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
)

// Pass carries the state of one population run: the relation edges already
// walked and every instance materialized so far
type Pass struct {
	visited  map[string]bool
	identity map[string]entity.Entity
}

// NewPass creates an empty pass
func NewPass() *Pass {
	return &Pass{
		visited:  make(map[string]bool),
		identity: make(map[string]entity.Entity),
	}
}

// MarkVisited records an edge; it returns false if the edge was walked
func (p *Pass) MarkVisited(typeName, attr string) bool {
	key := typeName + "." + attr
	if p.visited[key] {
		return false
	}
	p.visited[key] = true
	return true
}

// Visited reports whether an edge was walked
func (p *Pass) Visited(typeName, attr string) bool {
	return p.visited[typeName+"."+attr]
}

// Track registers e under its type and id. If an instance with the same
// identity exists, that instance is returned and created is false.
func (p *Pass) Track(typeName string, id interface{}, e entity.Entity) (tracked entity.Entity, created bool) {
	if id == nil {
		return e, true
	}
	key := identityKey(typeName, id)
	if existing, ok := p.identity[key]; ok {
		return existing, false
	}
	p.identity[key] = e
	return e, true
}

// Lookup returns the instance materialized for type and id
func (p *Pass) Lookup(typeName string, id interface{}) (entity.Entity, bool) {
	e, ok := p.identity[identityKey(typeName, id)]
	return e, ok
}

func identityKey(typeName string, id interface{}) string {
	return fmt.Sprintf("%s#%v", typeName, id)
}
