package entity

import "sort"

// Record is a map-backed Entity used for types that have no dedicated Go
// struct. Hydration falls back to it when no factory is registered.
type Record struct {
	typeName  string
	values    map[string]interface{}
	relations map[string][]Entity
}

// NewRecord creates an empty record of the given entity type
func NewRecord(typeName string) *Record {
	return &Record{
		typeName:  typeName,
		values:    make(map[string]interface{}),
		relations: make(map[string][]Entity),
	}
}

// RecordFactory returns a Factory producing records of the given type
func RecordFactory(typeName string) Factory {
	return func() Entity {
		return NewRecord(typeName)
	}
}

// EntityType returns the record's entity name
func (r *Record) EntityType() string {
	return r.typeName
}

// Get returns a scalar attribute value
func (r *Record) Get(attr string) interface{} {
	return r.values[attr]
}

// Set assigns a scalar attribute value
func (r *Record) Set(attr string, value interface{}) {
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	r.values[attr] = value
}

// Related returns linked entities for a relation attribute
func (r *Record) Related(attr string) []Entity {
	return r.relations[attr]
}

// SetRelated replaces a single-valued relation
func (r *Record) SetRelated(attr string, target Entity) {
	if target == nil {
		delete(r.relations, attr)
		return
	}
	r.relations[attr] = []Entity{target}
}

// AddRelated appends target to a collection relation unless already present
func (r *Record) AddRelated(attr string, target Entity) {
	if target == nil || Contains(r, attr, target) {
		return
	}
	r.relations[attr] = append(r.relations[attr], target)
}

// Attributes returns the names of all set scalar attributes, sorted
func (r *Record) Attributes() []string {
	names := make([]string, 0, len(r.values))
	for name := range r.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
