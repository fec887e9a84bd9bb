// Package entity defines the contract mapped records implement so the ORM can
// read and write their attributes and associations without reflection.
package entity

// Entity is a mapped record. Implementations must be pointer types: the ORM
// tracks instances by identity.
type Entity interface {
	// EntityType returns the entity name the record is registered under
	EntityType() string

	// Get returns the value of a scalar attribute, or nil when unset
	Get(attr string) interface{}

	// Set assigns a scalar attribute. Unknown attributes are ignored so
	// result rows carrying extra aliases can be applied safely.
	Set(attr string, value interface{})

	// Related returns the entities linked through a relation attribute.
	// Single-valued relations return zero or one element.
	Related(attr string) []Entity

	// SetRelated assigns a single-valued relation (one-to-one, many-to-one)
	SetRelated(attr string, target Entity)

	// AddRelated appends to a collection relation (one-to-many, many-to-many)
	AddRelated(attr string, target Entity)
}

// Factory creates an empty instance of an entity type
type Factory func() Entity

// First returns the first element of a relation, or nil
func First(e Entity, attr string) Entity {
	related := e.Related(attr)
	if len(related) == 0 {
		return nil
	}
	return related[0]
}

// Contains reports whether target is linked through attr (identity comparison)
func Contains(e Entity, attr string, target Entity) bool {
	for _, r := range e.Related(attr) {
		if r == target {
			return true
		}
	}
	return false
}
