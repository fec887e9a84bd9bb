package relationships

import "errors"

var (
	// ErrUnknownRelationship is returned when a relation attribute is not mapped
	ErrUnknownRelationship = errors.New("unknown relationship")

	// ErrMissingIdentifier is returned when a root has no primary key value
	ErrMissingIdentifier = errors.New("entity has no identifier")
)
