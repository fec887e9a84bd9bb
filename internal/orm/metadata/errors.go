package metadata

import (
	"errors"
	"fmt"
)

// ErrMetadata is matched by every MetadataError via errors.Is
var ErrMetadata = errors.New("metadata error")

// MetadataError reports incomplete or inconsistent mapping metadata
type MetadataError struct {
	Entity string
	Reason string
}

// Error implements the error interface
func (e *MetadataError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("metadata: %s", e.Reason)
	}
	return fmt.Sprintf("metadata: %s: %s", e.Entity, e.Reason)
}

// Is makes errors.Is(err, ErrMetadata) true for any MetadataError
func (e *MetadataError) Is(target error) bool {
	return target == ErrMetadata
}

func newMetadataError(entity, reason string) error {
	return &MetadataError{Entity: entity, Reason: reason}
}

// IsMetadataError returns true if err is or wraps a MetadataError
func IsMetadataError(err error) bool {
	return errors.Is(err, ErrMetadata)
}
