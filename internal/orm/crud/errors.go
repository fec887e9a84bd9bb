package crud

import (
	"errors"
	"fmt"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/query"
)

var (
	// ErrDuplicateEntity is returned when a write collides with a unique or
	// primary key already stored
	ErrDuplicateEntity = errors.New("entity already exists")

	// ErrBrokenReference is returned when a write leaves a foreign key
	// pointing at a missing row, or a delete removes a row still referenced
	ErrBrokenReference = errors.New("foreign key constraint violated")
)

// constraintError tags driver constraint failures with the matching
// sentinel. The original error stays in the chain.
func constraintError(meta *metadata.EntityMetadata, err error) error {
	switch {
	case err == nil:
		return nil
	case query.IsUniqueViolation(err):
		return fmt.Errorf("%w: %s: %w", ErrDuplicateEntity, meta.Name, err)
	case query.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %s: %w", ErrBrokenReference, meta.Name, err)
	default:
		return err
	}
}
