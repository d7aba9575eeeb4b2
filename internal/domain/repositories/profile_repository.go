// Package repositories defines interfaces for domain persistence.
package repositories

import (
	"context"

	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// ProfileRepository is read-only access to the document backend that
// stores profile configuration.
type ProfileRepository interface {
	// Exists reports whether the profile document exists.
	Exists(ctx context.Context, ref values.ProfileRef) (bool, error)

	// Property returns the value of field on the index-th object of class
	// attached to the profile document. ok is false when no such object or
	// field exists, which is how a gap in the numbering is observed.
	Property(ctx context.Context, ref values.ProfileRef, class string, index int, field string) (value string, ok bool, err error)

	// List returns every profile document known to the backend.
	List(ctx context.Context) ([]values.ProfileRef, error)
}
