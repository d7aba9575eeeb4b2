// Package dto contains data transfer objects for application layer use cases.
package dto

import (
	"github.com/reglet-dev/classrunner/internal/domain/units"
	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// RunRequest encapsulates all inputs needed to run one unit.
type RunRequest struct {
	// Unit is the unit name as given by the caller. Empty derives it from
	// Document.
	Unit string

	// Document is the document the unit runs for.
	Document values.DocumentRef

	// Profile is the explicit profile parameter; nil when absent. A present
	// empty value suppresses the persisted override for this request.
	Profile *string

	// BaseURL overrides the configured repository base when non-empty.
	BaseURL string

	// DefaultProfile overrides the configured caller default when non-empty.
	DefaultProfile string

	Requester Requester

	// Parser is the parser id for the output; empty uses the configured one.
	Parser string

	// DiscardOutput runs the unit but renders nothing.
	DiscardOutput bool

	// Args are the extra parameters; empty means "not supplied".
	Args units.Args

	// Context seeds the unit context. It is copied, never mutated.
	Context units.Context

	Metadata RequestMetadata
}

// Requester describes who issued the request.
type Requester struct {
	Identity string
	Elevated bool
}

// RequestMetadata contains metadata for request tracking.
type RequestMetadata struct {
	// RequestID uniquely identifies this request
	RequestID string
}

// PackagesRequest asks for the package set of one profile.
type PackagesRequest struct {
	Profile string
	BaseURL string
}
