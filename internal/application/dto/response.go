package dto

import (
	"time"

	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// RunResponse contains the result of running a unit.
type RunResponse struct {
	// Output is the rendered output, or the generic error markup when a
	// failure was masked. Empty when output was discarded.
	Output string

	// Raw is the text captured from the unit before rendering.
	Raw string

	// Parser is the parser id the output was rendered with.
	Parser string

	// Unit is the fully qualified unit name that was run.
	Unit string

	Profile    values.ProfileRef
	Packages   *entities.PackageSet
	Convention string

	// Masked is true when a failure was replaced by the generic output.
	Masked bool

	Metadata ResponseMetadata
}

// ResponseMetadata contains metadata about the response.
type ResponseMetadata struct {
	// RequestID from the original request
	RequestID string

	// InvocationID correlates log lines of one run
	InvocationID string

	// ProcessedAt is when the request was processed
	ProcessedAt time.Time

	// Duration is how long the request took
	Duration time.Duration
}

// ProfileSummary describes one profile for listings.
type ProfileSummary struct {
	Ref      values.ProfileRef
	Packages *entities.PackageSet
	// Error is the collection failure, if any.
	Error string
}
