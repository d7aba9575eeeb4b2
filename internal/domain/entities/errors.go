package entities

import (
	"fmt"

	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// ProfileMissingError indicates no profile could be resolved at all.
type ProfileMissingError struct {
	Tried []values.ProfileRef
}

func (e *ProfileMissingError) Error() string {
	return fmt.Sprintf("classloader profile is missing (tried %d candidates)", len(e.Tried))
}

// NoPackagesDeclaredError indicates a resolved profile yields no package.
type NoPackagesDeclaredError struct {
	Profile values.ProfileRef
}

func (e *NoPackagesDeclaredError) Error() string {
	return fmt.Sprintf("no package to load in %s, no chance to find a unit to run", e.Profile.String())
}

// ProfileCycleError indicates the include graph loops or nests too deeply.
type ProfileCycleError struct {
	Path  []values.ProfileRef
	Depth int
}

func (e *ProfileCycleError) Error() string {
	last := ""
	if len(e.Path) > 0 {
		last = e.Path[len(e.Path)-1].String()
	}
	return fmt.Sprintf("profile cycle or too deep at %s (depth %d)", last, e.Depth)
}

// CollectionError wraps a failure while collecting a profile's packages.
type CollectionError struct {
	Cause   error
	Profile values.ProfileRef
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collecting packages of %s: %v", e.Profile.String(), e.Cause)
}

func (e *CollectionError) Unwrap() error {
	return e.Cause
}

// ClassLoadError indicates the named unit could not be loaded.
type ClassLoadError struct {
	Cause error
	Unit  string
}

func (e *ClassLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unit %s could not be loaded: %v", e.Unit, e.Cause)
	}
	return fmt.Sprintf("unit %s not found", e.Unit)
}

func (e *ClassLoadError) Unwrap() error {
	return e.Cause
}

// NoEntryPointError indicates the unit exposes no usable calling convention.
type NoEntryPointError struct {
	Unit   string
	Reason string
}

func (e *NoEntryPointError) Error() string {
	return fmt.Sprintf("unit %s has no compatible entry point: %s", e.Unit, e.Reason)
}

// InvocationError wraps a construction or call failure inside a unit.
type InvocationError struct {
	Cause error
	Unit  string
	Step  string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking %s of %s: %v", e.Step, e.Unit, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}
