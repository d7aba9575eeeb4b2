package entities

import (
	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// PersistAction is the side effect a profile selection has on the
// persisted override channel.
type PersistAction int

const (
	// PersistNone leaves the persisted override untouched.
	PersistNone PersistAction = iota
	// PersistSet stores PersistValue as the new override.
	PersistSet
	// PersistClear removes the override.
	PersistClear
)

func (a PersistAction) String() string {
	switch a {
	case PersistSet:
		return "set"
	case PersistClear:
		return "clear"
	default:
		return "none"
	}
}

// ProfileSelection is the per-request decision of which profile to use.
type ProfileSelection struct {
	Profile values.ProfileRef
	// Explicit is true when the profile came from request input or the
	// persisted override rather than the identity/default chain.
	Explicit bool
	Elevated bool

	Persist      PersistAction
	PersistValue string
}
