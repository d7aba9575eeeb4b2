package services

import "github.com/reglet-dev/classrunner/internal/domain/entities"

// Visibility tells whether failures are reported with full detail or masked.
type Visibility int

const (
	// Masked failures are replaced by a fixed generic message.
	Masked Visibility = iota
	// Detailed failures carry their full cause.
	Detailed
)

// Detailed reports whether failures should carry their full cause.
func (v Visibility) Detailed() bool {
	return v == Detailed
}

func (v Visibility) String() string {
	if v == Detailed {
		return "detailed"
	}
	return "masked"
}

// InitialVisibility applies before packages are known: only elevated
// requesters see details.
func InitialVisibility(elevated bool) Visibility {
	if elevated {
		return Detailed
	}
	return Masked
}

// FinalVisibility applies once the package set is collected. A snapshot
// package marks a development profile, which upgrades visibility even for
// non-elevated requesters.
func FinalVisibility(elevated bool, set *entities.PackageSet) Visibility {
	if elevated || (set != nil && set.HasSnapshot()) {
		return Detailed
	}
	return Masked
}
