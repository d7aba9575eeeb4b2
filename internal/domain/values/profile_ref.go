package values

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DataSpace holds profile documents.
	DataSpace = "ClassRunnerData"
	// DefaultProfileName is the document name of the global default profile.
	DefaultProfileName = "ClassRunnerData"
	// CodeSpace holds the class definitions describing package entries and includes.
	CodeSpace = "ClassRunnerCode"
)

// ProfileRef identifies a profile document.
// Equality is field-wise, so two refs parsed from different spellings of the
// same identifier compare equal.
type ProfileRef struct {
	Wiki  string
	Space string
	Name  string
}

// DefaultProfileRef returns the reference of the global default profile.
func DefaultProfileRef() ProfileRef {
	return ProfileRef{Space: DataSpace, Name: DefaultProfileName}
}

// ParseProfileRef resolves an identifier of the form [wiki:][Space.]Name
// relative to the global default profile. An empty identifier resolves to the
// default profile itself.
func ParseProfileRef(id string) ProfileRef {
	ref := DefaultProfileRef()
	id = strings.TrimSpace(id)
	if id == "" {
		return ref
	}

	if wiki, rest, ok := strings.Cut(id, ":"); ok {
		ref.Wiki = wiki
		id = rest
	}

	if i := strings.LastIndex(id, "."); i >= 0 {
		if space := id[:i]; space != "" {
			ref.Space = space
		}
		id = id[i+1:]
	}

	if id != "" {
		ref.Name = id
	}
	return ref
}

// String serializes the reference back to its identifier form.
func (r ProfileRef) String() string {
	s := r.Space + "." + r.Name
	if r.Wiki != "" {
		return r.Wiki + ":" + s
	}
	return s
}

// Equals checks if two references point at the same document.
func (r ProfileRef) Equals(other ProfileRef) bool {
	return r == other
}

// IsZero reports whether the reference is the zero value.
func (r ProfileRef) IsZero() bool {
	return r == ProfileRef{}
}

// MarshalText implements encoding.TextMarshaler.
func (r ProfileRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ProfileRef) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("profile reference cannot be empty")
	}
	*r = ParseProfileRef(string(data))
	return nil
}

var userPrefix = regexp.MustCompile(`^(.+:)?XWiki\.`)

// IdentityProfileName strips the wiki and user-space qualification from a
// requester identity so it can be used as a profile name.
func IdentityProfileName(identity string) string {
	return userPrefix.ReplaceAllString(identity, "")
}
