// Package entities contains domain entities for the classrunner domain model.
// These are pure domain types with NO infrastructure dependencies.
package entities

import (
	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// Document classes and fields read from profile documents.
const (
	PackageClass = "JavaPackageClass"
	IncludeClass = "JavaProfileIncludeClass"

	FieldArtifactID = "artifactId"
	FieldVersion    = "version"
	FieldGroupID    = "groupId"
	FieldPackaging  = "packaging"
	FieldName       = "name"
	FieldBaseURL    = "baseURL"
)

// PackageEntry is one remote artifact declared inside a profile.
type PackageEntry struct {
	ArtifactID string           `yaml:"artifactId" json:"artifactId"`
	Version    string           `yaml:"version" json:"version"`
	GroupID    string           `yaml:"groupId" json:"groupId"`
	Packaging  values.Packaging `yaml:"packaging" json:"packaging"`
}

// URL builds the package location under base.
func (e PackageEntry) URL(base string) (string, error) {
	return values.PackageURL(base, e.ArtifactID, e.Version, e.Packaging)
}

// Stability classifies the entry from its version suffix.
func (e PackageEntry) Stability() values.Stability {
	return values.ClassifyVersion(e.Version)
}

// ProfileInclude references a nested profile.
type ProfileInclude struct {
	Name    string `yaml:"name" json:"name"`
	BaseURL string `yaml:"baseURL,omitempty" json:"baseURL,omitempty"`
}

// EffectiveBaseURL returns the include's base URL, or the including
// profile's base URL when none is set.
func (i ProfileInclude) EffectiveBaseURL(parent string) string {
	if i.BaseURL == "" {
		return parent
	}
	return i.BaseURL
}
