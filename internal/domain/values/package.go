package values

import (
	"fmt"
	"net/url"
	"strings"
)

// SnapshotSuffix marks an in-development package version.
const SnapshotSuffix = "-SNAPSHOT"

// Stability classifies a package by its version string.
type Stability int

const (
	// Stable packages are immutable and their loaders may be cached.
	Stable Stability = iota
	// Snapshot packages are mutable and must be re-read on every request.
	Snapshot
)

// ClassifyVersion returns the stability class of a version string.
func ClassifyVersion(version string) Stability {
	if strings.HasSuffix(version, SnapshotSuffix) {
		return Snapshot
	}
	return Stable
}

func (s Stability) String() string {
	if s == Snapshot {
		return "snapshot"
	}
	return "stable"
}

// Packaging is the declared packaging kind of a package.
type Packaging string

// PackagingJar denotes a single archive file; any other value is an expanded directory.
const PackagingJar Packaging = "jar"

// IsArchive reports whether the packaging yields a single archive URL.
func (p Packaging) IsArchive() bool {
	return p == PackagingJar
}

// PackageURL builds the location of a package by plain concatenation:
// <base><artifactID>-<version>.jar for archives, <base><artifactID>-<version>/ otherwise.
// The result must parse as an absolute URL.
func PackageURL(base, artifactID, version string, packaging Packaging) (string, error) {
	suffix := "/"
	if packaging.IsArchive() {
		suffix = ".jar"
	}
	raw := base + artifactID + "-" + version + suffix

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("malformed package URL %q: %w", raw, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("malformed package URL %q: no scheme", raw)
	}
	return raw, nil
}

// IsArchiveURL reports whether a package URL points at a single archive.
func IsArchiveURL(raw string) bool {
	return strings.HasSuffix(raw, ".jar")
}
