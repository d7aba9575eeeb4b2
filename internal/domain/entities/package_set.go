package entities

import (
	"slices"

	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// PackageSet is the flattened result of collecting one profile.
//
// Invariants:
//   - Stable and Snapshot are ordered sets of URLs (first occurrence wins)
//   - GroupIDs is deduplicated in first-seen order
type PackageSet struct {
	Stable   []string `json:"stable"`
	Snapshot []string `json:"snapshot"`
	GroupIDs []string `json:"groupIds"`
}

// NewPackageSet creates an empty package set.
func NewPackageSet() *PackageSet {
	return &PackageSet{
		Stable:   []string{},
		Snapshot: []string{},
		GroupIDs: []string{},
	}
}

// Add records a package URL under its stability class.
func (s *PackageSet) Add(url string, stability values.Stability) {
	if stability == values.Snapshot {
		s.Snapshot = appendUnique(s.Snapshot, url)
		return
	}
	s.Stable = appendUnique(s.Stable, url)
}

// AddGroupID records a group id if not already known.
func (s *PackageSet) AddGroupID(groupID string) {
	s.GroupIDs = appendUnique(s.GroupIDs, groupID)
}

// Empty reports whether no package URL was collected.
func (s *PackageSet) Empty() bool {
	return len(s.Stable) == 0 && len(s.Snapshot) == 0
}

// HasSnapshot reports whether at least one snapshot package was collected.
func (s *PackageSet) HasSnapshot() bool {
	return len(s.Snapshot) > 0
}

// LoaderURLs returns the URLs a loader is bound to. Snapshot packages come
// first so they take precedence for the units they define.
func (s *PackageSet) LoaderURLs() []string {
	urls := make([]string, 0, len(s.Snapshot)+len(s.Stable))
	urls = append(urls, s.Snapshot...)
	return append(urls, s.Stable...)
}

func appendUnique(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
