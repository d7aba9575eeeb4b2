package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/repositories"
	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// DefaultMaxIncludeDepth bounds profile include nesting.
const DefaultMaxIncludeDepth = 16

// PackageCollector flattens a profile and its includes into a PackageSet.
//
// Entries and includes are read by index starting at 0; the first missing
// index ends the scan for that kind, so a gap (not a count) is the sentinel.
// Includes are collected depth-first into the same accumulators. A profile
// already on the current include path, or nesting beyond maxDepth, fails
// with ProfileCycleError.
type PackageCollector struct {
	repo     repositories.ProfileRepository
	maxDepth int
	logger   *slog.Logger
}

// NewPackageCollector creates a collector reading from repo.
func NewPackageCollector(repo repositories.ProfileRepository, maxDepth int, logger *slog.Logger) *PackageCollector {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxIncludeDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PackageCollector{repo: repo, maxDepth: maxDepth, logger: logger}
}

// Collect gathers every package reachable from profile.
func (c *PackageCollector) Collect(ctx context.Context, profile values.ProfileRef, baseURL string) (*entities.PackageSet, error) {
	set := entities.NewPackageSet()
	visited := make(map[values.ProfileRef]bool)
	if err := c.collect(ctx, profile, baseURL, set, visited, []values.ProfileRef{}); err != nil {
		return nil, err
	}
	return set, nil
}

func (c *PackageCollector) collect(
	ctx context.Context,
	profile values.ProfileRef,
	baseURL string,
	set *entities.PackageSet,
	visited map[values.ProfileRef]bool,
	path []values.ProfileRef,
) error {
	path = append(path, profile)
	if visited[profile] || len(path) > c.maxDepth {
		return &entities.ProfileCycleError{Path: path, Depth: len(path)}
	}
	visited[profile] = true
	defer delete(visited, profile)

	for i := 0; ; i++ {
		entry, ok, err := c.readEntry(ctx, profile, i)
		if err != nil {
			return &entities.CollectionError{Profile: profile, Cause: err}
		}
		if !ok {
			break
		}

		url, err := entry.URL(baseURL)
		if err != nil {
			return &entities.CollectionError{Profile: profile, Cause: err}
		}
		set.AddGroupID(entry.GroupID)
		set.Add(url, entry.Stability())

		c.logger.Debug("collected package",
			"profile", profile.String(),
			"url", url,
			"stability", entry.Stability().String())
	}

	for i := 0; ; i++ {
		include, ok, err := c.readInclude(ctx, profile, i)
		if err != nil {
			return &entities.CollectionError{Profile: profile, Cause: err}
		}
		if !ok {
			break
		}

		nested := values.ParseProfileRef(include.Name)
		if err := c.collect(ctx, nested, include.EffectiveBaseURL(baseURL), set, visited, path); err != nil {
			return err
		}
	}

	return nil
}

func (c *PackageCollector) readEntry(ctx context.Context, profile values.ProfileRef, index int) (entities.PackageEntry, bool, error) {
	prop := propertyReader{ctx: ctx, repo: c.repo, profile: profile, class: entities.PackageClass, index: index}

	artifactID, ok := prop.get(entities.FieldArtifactID)
	if !ok || prop.err != nil {
		return entities.PackageEntry{}, false, prop.err
	}

	entry := entities.PackageEntry{
		ArtifactID: artifactID,
		Version:    prop.require(entities.FieldVersion),
		GroupID:    prop.value(entities.FieldGroupID),
		Packaging:  values.Packaging(prop.require(entities.FieldPackaging)),
	}
	return entry, prop.err == nil, prop.err
}

func (c *PackageCollector) readInclude(ctx context.Context, profile values.ProfileRef, index int) (entities.ProfileInclude, bool, error) {
	prop := propertyReader{ctx: ctx, repo: c.repo, profile: profile, class: entities.IncludeClass, index: index}

	name, ok := prop.get(entities.FieldName)
	if !ok || prop.err != nil {
		return entities.ProfileInclude{}, false, prop.err
	}

	include := entities.ProfileInclude{
		Name:    name,
		BaseURL: prop.value(entities.FieldBaseURL),
	}
	return include, prop.err == nil, prop.err
}

// propertyReader reads fields of one indexed object and keeps the first error.
type propertyReader struct {
	ctx     context.Context
	repo    repositories.ProfileRepository
	profile values.ProfileRef
	class   string
	index   int
	err     error
}

func (p *propertyReader) get(field string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok, err := p.repo.Property(p.ctx, p.profile, p.class, p.index, field)
	if err != nil {
		p.err = fmt.Errorf("reading %s[%d].%s: %w", p.class, p.index, field, err)
		return "", false
	}
	return v, ok
}

func (p *propertyReader) value(field string) string {
	v, _ := p.get(field)
	return v
}

// require reads a field that an entry cannot be built without.
func (p *propertyReader) require(field string) string {
	v, ok := p.get(field)
	if !ok && p.err == nil {
		p.err = fmt.Errorf("%s[%d] is missing %s", p.class, p.index, field)
	}
	return v
}
