package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/classrunner/internal/application/dto"
	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/repositories"
	"github.com/reglet-dev/classrunner/internal/domain/services"
	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// ProfileQueries answers read-only questions about stored profiles.
type ProfileQueries struct {
	repo      repositories.ProfileRepository
	collector *services.PackageCollector
	baseURL   string
	logger    *slog.Logger
}

// NewProfileQueries creates profile queries. baseURL is used when a request
// does not name one.
func NewProfileQueries(
	repo repositories.ProfileRepository,
	collector *services.PackageCollector,
	baseURL string,
	logger *slog.Logger,
) *ProfileQueries {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileQueries{
		repo:      repo,
		collector: collector,
		baseURL:   baseURL,
		logger:    logger,
	}
}

// List summarizes every stored profile. A profile whose packages cannot be
// collected is still listed, with the failure in Error.
func (q *ProfileQueries) List(ctx context.Context, baseURL string) ([]dto.ProfileSummary, error) {
	refs, err := q.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	base := firstNonEmpty(baseURL, q.baseURL)
	summaries := make([]dto.ProfileSummary, 0, len(refs))
	for _, ref := range refs {
		summary := dto.ProfileSummary{Ref: ref}
		set, err := q.collector.Collect(ctx, ref, base)
		if err != nil {
			q.logger.Warn("failed to collect profile packages", "profile", ref.String(), "error", err)
			summary.Error = err.Error()
		} else {
			summary.Packages = set
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Packages returns the package set of one profile.
func (q *ProfileQueries) Packages(ctx context.Context, req dto.PackagesRequest) (*entities.PackageSet, error) {
	ref := values.ParseProfileRef(req.Profile)
	exists, err := q.repo.Exists(ctx, ref)
	if err != nil {
		return nil, &entities.CollectionError{Profile: ref, Cause: err}
	}
	if !exists {
		return nil, &entities.ProfileMissingError{Tried: []values.ProfileRef{ref}}
	}
	return q.collector.Collect(ctx, ref, firstNonEmpty(req.BaseURL, q.baseURL))
}
