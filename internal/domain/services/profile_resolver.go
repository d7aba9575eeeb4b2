package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/repositories"
	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// ResolveRequest carries everything the resolver looks at for one request.
type ResolveRequest struct {
	// Input is the explicit profile name from request input; nil when the
	// request carries no such parameter.
	Input *string
	// Persisted is the current override value; nil when none is stored.
	Persisted *string

	Identity       string
	DefaultProfile string
	Elevated       bool
}

// ProfileResolver decides which profile a request runs with.
//
// Resolution order (first existing wins):
//  1. explicit input (elevated requesters only)
//  2. persisted override (elevated requesters only, when no input was given)
//  3. profile named after the requester identity
//  4. caller default profile
//  5. global default profile
type ProfileResolver struct {
	repo   repositories.ProfileRepository
	logger *slog.Logger
}

// NewProfileResolver creates a resolver reading from repo.
func NewProfileResolver(repo repositories.ProfileRepository, logger *slog.Logger) *ProfileResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileResolver{repo: repo, logger: logger}
}

// Resolve returns the selection for req, including the side effect to apply
// on the persisted override channel.
func (r *ProfileResolver) Resolve(ctx context.Context, req ResolveRequest) (*entities.ProfileSelection, error) {
	sel := &entities.ProfileSelection{Elevated: req.Elevated}

	if req.Elevated {
		chosen, ok, err := r.overrideProfile(ctx, req)
		if err != nil {
			return nil, err
		}

		switch {
		case ok:
			sel.Profile = chosen
			sel.Explicit = true
			if req.Persisted == nil || !chosen.Equals(values.ParseProfileRef(*req.Persisted)) {
				sel.Persist = entities.PersistSet
				sel.PersistValue = deref(req.Input)
			}
			r.logger.Debug("profile override in effect", "profile", chosen.String(), "persist", sel.Persist.String())
			return sel, nil
		case req.Persisted != nil:
			sel.Persist = entities.PersistClear
		}
	}

	candidates := []values.ProfileRef{
		values.ParseProfileRef(values.IdentityProfileName(req.Identity)),
		values.ParseProfileRef(req.DefaultProfile),
		values.DefaultProfileRef(),
	}
	for _, ref := range candidates {
		exists, err := r.repo.Exists(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("checking profile %s: %w", ref.String(), err)
		}
		if exists {
			sel.Profile = ref
			return sel, nil
		}
	}

	return nil, &entities.ProfileMissingError{Tried: candidates}
}

// overrideProfile evaluates steps 1 and 2. A present but empty input
// suppresses the persisted override for this request.
func (r *ProfileResolver) overrideProfile(ctx context.Context, req ResolveRequest) (values.ProfileRef, bool, error) {
	var name string
	switch {
	case req.Input != nil:
		name = *req.Input
	case req.Persisted != nil:
		name = *req.Persisted
	}
	if name == "" {
		return values.ProfileRef{}, false, nil
	}

	ref := values.ParseProfileRef(name)
	exists, err := r.repo.Exists(ctx, ref)
	if err != nil {
		return values.ProfileRef{}, false, fmt.Errorf("checking profile %s: %w", ref.String(), err)
	}
	return ref, exists, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
