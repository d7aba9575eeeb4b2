package services

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/reglet-dev/classrunner/internal/application/dto"
	apperrors "github.com/reglet-dev/classrunner/internal/application/errors"
	"github.com/reglet-dev/classrunner/internal/application/ports"
	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/services"
	"github.com/reglet-dev/classrunner/internal/domain/units"
	"github.com/reglet-dev/classrunner/internal/domain/values"
)

// GenericErrorOutput replaces the output of a masked failure.
const GenericErrorOutput = `<span class="rendering-error">Server Internal Error</span>`

// GenericErrorParser is the parser GenericErrorOutput is rendered with.
const GenericErrorParser = "html/5.0"

// RunnerConfig holds the settings a run falls back to when the request
// leaves them empty.
type RunnerConfig struct {
	// Key is both the request parameter and the persisted override name, and
	// the context key the selected profile name is stored under.
	Key            string
	Wiki           string
	BaseURL        string
	DefaultProfile string
	DefaultParser  string
}

// RunUnitUseCase runs one unit from the packages of the requester's profile.
type RunUnitUseCase struct {
	cfg       RunnerConfig
	resolver  *services.ProfileResolver
	collector *services.PackageCollector
	invoker   *services.Invoker
	loaders   ports.LoaderProvider
	renderer  ports.OutputRenderer
	scrubber  ports.Scrubber
	logger    *slog.Logger
}

// NewRunUnitUseCase creates a new run use case. scrubber may be nil.
func NewRunUnitUseCase(
	cfg RunnerConfig,
	resolver *services.ProfileResolver,
	collector *services.PackageCollector,
	invoker *services.Invoker,
	loaders ports.LoaderProvider,
	renderer ports.OutputRenderer,
	scrubber ports.Scrubber,
	logger *slog.Logger,
) *RunUnitUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if scrubber == nil {
		scrubber = noopScrubber{}
	}

	return &RunUnitUseCase{
		cfg:       cfg,
		resolver:  resolver,
		collector: collector,
		invoker:   invoker,
		loaders:   loaders,
		renderer:  renderer,
		scrubber:  scrubber,
		logger:    logger,
	}
}

// Execute runs the unit named by req. store carries the requester's
// persisted profile override and may be nil.
//
// A failure is returned as an error only when the requester may see its
// detail. Otherwise it is logged and the response carries GenericErrorOutput
// with Masked set, or nothing when output is discarded. Render failures are
// always returned as errors with their cause.
func (uc *RunUnitUseCase) Execute(ctx context.Context, store ports.SelectionStore, req dto.RunRequest) (*dto.RunResponse, error) {
	startTime := time.Now()
	invocation := values.NewInvocationID()
	logger := uc.logger.With("invocation", invocation.String())
	if req.Metadata.RequestID != "" {
		logger = logger.With("request_id", req.Metadata.RequestID)
	}

	resp := &dto.RunResponse{
		Metadata: dto.ResponseMetadata{
			RequestID:    req.Metadata.RequestID,
			InvocationID: invocation.String(),
			ProcessedAt:  startTime,
		},
	}

	visibility := services.InitialVisibility(req.Requester.Elevated)
	err := uc.run(ctx, logger, store, req, resp, &visibility)
	resp.Metadata.Duration = time.Since(startTime)
	if err == nil {
		logger.Debug("unit run completed",
			"unit", resp.Unit,
			"profile", resp.Profile.String(),
			"duration", resp.Metadata.Duration)
		return resp, nil
	}

	var renderErr *apperrors.RenderError
	if errors.As(err, &renderErr) {
		return nil, apperrors.NewRenderError(renderErr.Parser, uc.scrubber.ScrubError(renderErr.Cause))
	}

	scrubbed := uc.scrubber.ScrubError(err)
	if visibility.Detailed() {
		return nil, apperrors.NewRunError(invocation.String(), profileName(resp), resp.Unit, scrubbed)
	}

	logger.Error("class runner failed",
		"unit", resp.Unit,
		"profile", profileName(resp),
		"visibility", visibility.String(),
		"error", scrubbed)

	resp.Masked = true
	if req.DiscardOutput {
		return resp, nil
	}

	output, rerr := uc.renderer.Render(GenericErrorOutput, GenericErrorParser)
	if rerr != nil {
		logger.Warn("failed to render generic error output", "error", rerr)
		output = GenericErrorOutput
	}
	resp.Output = output
	resp.Parser = GenericErrorParser
	return resp, nil
}

func (uc *RunUnitUseCase) run(
	ctx context.Context,
	logger *slog.Logger,
	store ports.SelectionStore,
	req dto.RunRequest,
	resp *dto.RunResponse,
	visibility *services.Visibility,
) error {
	// 1. Select the profile and apply the override side effect
	sel, err := uc.resolver.Resolve(ctx, services.ResolveRequest{
		Input:          req.Profile,
		Persisted:      persistedValue(store, uc.cfg.Key),
		Identity:       req.Requester.Identity,
		DefaultProfile: firstNonEmpty(req.DefaultProfile, uc.cfg.DefaultProfile),
		Elevated:       req.Requester.Elevated,
	})
	if err != nil {
		return err
	}
	ApplySelection(store, uc.cfg.Key, sel)
	resp.Profile = sel.Profile

	logger.Debug("profile selected",
		"profile", sel.Profile.String(),
		"explicit", sel.Explicit,
		"persist", sel.Persist.String())

	// 2. Collect packages; their stability decides the final visibility
	set, err := uc.collector.Collect(ctx, sel.Profile, firstNonEmpty(req.BaseURL, uc.cfg.BaseURL))
	if err != nil {
		return err
	}
	resp.Packages = set
	*visibility = services.FinalVisibility(req.Requester.Elevated, set)
	if set.Empty() {
		return &entities.NoPackagesDeclaredError{Profile: sel.Profile}
	}

	// 3. Name the unit and build its context
	resp.Unit = values.QualifyUnitName(req.Unit, req.Document, set.GroupIDs, firstNonEmpty(req.Document.Wiki, uc.cfg.Wiki))

	uctx := make(units.Context, len(req.Context)+1)
	maps.Copy(uctx, req.Context)
	uctx[uc.cfg.Key] = sel.Profile.Name
	logger.Debug("unit context prepared", "unit", resp.Unit, "context", uc.scrubber.RedactContext(uctx))

	// 4. Load and invoke
	snapshot := set.HasSnapshot()
	loader, err := uc.loaders.Get(ctx, set.LoaderURLs(), snapshot)
	if err != nil {
		return &entities.ClassLoadError{Unit: resp.Unit, Cause: err}
	}
	if snapshot {
		defer func() {
			if err := loader.Close(ctx); err != nil {
				logger.Warn("failed to close snapshot loader", "error", err)
			}
		}()
	}

	result, err := uc.invoker.Invoke(ctx, loader, resp.Unit, req.Args, uctx)
	if err != nil {
		return err
	}
	resp.Raw = result.Output
	resp.Convention = result.Convention

	if req.DiscardOutput {
		return nil
	}

	// 5. Render with the unit's parser, the requested one or the default
	parser := firstNonEmpty(result.Parser, req.Parser, uc.cfg.DefaultParser)
	rendered, err := uc.renderer.Render(result.Output, parser)
	if err != nil {
		var renderErr *apperrors.RenderError
		if errors.As(err, &renderErr) {
			return renderErr
		}
		return apperrors.NewRenderError(parser, err)
	}
	resp.Output = rendered
	resp.Parser = parser
	return nil
}

func profileName(resp *dto.RunResponse) string {
	if resp.Profile.IsZero() {
		return ""
	}
	return resp.Profile.String()
}

func firstNonEmpty(candidates ...string) string {
	for _, v := range candidates {
		if v != "" {
			return v
		}
	}
	return ""
}

type noopScrubber struct{}

func (noopScrubber) ScrubError(err error) error                       { return err }
func (noopScrubber) RedactContext(data map[string]any) map[string]any { return data }
