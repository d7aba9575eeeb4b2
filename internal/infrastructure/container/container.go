// Package container provides dependency injection for the application.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	apperrors "github.com/reglet-dev/classrunner/internal/application/errors"
	"github.com/reglet-dev/classrunner/internal/application/services"
	"github.com/reglet-dev/classrunner/internal/domain/repositories"
	domainservices "github.com/reglet-dev/classrunner/internal/domain/services"
	"github.com/reglet-dev/classrunner/internal/infrastructure/builtin"
	"github.com/reglet-dev/classrunner/internal/infrastructure/fetch"
	"github.com/reglet-dev/classrunner/internal/infrastructure/loader"
	"github.com/reglet-dev/classrunner/internal/infrastructure/persistence/memory"
	"github.com/reglet-dev/classrunner/internal/infrastructure/persistence/sqlstore"
	"github.com/reglet-dev/classrunner/internal/infrastructure/persistence/yamlstore"
	"github.com/reglet-dev/classrunner/internal/infrastructure/redaction"
	"github.com/reglet-dev/classrunner/internal/infrastructure/render"
	"github.com/reglet-dev/classrunner/internal/infrastructure/secrets"
	"github.com/reglet-dev/classrunner/internal/infrastructure/system"
	"github.com/reglet-dev/classrunner/internal/infrastructure/wasm"
	"github.com/reglet-dev/classrunner/internal/infrastructure/web"
)

const (
	maxConcurrentFetches = 4
	fetchTimeout         = 60 * time.Second
)

// Container holds all application dependencies.
type Container struct {
	systemCfg      *system.Config
	secrets        *secrets.Resolver
	redactor       *redaction.Redactor
	repo           repositories.ProfileRepository
	builtins       *builtin.Registry
	loaders        *loader.Cache
	renderer       *render.Registry
	runUseCase     *services.RunUnitUseCase
	profileQueries *services.ProfileQueries
	closers        []func() error
	logger         *slog.Logger
}

// Options configure the container.
type Options struct {
	Logger           *slog.Logger
	SystemConfigPath string
	// Config, when set, is used instead of reading SystemConfigPath.
	Config *system.Config
	// Stderr receives unit stderr. Defaults to os.Stderr.
	Stderr io.Writer
}

// New creates a new dependency injection container.
func New(ctx context.Context, opts Options) (*Container, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger

	// Load system config
	systemCfg := opts.Config
	if systemCfg == nil {
		cfg, err := system.NewConfigLoader().Load(opts.SystemConfigPath)
		if err != nil {
			return nil, err
		}
		systemCfg = cfg
	} else if err := systemCfg.Validate(); err != nil {
		return nil, err
	}

	// Resolve secrets up front so every value can be redacted
	secretResolver := secrets.NewResolver(&systemCfg.SensitiveData.Secrets)
	if err := secretResolver.ResolveAll(); err != nil {
		return nil, fmt.Errorf("failed to resolve secrets: %w", err)
	}

	patterns := append([]string(nil), systemCfg.Redaction.Patterns...)
	for _, v := range secretResolver.Values() {
		patterns = append(patterns, regexp.QuoteMeta(v))
	}
	redactor, err := redaction.New(redaction.Config{
		Patterns: patterns,
		Keys:     systemCfg.Redaction.Keys,
		HashMode: systemCfg.Redaction.HashMode.Enabled,
		Salt:     systemCfg.Redaction.HashMode.Salt,
	})
	if err != nil {
		return nil, err
	}

	c := &Container{
		systemCfg: systemCfg,
		secrets:   secretResolver,
		redactor:  redactor,
		logger:    logger,
	}

	repo, closeRepo, err := openRepository(ctx, systemCfg.Store)
	if err != nil {
		return nil, err
	}
	c.repo = repo
	if closeRepo != nil {
		c.closers = append(c.closers, closeRepo)
	}

	// Package transport
	credentials := secrets.NewCredentials(secretResolver, systemCfg.Packages.Credentials)
	fetcher := fetch.NewMux()
	fetcher.Handle(fetch.FileFetcher{}, "file")
	fetcher.Handle(fetch.NewHTTPFetcher(&http.Client{Timeout: fetchTimeout}, credentials), "http", "https")
	fetcher.Handle(fetch.NewS3Fetcher(fetch.S3Options{
		Endpoint: systemCfg.Packages.S3.Endpoint,
		Region:   systemCfg.Packages.S3.Region,
		UseSSL:   systemCfg.Packages.S3.UseSSL,
		Auth:     credentials,
	}), "s3")

	// Builtin units sit in front of every package list
	c.builtins = builtin.NewRegistry(logger)
	if err := builtin.RegisterDefaults(c.builtins, systemCfg.Profiles.Key); err != nil {
		return nil, err
	}

	c.loaders = loader.NewCache(loader.Options{
		Fetcher: fetcher,
		Parent:  c.builtins,
		Runtime: wasm.Options{
			MemoryLimitMB: systemCfg.WasmMemoryLimitMB,
			Redactor:      redactor,
			Stderr:        opts.Stderr,
			Logger:        logger,
		},
		MaxConcurrentFetches: maxConcurrentFetches,
		Logger:               logger,
	})
	c.renderer = render.NewRegistry(systemCfg.Render.DefaultParser)

	// Create domain services
	resolver := domainservices.NewProfileResolver(repo, logger)
	collector := domainservices.NewPackageCollector(repo, systemCfg.Profiles.MaxIncludeDepth, logger)
	invoker := domainservices.NewInvoker(logger)

	// Wire up use cases
	c.runUseCase = services.NewRunUnitUseCase(
		services.RunnerConfig{
			Key:            systemCfg.Profiles.Key,
			Wiki:           systemCfg.Profiles.Wiki,
			BaseURL:        systemCfg.Profiles.BaseURL,
			DefaultProfile: systemCfg.Profiles.Default,
			DefaultParser:  systemCfg.Render.DefaultParser,
		},
		resolver,
		collector,
		invoker,
		c.loaders,
		c.renderer,
		redactor,
		logger,
	)
	c.profileQueries = services.NewProfileQueries(repo, collector, systemCfg.Profiles.BaseURL, logger)

	return c, nil
}

// openRepository opens the configured profile document backend.
func openRepository(ctx context.Context, cfg system.StoreConfig) (repositories.ProfileRepository, func() error, error) {
	switch cfg.Driver {
	case system.StoreMemory, "":
		return memory.NewProfileRepository(), nil, nil
	case system.StoreYAML:
		s, err := yamlstore.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	case system.StoreSQLite:
		s, err := sqlstore.Open(ctx, sqlstore.DialectSQLite, cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case system.StorePostgres:
		s, err := sqlstore.Open(ctx, sqlstore.DialectPostgres, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, apperrors.NewConfigurationError("store", fmt.Sprintf("unknown store driver %q", cfg.Driver), nil)
	}
}

// RunUnitUseCase returns the run use case.
func (c *Container) RunUnitUseCase() *services.RunUnitUseCase {
	return c.runUseCase
}

// ProfileQueries returns the profile queries.
func (c *Container) ProfileQueries() *services.ProfileQueries {
	return c.profileQueries
}

// Repository returns the profile document backend.
func (c *Container) Repository() repositories.ProfileRepository {
	return c.repo
}

// Builtins returns the builtin unit registry.
func (c *Container) Builtins() *builtin.Registry {
	return c.builtins
}

// Redactor returns the secret redactor.
func (c *Container) Redactor() *redaction.Redactor {
	return c.redactor
}

// SystemConfig returns the system configuration.
func (c *Container) SystemConfig() *system.Config {
	return c.systemCfg
}

// Logger returns the configured logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// HTTPHandler returns the HTTP surface with identity resolution applied.
func (c *Container) HTTPHandler() (http.Handler, error) {
	var key []byte
	if name := c.systemCfg.Auth.JWTSecret; name != "" {
		v, err := c.secrets.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve auth.jwt_secret: %w", err)
		}
		key = []byte(v)
	}

	handler := web.NewHandler(c.runUseCase, c.profileQueries, web.HandlerOptions{
		Key:  c.systemCfg.Profiles.Key,
		Wiki: c.systemCfg.Profiles.Wiki,
	}, c.logger)

	return web.IdentityMiddleware(web.IdentityOptions{
		Key:       key,
		Issuer:    c.systemCfg.Auth.Issuer,
		AdminRole: c.systemCfg.Auth.AdminRole,
		Admins:    c.systemCfg.Auth.Admins,
	}, c.logger)(handler.Routes()), nil
}

// ImportProfiles copies every profile document from a YAML directory into
// the configured SQL backend and returns how many were written.
func (c *Container) ImportProfiles(ctx context.Context, dir string) (int, error) {
	target, ok := c.repo.(*sqlstore.Store)
	if !ok {
		return 0, fmt.Errorf("profile import requires an sql store driver, configured: %q", c.systemCfg.Store.Driver)
	}

	source, err := yamlstore.Open(dir)
	if err != nil {
		return 0, err
	}
	refs, err := source.List(ctx)
	if err != nil {
		return 0, err
	}

	for i, ref := range refs {
		doc, _ := source.Document(ref)
		if err := target.Put(ctx, ref, doc); err != nil {
			return i, fmt.Errorf("failed to import profile %s: %w", ref.String(), err)
		}
		c.logger.Debug("imported profile", "profile", ref.String())
	}
	return len(refs), nil
}

// Close releases loaders and the profile backend.
func (c *Container) Close(ctx context.Context) error {
	c.logger.Debug("closing container", "cached_loaders", c.loaders.Len())
	errs := []error{c.loaders.Close(ctx)}
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}
