// Package loader materializes units from ordered package URL lists. A
// Loader consults its parent (the builtin registry) first, then archives and
// directory packages in URL order. Cache shares loaders between requests that
// name the same stable package list.
package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/reglet-dev/classrunner/internal/application/ports"
	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/units"
	"github.com/reglet-dev/classrunner/internal/domain/values"
	"github.com/reglet-dev/classrunner/internal/infrastructure/wasm"
	"golang.org/x/sync/errgroup"
)

// Options configures loaders built by New and Cache.
type Options struct {
	// Fetcher retrieves archives and directory entries. Required.
	Fetcher ports.PackageFetcher
	// Parent is consulted before any package. Optional.
	Parent units.Loader
	// Runtime configures the wazero runtime each loader owns.
	Runtime wasm.Options
	// MaxConcurrentFetches bounds parallel archive downloads; 0 means no limit.
	MaxConcurrentFetches int
	Logger               *slog.Logger
}

// Loader resolves unit names against an ordered list of package URLs.
type Loader struct {
	urls      []string
	parent    units.Loader
	fetcher   ports.PackageFetcher
	runtime   *wasm.Runtime
	cacheable bool
	limit     int
	logger    *slog.Logger

	indexMu  sync.Mutex
	archives map[string]*zip.Reader // by URL; nil entry = archive not found
	indexed  bool

	mu     sync.RWMutex
	loaded map[string]units.Unit
}

var _ ports.LoaderHandle = (*Loader)(nil)

// New creates a loader for urls. The loader owns a private wazero runtime,
// so units compiled for one package list are never visible to another.
func New(ctx context.Context, urls []string, cacheable bool, opts Options) (*Loader, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("loader requires a package fetcher")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runtimeOpts := opts.Runtime
	if runtimeOpts.Logger == nil {
		runtimeOpts.Logger = logger
	}
	rt, err := wasm.NewRuntime(ctx, runtimeOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create loader runtime: %w", err)
	}

	return &Loader{
		urls:      append([]string(nil), urls...),
		parent:    opts.Parent,
		fetcher:   opts.Fetcher,
		runtime:   rt,
		cacheable: cacheable,
		limit:     opts.MaxConcurrentFetches,
		logger:    logger,
		loaded:    make(map[string]units.Unit),
	}, nil
}

// URLs returns the package URLs in search order.
func (l *Loader) URLs() []string {
	return append([]string(nil), l.urls...)
}

// Cacheable reports whether the loader may be shared between requests.
func (l *Loader) Cacheable() bool {
	return l.cacheable
}

// Load implements units.Loader. The parent wins over packages; packages are
// searched in URL order. An unknown name yields *entities.ClassLoadError.
func (l *Loader) Load(ctx context.Context, name string) (units.Unit, error) {
	l.mu.RLock()
	if u, ok := l.loaded[name]; ok {
		l.mu.RUnlock()
		return u, nil
	}
	l.mu.RUnlock()

	if l.parent != nil {
		u, err := l.parent.Load(ctx, name)
		if err == nil {
			return l.remember(name, u), nil
		}
		if !errors.Is(err, units.ErrUnitNotFound) {
			return nil, &entities.ClassLoadError{Unit: name, Cause: err}
		}
	}

	wasmBytes, source, err := l.find(ctx, name)
	if err != nil {
		return nil, &entities.ClassLoadError{Unit: name, Cause: err}
	}
	if wasmBytes == nil {
		return nil, &entities.ClassLoadError{Unit: name}
	}

	u, err := l.runtime.LoadUnit(ctx, name, wasmBytes)
	if err != nil {
		return nil, &entities.ClassLoadError{Unit: name, Cause: err}
	}

	l.logger.Debug("unit loaded", "unit", name, "package", source, "binding", u.Binding().String())
	return l.remember(name, u), nil
}

func (l *Loader) remember(name string, u units.Unit) units.Unit {
	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.loaded[name]; ok {
		return existing
	}
	l.loaded[name] = u
	return u
}

// find returns the module bytes for name and the URL they came from, or nil
// bytes when no package defines it.
func (l *Loader) find(ctx context.Context, name string) ([]byte, string, error) {
	if err := l.index(ctx); err != nil {
		return nil, "", err
	}

	path := values.UnitPath(name)
	for _, u := range l.urls {
		if values.IsArchiveURL(u) {
			data, err := l.fromArchive(u, path)
			if err != nil {
				return nil, "", err
			}
			if data != nil {
				return data, u, nil
			}
			continue
		}

		data, err := l.fromDirectory(ctx, u, path)
		if err != nil {
			return nil, "", err
		}
		if data != nil {
			return data, u, nil
		}
	}
	return nil, "", nil
}

func (l *Loader) fromArchive(url, path string) ([]byte, error) {
	l.indexMu.Lock()
	zr := l.archives[url]
	l.indexMu.Unlock()
	if zr == nil {
		return nil, nil
	}

	f, err := zr.Open(path)
	if err != nil {
		return nil, nil //nolint:nilerr // absent from this archive
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", path, url, err)
	}
	return data, nil
}

func (l *Loader) fromDirectory(ctx context.Context, url, path string) ([]byte, error) {
	rc, err := l.fetcher.Fetch(ctx, url+path)
	if err != nil {
		if errors.Is(err, ports.ErrPackageNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s%s: %w", url, path, err)
	}
	return data, nil
}

// index downloads every archive package concurrently. Archives that were
// found are kept; missing or failed ones are fetched again on the next Load,
// so a package published after the first miss is picked up.
func (l *Loader) index(ctx context.Context) error {
	l.indexMu.Lock()
	defer l.indexMu.Unlock()
	if l.indexed {
		return nil
	}

	var pending []string
	for _, u := range l.urls {
		if values.IsArchiveURL(u) && l.archives[u] == nil {
			pending = append(pending, u)
		}
	}

	readers := make([]*zip.Reader, len(pending))
	g, gCtx := errgroup.WithContext(ctx)
	if l.limit > 0 {
		g.SetLimit(l.limit)
	}
	for i, u := range pending {
		g.Go(func() error {
			zr, err := l.fetchArchive(gCtx, u)
			if err != nil {
				return err
			}
			// Each goroutine writes its own index
			readers[i] = zr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if l.archives == nil {
		l.archives = make(map[string]*zip.Reader, len(pending))
	}
	complete := true
	for i, u := range pending {
		l.archives[u] = readers[i]
		if readers[i] == nil {
			complete = false
		}
	}
	l.indexed = complete
	return nil
}

func (l *Loader) fetchArchive(ctx context.Context, url string) (*zip.Reader, error) {
	rc, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		if errors.Is(err, ports.ErrPackageNotFound) {
			l.logger.Warn("package archive not found, skipping", "package", url)
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("package %s is not a valid archive: %w", url, err)
	}
	return zr, nil
}

// Close releases the loader's runtime and every unit compiled in it.
func (l *Loader) Close(ctx context.Context) error {
	l.logger.Debug("closing loader", "packages", len(l.urls), "units", l.runtime.Len())
	return l.runtime.Close(ctx)
}
