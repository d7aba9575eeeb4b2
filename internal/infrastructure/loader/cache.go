package loader

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/reglet-dev/classrunner/internal/application/ports"
)

// Cache is the process-wide store of shared loaders keyed by the exact
// ordered URL list.
type Cache struct {
	mu      sync.Mutex // held across construction so a key is built once
	loaders map[string]*Loader
	opts    Options
	logger  *slog.Logger
}

var _ ports.LoaderProvider = (*Cache)(nil)

// NewCache creates an empty loader cache.
func NewCache(opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		loaders: make(map[string]*Loader),
		opts:    opts,
		logger:  logger,
	}
}

func cacheKey(urls []string) string {
	return strings.Join(urls, "\n")
}

// Get implements ports.LoaderProvider. A snapshot request bypasses the cache
// in both directions and the caller owns the returned loader.
func (c *Cache) Get(ctx context.Context, urls []string, snapshot bool) (ports.LoaderHandle, error) {
	if snapshot {
		c.logger.Debug("building uncached loader", "packages", len(urls))
		return New(ctx, urls, false, c.opts)
	}

	key := cacheKey(urls)

	c.mu.Lock()
	defer c.mu.Unlock()

	if l, ok := c.loaders[key]; ok {
		return l, nil
	}

	// The runtime outlives this request.
	l, err := New(context.WithoutCancel(ctx), urls, true, c.opts)
	if err != nil {
		return nil, err
	}
	c.loaders[key] = l
	c.logger.Debug("cached new loader", "packages", len(urls), "cached", len(c.loaders))
	return l, nil
}

// Len returns the number of cached loaders.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.loaders)
}

// Close closes and forgets every cached loader.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	loaders := c.loaders
	c.loaders = make(map[string]*Loader)
	c.mu.Unlock()

	var errs []error
	for _, l := range loaders {
		if err := l.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
