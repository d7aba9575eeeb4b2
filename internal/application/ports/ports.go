// Package ports defines interfaces for infrastructure dependencies.
// These are the "ports" in hexagonal architecture - abstractions that
// the application layer depends on but doesn't implement.
package ports

import (
	"context"
	"errors"
	"io"

	"github.com/reglet-dev/classrunner/internal/domain/units"
)

// ErrPackageNotFound is returned by a PackageFetcher when the URL answers
// "not found". Loaders treat it as "try the next package".
var ErrPackageNotFound = errors.New("package not found")

// PackageFetcher retrieves the bytes behind a package URL or a unit URL
// inside a directory package.
type PackageFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// SelectionStore is the per-client channel that carries an elevated
// requester's profile override between requests (a cookie over HTTP).
type SelectionStore interface {
	// Get returns the stored value and whether one is present.
	Get(key string) (string, bool)
	Set(key, value string)
	Clear(key string)
}

// OutputRenderer renders captured unit output with a parser.
type OutputRenderer interface {
	// Render converts output using the parser identified by parserID.
	Render(output, parserID string) (string, error)
}

// LoaderHandle is a units.Loader that may own resources.
type LoaderHandle interface {
	units.Loader
	Close(ctx context.Context) error
}

// LoaderProvider hands out loaders for ordered package URL lists.
type LoaderProvider interface {
	// Get returns the loader for urls. With snapshot set, a fresh loader is
	// returned that the caller must close after the request; otherwise the
	// loader is shared and must not be closed by the caller.
	Get(ctx context.Context, urls []string, snapshot bool) (LoaderHandle, error)
}

// Scrubber removes secrets from text that leaves the process.
type Scrubber interface {
	ScrubError(err error) error
	RedactContext(data map[string]any) map[string]any
}
